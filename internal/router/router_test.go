package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/handler"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository"
	"github.com/iliyamo/slot-booking/internal/service"
	"github.com/iliyamo/slot-booking/internal/utils"
)

const secret = "router-secret"

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// userTable is just enough of a user store to drive register and login.
type userTable struct {
	mu    sync.Mutex
	users []model.User
}

func (u *userTable) Create(_ context.Context, name, email, password, role string, cost int) (uint64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, x := range u.users {
		if x.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	id := uint64(len(u.users) + 1)
	u.users = append(u.users, model.User{ID: id, Name: name, Email: email, PasswordHash: hash, Role: role, IsActive: true})
	return id, nil
}

func (u *userTable) GetByEmail(_ context.Context, email string) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, x := range u.users {
		if x.Email == email {
			return x, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (u *userTable) GetByID(_ context.Context, id uint64) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if id == 0 || id > uint64(len(u.users)) {
		return model.User{}, repository.ErrUserNotFound
	}
	return u.users[id-1], nil
}

type discardTokens struct{}

func (discardTokens) StoreRefresh(context.Context, uint64, string, time.Time) error { return nil }
func (discardTokens) ValidateRefresh(context.Context, string) (uint64, error) {
	return 0, repository.ErrTokenInvalid
}
func (discardTokens) RevokeByHash(context.Context, string) error     { return nil }
func (discardTokens) RevokeAllForUser(context.Context, uint64) error { return nil }

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func newTestServer(t *testing.T, cfg config.Config, db handler.Pinger) *echo.Echo {
	t.Helper()
	cfg.JWTSecret = secret
	cfg.AccessTTLMin = 5
	cfg.RefreshTTLDays = 1
	cfg.BcryptCost = 4
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "20K"
	}

	users := &userTable{}
	svc := service.NewBookingSvc(repository.NewMemoryBookingRepo(), nil, zap.NewNop(),
		service.WithClock(func() time.Time { return now }),
		service.WithLocation(time.UTC))

	e := NewServer(cfg, zap.NewNop())
	RegisterRoutes(e, db)
	RegisterAuth(e, handler.NewAuthHandler(cfg, users, discardTokens{}), secret)
	RegisterBookings(e, handler.NewUserBookingHandler(svc), secret)
	RegisterAdmin(e, handler.NewAdminBookingHandler(svc, users), secret)
	return e
}

func call(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

// signUp registers a user through the API and returns its access token.
func signUp(t *testing.T, e *echo.Echo, name, role string) string {
	t.Helper()
	body := `{"name":"` + name + `","email":"` + strings.ToLower(name) + `@example.com","password":"secret","role":"` + role + `"}`
	rec := call(e, http.MethodPost, APIPrefix+"/auth/register", body, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return jsonBody(t, rec)["token"].(string)
}

func TestScenarios(t *testing.T) {
	e := newTestServer(t, config.Config{Env: "test"}, nil)
	u := signUp(t, e, "Uma", model.RoleUser)
	bookings := APIPrefix + "/bookings"

	t.Run("A overlapping create is rejected", func(t *testing.T) {
		rec := call(e, http.MethodPost, bookings, `{"date":"2024-06-15","startTime":"10:00","endTime":"11:00"}`, u)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.NotEmpty(t, jsonBody(t, rec)["bookingID"])

		rec = call(e, http.MethodPost, bookings, `{"date":"2024-06-15","startTime":"10:30","endTime":"11:30"}`, u)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "This time slot is already booked", jsonBody(t, rec)["message"])
	})

	t.Run("B past date is a validation error", func(t *testing.T) {
		rec := call(e, http.MethodPost, bookings, `{"date":"2024-01-01","startTime":"09:00","endTime":"10:00"}`, u)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := jsonBody(t, rec)
		assert.Equal(t, "Validation Error", body["message"])
		assert.Contains(t, body["details"], "Please choose a date not in the past")
	})

	t.Run("C unchanged update does not conflict with itself", func(t *testing.T) {
		rec := call(e, http.MethodPost, bookings, `{"date":"2024-06-15","startTime":"09:00","endTime":"10:00"}`, u)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		id := jsonBody(t, rec)["bookingID"].(string)

		rec = call(e, http.MethodPut, bookings+"/"+id, `{"date":"2024-06-15","startTime":"09:00","endTime":"10:00"}`, u)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, true, jsonBody(t, rec)["success"])
	})

	t.Run("D deleting an unknown id is a 404", func(t *testing.T) {
		rec := call(e, http.MethodDelete, bookings+"/abc", "", u)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, jsonBody(t, rec)["message"], "doesn't exist")
	})
}

func TestRoleGates(t *testing.T) {
	e := newTestServer(t, config.Config{Env: "test"}, nil)
	user := signUp(t, e, "Ula", model.RoleUser)
	admin := signUp(t, e, "Ari", model.RoleAdmin)

	rec := call(e, http.MethodGet, APIPrefix+"/bookings", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"not authorized to access this route"}`, rec.Body.String())

	rec = call(e, http.MethodGet, APIPrefix+"/bookings", "", admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "access is not permitted", jsonBody(t, rec)["error"])

	assert.Equal(t, http.StatusForbidden, call(e, http.MethodGet, APIPrefix+"/admin", "", user).Code)
	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, APIPrefix+"/admin", "", admin).Code)

	rec = call(e, http.MethodGet, APIPrefix+"/auth/me", "", user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ula", jsonBody(t, rec)["data"].(map[string]any)["name"])
}

func TestAdminActsOnAnyBooking(t *testing.T) {
	e := newTestServer(t, config.Config{Env: "test"}, nil)
	user := signUp(t, e, "Ola", model.RoleUser)
	admin := signUp(t, e, "Ava", model.RoleAdmin)

	rec := call(e, http.MethodPost, APIPrefix+"/bookings", `{"date":"2024-06-20","startTime":"13:00","endTime":"14:00"}`, user)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := jsonBody(t, rec)["bookingID"].(string)

	rec = call(e, http.MethodPost, APIPrefix+"/admin", `{"userId":1,"date":"2024-06-20","startTime":"13:30","endTime":"14:30"}`, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(e, http.MethodGet, APIPrefix+"/admin/"+id, "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, jsonBody(t, rec)["booking"].(map[string]any)["id"])

	rec = call(e, http.MethodDelete, APIPrefix+"/admin/"+id, "", admin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(e, http.MethodGet, APIPrefix+"/bookings", "", user)
	assert.Equal(t, "No bookings available", jsonBody(t, rec)["message"])
}

func TestPublicRoutes(t *testing.T) {
	e := newTestServer(t, config.Config{Env: "test"}, pinger{})

	rec := call(e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/readyz", "", "").Code)

	rec = call(e, http.MethodGet, "/api-docs/openapi.yaml", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "openapi: 3"))

	down := newTestServer(t, config.Config{Env: "test"}, pinger{err: errors.New("gone")})
	assert.Equal(t, http.StatusServiceUnavailable, call(down, http.MethodGet, "/readyz", "", "").Code)
}

func TestServerMiddleware(t *testing.T) {
	t.Run("request id", func(t *testing.T) {
		e := newTestServer(t, config.Config{Env: "test"}, nil)
		rec := call(e, http.MethodGet, "/healthz", "", "")
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("body limit", func(t *testing.T) {
		e := newTestServer(t, config.Config{Env: "test", BodyLimit: "1K"}, nil)
		big := `{"name":"` + strings.Repeat("x", 2048) + `"}`
		rec := call(e, http.MethodPost, APIPrefix+"/auth/register", big, "")
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, false, jsonBody(t, rec)["success"])
	})

	t.Run("cors outside production", func(t *testing.T) {
		e := newTestServer(t, config.Config{Env: "test"}, nil)
		req := httptest.NewRequest(http.MethodOptions, APIPrefix+"/bookings", nil)
		req.Header.Set(echo.HeaderOrigin, "http://anywhere.test")
		req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPut)
	})

	t.Run("production", func(t *testing.T) {
		e := newTestServer(t, config.Config{Env: "production", CORSAllowedOrigins: []string{"https://app.test"}}, nil)
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(echo.HeaderOrigin, "https://evil.test")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))

		req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(echo.HeaderOrigin, "https://app.test")
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, "https://app.test", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	})
}

func TestCORSConfig(t *testing.T) {
	assert.Equal(t, []string{"*"}, corsConfig(config.Config{Env: "development", CORSAllowedOrigins: []string{"x"}}).AllowOrigins)
	assert.Equal(t, []string{"x"}, corsConfig(config.Config{Env: "production", CORSAllowedOrigins: []string{"x"}}).AllowOrigins)
	assert.Equal(t, []string{"*"}, corsConfig(config.Config{Env: "production"}).AllowOrigins)
}
