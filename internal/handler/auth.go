package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository"
	"github.com/iliyamo/slot-booking/internal/utils"
)

// UserStore is the user persistence the auth endpoints need.
type UserStore interface {
	Create(ctx context.Context, name, email, password, role string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore persists refresh tokens by hash.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
}

// NewAuthHandler wires the auth endpoints to their stores.
func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

type registerReq struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=4"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

const cookieTTL = time.Hour

// Register handles POST /auth/register: creates a user and signs them in.
// Returns 201, or 409 when the email is taken.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validationBody(validationMessages(err), nil))
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Name, req.Email, req.Password, req.Role, h.Cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return c.JSON(http.StatusConflict, echo.Map{"success": false, "error": "email already exists"})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "create user failed").SetInternal(err)
	}
	return h.issue(ctx, c, http.StatusCreated, model.User{ID: uid, Name: req.Name, Email: req.Email, Role: req.Role})
}

// Login handles POST /auth/login.  Returns 401 on bad credentials.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "Please provide both an email and password"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed").SetInternal(err)
	}
	if err != nil || !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "Wrong email or password, please retry"})
	}
	return h.issue(ctx, c, http.StatusOK, u)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (h *AuthHandler) Refresh(c echo.Context) error {
	hash, err := refreshHash(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.refreshUser(ctx, hash)
	if err != nil {
		return err
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "revoke refresh failed").SetInternal(err)
	}
	return h.issue(ctx, c, http.StatusOK, u)
}

// RefreshAccess issues a new access token and keeps the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	hash, err := refreshHash(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.refreshUser(ctx, hash)
	if err != nil {
		return err
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, u.Name, h.Cfg.AccessTTLMin)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "issue access failed").SetInternal(err)
	}
	h.setCookie(c, access.Token, time.Now().Add(cookieTTL))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "token": access.Token, "expires": access.Exp})
}

// Logout revokes the refresh token in the body, or every token of the
// authenticated caller when none is given, and clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch uid, authed := middleware.CurrentUserID(c); {
	case raw != "":
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "logout failed").SetInternal(err)
		}
	case authed:
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "logout failed").SetInternal(err)
		}
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "provide Authorization header or refresh_token"})
	}
	h.setCookie(c, "none", time.Now().Add(10*time.Second))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{}})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authorized to access this route")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrUserNotFound) {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authorized to access this route")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "load user failed").SetInternal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{
		"id": u.ID, "name": u.Name, "email": u.Email, "role": u.Role,
	}})
}

// issue signs a new access and refresh token for u, stores the refresh hash
// and writes the token response plus cookie.
func (h *AuthHandler) issue(ctx context.Context, c echo.Context, status int, u model.User) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, u.Name, h.Cfg.AccessTTLMin)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "issue access failed").SetInternal(err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "issue refresh failed").SetInternal(err)
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "save refresh failed").SetInternal(err)
	}
	h.setCookie(c, access.Token, time.Now().Add(cookieTTL))
	return c.JSON(status, echo.Map{
		"success":       true,
		"token":         access.Token,
		"expires":       access.Exp,
		"refresh_token": refresh.Raw,
		"user":          echo.Map{"id": u.ID, "name": u.Name, "email": u.Email, "role": u.Role},
	})
}

func (h *AuthHandler) setCookie(c echo.Context, value string, exp time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.Cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshHash(c echo.Context) (string, error) {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "refresh_token required")
	}
	return utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken)), nil
}

// refreshUser resolves a refresh token hash to its active user.
func (h *AuthHandler) refreshUser(ctx context.Context, hash string) (model.User, error) {
	invalid := echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh")
	uid, err := h.Tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrTokenInvalid) {
		return model.User{}, invalid
	}
	if err != nil {
		return model.User{}, echo.NewHTTPError(http.StatusInternalServerError, "validate refresh failed").SetInternal(err)
	}
	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrUserNotFound) || (err == nil && !u.IsActive) {
		return model.User{}, invalid
	}
	if err != nil {
		return model.User{}, echo.NewHTTPError(http.StatusInternalServerError, "load user failed").SetInternal(err)
	}
	return u, nil
}
