package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/booking"
	"github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository"
	"github.com/iliyamo/slot-booking/internal/service"
)

// BookingService is the lifecycle the handlers drive.
type BookingService interface {
	Create(ctx context.Context, owner uint64, in service.SlotInput) (booking.Booking, error)
	Get(ctx context.Context, scope uint64, id string) (booking.Booking, error)
	List(ctx context.Context, scope uint64) ([]booking.Booking, error)
	Update(ctx context.Context, scope uint64, id string, in service.SlotInput) (booking.Booking, error)
	Delete(ctx context.Context, scope uint64, id string) error
}

// UserLookup resolves a user id; admin creates use it to check the owner.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// BookingHandler serves both the user routes, scoped to the caller's own
// bookings, and the admin routes, which see every booking.
type BookingHandler struct {
	Svc   BookingService
	Users UserLookup
	admin bool
}

// NewUserBookingHandler serves /api/v1/bookings, where every operation is
// scoped to the caller.
func NewUserBookingHandler(svc BookingService) *BookingHandler {
	return &BookingHandler{Svc: svc}
}

// NewAdminBookingHandler serves /api/v1/admin.  users resolves the owner
// named in an admin create.
func NewAdminBookingHandler(svc BookingService, users UserLookup) *BookingHandler {
	return &BookingHandler{Svc: svc, Users: users, admin: true}
}

type createReq struct {
	service.SlotInput
	UserID uint64 `json:"userId"`
}

// scope is the owner filter for the caller: AnyOwner on admin routes.
func (h *BookingHandler) scope(c echo.Context) (uint64, error) {
	if h.admin {
		return service.AnyOwner, nil
	}
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "not authorized to access this route")
	}
	return id, nil
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, validationBody([]string{"Request body must be valid JSON."}, nil))
}

// Create handles POST /bookings and POST /admin.  Users always book for
// themselves; admins may name the owner in userId and default to themselves.
// Returns 201, 400 on validation errors and 409 when the slot is taken.
func (h *BookingHandler) Create(c echo.Context) error {
	caller, ok := middleware.CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authorized to access this route")
	}
	var req createReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	owner := caller
	if h.admin && req.UserID != 0 && req.UserID != caller {
		if h.Users != nil {
			if _, err := h.Users.GetByID(ctx, req.UserID); err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					msg := "User with id: " + strconv.FormatUint(req.UserID, 10) + " doesn't exist"
					return c.JSON(http.StatusBadRequest, validationBody([]string{msg}, nil))
				}
				return echo.NewHTTPError(http.StatusInternalServerError, msgServer).SetInternal(err)
			}
		}
		owner = req.UserID
	}

	b, err := h.Svc.Create(ctx, owner, req.SlotInput)
	if err != nil {
		return bookingError(c, "", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success":   true,
		"user":      middleware.CurrentName(c),
		"bookingID": b.ID,
		"data":      echo.Map{"booking": b},
	})
}

// List returns the visible bookings, or a message when there are none.
func (h *BookingHandler) List(c echo.Context) error {
	scope, err := h.scope(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Svc.List(ctx, scope)
	if err != nil {
		return bookingError(c, "", err)
	}
	if len(items) == 0 {
		return c.JSON(http.StatusOK, echo.Map{"message": "No bookings available"})
	}
	if h.admin {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "bookings": items})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": items})
}

// Get returns one booking.  A missing booking is still a 200 carrying a
// message.
func (h *BookingHandler) Get(c echo.Context) error {
	scope, err := h.scope(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Svc.Get(ctx, scope, id)
	if errors.Is(err, booking.ErrNotFound) {
		return c.JSON(http.StatusOK, echo.Map{"message": notFoundMessage(id)})
	}
	if err != nil {
		return bookingError(c, id, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "booking": b})
}

// Update handles PUT /api/v1/bookings/:id and PUT /api/v1/admin/:id.  The
// body must carry date, startTime and endTime.  Returns 404 when the booking
// does not exist or belongs to someone else, 400 on validation errors and 409
// when the new slot overlaps another booking.
func (h *BookingHandler) Update(c echo.Context) error {
	scope, err := h.scope(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	var in service.SlotInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Svc.Update(ctx, scope, id, in)
	if err != nil {
		return bookingError(c, id, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "booking": b})
}

// Delete handles DELETE /api/v1/bookings/:id and DELETE /api/v1/admin/:id.
// Returns 404 when the booking does not exist or belongs to someone else.
func (h *BookingHandler) Delete(c echo.Context) error {
	scope, err := h.scope(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.Delete(ctx, scope, id); err != nil {
		return bookingError(c, id, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": nil})
}
