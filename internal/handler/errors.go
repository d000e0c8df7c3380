package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/booking"
)

const (
	msgValidation = "Validation Error"
	msgConflict   = "This time slot is already booked"
	msgServer     = "Server Error"
)

func notFoundMessage(id string) string {
	return fmt.Sprintf("Booking with id: %s doesn't exist", id)
}

func validationBody(details []string, violations []booking.Violation) echo.Map {
	m := echo.Map{"message": msgValidation, "details": details}
	if violations != nil {
		m["violations"] = violations
	}
	return m
}

// bookingError turns a booking service error into its HTTP response.
func bookingError(c echo.Context, id string, err error) error {
	var ve *booking.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, validationBody(ve.Messages(), ve.Violations))
	case errors.Is(err, booking.ErrSlotConflict):
		return c.JSON(http.StatusConflict, echo.Map{"message": msgConflict})
	case errors.Is(err, booking.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": notFoundMessage(id)})
	}
	return echo.NewHTTPError(http.StatusInternalServerError, msgServer).SetInternal(err)
}

// HTTPErrorHandler renders errors that escaped the handlers as
// {"success":false,"error":...}.  Internal causes are logged, never sent.
func HTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, msg := http.StatusInternalServerError, msgServer
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if s, ok := he.Message.(string); ok {
				msg = s
			} else {
				msg = http.StatusText(code)
			}
			if he.Internal != nil {
				err = he.Internal
			}
		}
		if code >= http.StatusInternalServerError {
			log.Error("request failed", zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path), zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, echo.Map{"success": false, "error": msg})
	}
}
