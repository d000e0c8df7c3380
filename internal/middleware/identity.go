package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys written by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxName   = "name"
)

// CurrentUserID returns the authenticated user's id.
func CurrentUserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// CurrentRole returns the authenticated user's role, or "".
func CurrentRole(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// CurrentName returns the authenticated user's display name, or "".
func CurrentName(c echo.Context) string {
	n, _ := c.Get(ctxName).(string)
	return n
}

// userKey identifies the caller in rate-limit and cache keys; anonymous
// requests share "guest".
func userKey(c echo.Context) string {
	if id, ok := CurrentUserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "guest"
}
