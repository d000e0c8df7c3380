// Package middleware holds the echo middleware guarding and instrumenting
// the API: authentication, role gates, rate limiting, response caching and
// request logging.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/utils"
)

// TokenCookie is the cookie the auth endpoints set alongside the JSON token.
const TokenCookie = "token"

const msgNotAuthorized = "not authorized to access this route"

// JWTAuth requires a valid access token, taken from the Authorization
// bearer header or, failing that, the token cookie.  The user id, role and
// name claims are stored on the context for handlers.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearer(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": msgNotAuthorized})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": msgNotAuthorized})
			}
			c.Set(ctxUserID, claims.UserID)
			c.Set(ctxRole, claims.Role)
			c.Set(ctxName, claims.Name)
			return next(c)
		}
	}
}

// OptionalJWT behaves like JWTAuth for a valid token but lets requests
// without one, or with a bad one, through anonymously.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := bearer(c); raw != "" {
				if claims, err := utils.ParseAccessToken(secret, raw); err == nil {
					c.Set(ctxUserID, claims.UserID)
					c.Set(ctxRole, claims.Role)
					c.Set(ctxName, claims.Name)
				}
			}
			return next(c)
		}
	}
}

func bearer(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if ck, err := c.Cookie(TokenCookie); err == nil {
		return ck.Value
	}
	return ""
}
