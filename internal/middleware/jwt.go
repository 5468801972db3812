package middleware // middleware provides reusable HTTP middleware for the bidding API

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-live-bidding/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects the resolved identity into the request context.
// Token verification goes through utils.ParseIdentity, the same
// session gateway the WebSocket authenticate event uses, so the two
// entry points accept exactly the same tokens.  Handlers read the
// authenticated user via `c.Get("identity")` (an auction.Identity);
// the role claim is additionally stored under "role" for the role
// middleware.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			identity, err := utils.ParseIdentity(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set("identity", identity)
			c.Set("role", identity.Role)
			return next(c)
		}
	}
}
