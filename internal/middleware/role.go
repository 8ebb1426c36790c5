package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/krisefikser/internal/model"
)

// RequireAuth rejects requests that Authenticate left anonymous.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := IdentityOf(c); !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			return next(c)
		}
	}
}

// RequireRole admits callers holding at least one of roles.  There is no
// hierarchy: SUPER_ADMIN does not imply ADMIN.
func RequireRole(roles ...model.RoleName) echo.MiddlewareFunc {
	allowed := append([]model.RoleName(nil), roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := IdentityOf(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			if !p.HasAnyRole(allowed...) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
