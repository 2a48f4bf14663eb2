package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/r3hc/ovr/internal/platform/apperr"
)

// RequireRole allows the request through when the principal holds one of
// roles. Admins always pass.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if p == nil {
				return apperr.Unauthorized("authentication required")
			}
			if p.IsAdmin() {
				return next(c)
			}
			for _, r := range roles {
				if p.Role == r {
					return next(c)
				}
			}
			return apperr.Forbidden("Admin access required")
		}
	}
}

func RequireAdmin() echo.MiddlewareFunc {
	return RequireRole(RoleAdmin)
}
