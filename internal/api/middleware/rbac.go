package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/gigmarket/identity/internal/core/domain"
)

// RBAC admits identities whose current role is one of allowedRoles. It must
// run after Auth.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := CurrentIdentity(c)
			if !ok {
				return deny("no_token", "missing authentication")
			}
			if _, ok := allowed[identity.Role]; !ok {
				return deny("forbidden", "access forbidden")
			}
			return next(c)
		}
	}
}
