package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gigmarket/identity/internal/api/middleware"
	"github.com/gigmarket/identity/internal/core/domain"
)

// ctxIdentity returns the identity injected by the Auth middleware. A missing
// identity means the route was wired without Auth; reject with 401.
func ctxIdentity(c echo.Context) (*domain.Identity, error) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return identity, nil
}
