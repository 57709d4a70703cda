package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gigmarket/identity/internal/core/domain"
	"github.com/gigmarket/identity/internal/core/ports"
)

// DashboardHandler serves the role-specific dashboard summaries.
type DashboardHandler struct {
	dashboards ports.DashboardService
}

func NewDashboardHandler(dashboards ports.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// Own returns the dashboard of the caller's current role.
//
// @Summary      Dashboard for the current role
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dashboardResponse
// @Failure      401  {object}  errorResponse
// @Router       /dashboard [get]
func (h *DashboardHandler) Own(c echo.Context) error {
	return h.render(c, "")
}

// Client returns the client dashboard.
//
// @Summary      Client dashboard
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dashboardResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /dashboard/client [get]
func (h *DashboardHandler) Client(c echo.Context) error {
	return h.render(c, domain.RoleClient)
}

// Freelancer returns the freelancer dashboard.
//
// @Summary      Freelancer dashboard
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dashboardResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /dashboard/freelancer [get]
func (h *DashboardHandler) Freelancer(c echo.Context) error {
	return h.render(c, domain.RoleFreelancer)
}

func (h *DashboardHandler) render(c echo.Context, role domain.Role) error {
	identity, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	d, err := h.dashboards.Dashboard(c.Request().Context(), identity, role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDashboardResponse(d))
}
