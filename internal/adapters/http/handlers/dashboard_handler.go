package handlers

import (
	"alumni-ledger/internal/core/services"
	"alumni-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DashboardHandler handles dashboard endpoints
type DashboardHandler struct {
	dashboardService *services.DashboardService
	log              *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboardService *services.DashboardService, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		log:              log,
	}
}

// GetAdminDashboard returns association-wide totals
// @Summary Admin Dashboard
// @Description Association overview (Admin only)
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /dashboard/admin [get]
func (h *DashboardHandler) GetAdminDashboard(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	data, err := h.dashboardService.GetAdminDashboard(c.UserContext(), actor)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Admin dashboard retrieved successfully", data)
}

// GetMyDashboard returns the dashboard for the caller's role
// @Summary My Dashboard
// @Description Admins get the association overview, members their own totals
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /dashboard [get]
func (h *DashboardHandler) GetMyDashboard(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var data interface{}
	if actor.IsAdmin() {
		data, err = h.dashboardService.GetAdminDashboard(c.UserContext(), actor)
	} else {
		data, err = h.dashboardService.GetMemberDashboard(c.UserContext(), actor.UserID)
	}
	if err != nil {
		return respondError(c, h.log, err)
	}

	return response.Success(c, "Dashboard retrieved successfully", fiber.Map{
		"role": actor.Role,
		"data": data,
	})
}
