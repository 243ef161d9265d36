package handlers

import (
	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/core/services"
	"alumni-ledger/internal/pkg/pagination"
	"alumni-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DueHandler handles due endpoints
type DueHandler struct {
	dueService *services.DueService
	log        *zap.Logger
}

// NewDueHandler creates a new due handler
func NewDueHandler(dueService *services.DueService, log *zap.Logger) *DueHandler {
	return &DueHandler{dueService: dueService, log: log}
}

// DeleteDueRequest optionally explains a deletion
type DeleteDueRequest struct {
	Reason string `json:"reason"`
}

func dueFilter(c *fiber.Ctx) services.DueListFilter {
	return services.DueListFilter{
		OwnerID:        c.Query("owner"),
		Status:         domain.DueStatus(c.Query("status")),
		Type:           domain.DueType(c.Query("type")),
		IncludeDeleted: c.QueryBool("includeDeleted"),
		OnlyDeleted:    c.QueryBool("deleted"),
	}
}

// Create issues a due to a member (Admin only)
// @Summary Create due
// @Tags Dues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateDueInput true "Due"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /dues [post]
func (h *DueHandler) Create(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var input services.CreateDueInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	due, err := h.dueService.Create(c.UserContext(), actor, input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Created(c, "Due created successfully", due)
}

// BulkCreate issues several dues, all or none (Admin only)
// @Summary Bulk create dues
// @Tags Dues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body []services.CreateDueInput true "Dues"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /dues/bulk [post]
func (h *DueHandler) BulkCreate(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var inputs []services.CreateDueInput
	if err := parseBody(c, &inputs); err != nil {
		return respondError(c, h.log, err)
	}

	dues, err := h.dueService.BulkCreate(c.UserContext(), actor, inputs)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Created(c, "Dues created successfully", dues)
}

// List lists dues (Admin only)
// @Summary List dues
// @Tags Dues
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Param owner query string false "Owner user ID"
// @Param status query string false "pending, approved or rejected"
// @Param type query string false "Due type"
// @Param includeDeleted query bool false "Include deleted dues"
// @Param deleted query bool false "Only deleted dues"
// @Success 200 {object} response.Response
// @Router /dues [get]
func (h *DueHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	page := pagination.GetParams(c, pagination.DefaultLimit)
	dues, total, err := h.dueService.List(c.UserContext(), actor, dueFilter(c), page)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Dues retrieved successfully", pagination.NewPage(dues, page, total))
}

// ListMine lists the caller's dues
// @Summary List own dues
// @Tags Dues
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Param status query string false "pending, approved or rejected"
// @Success 200 {object} response.Response
// @Router /dues/me [get]
func (h *DueHandler) ListMine(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	page := pagination.GetParams(c, pagination.DefaultLimit)
	dues, total, err := h.dueService.ListMine(c.UserContext(), actor, dueFilter(c), page)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Dues retrieved successfully", pagination.NewPage(dues, page, total))
}

// GetByID returns one due
// @Summary Get due
// @Tags Dues
// @Produce json
// @Security BearerAuth
// @Param id path string true "Due ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /dues/{id} [get]
func (h *DueHandler) GetByID(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	due, err := h.dueService.GetByID(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Due retrieved successfully", due)
}

// UpdateStatus records a payment against a due or changes its status (Admin only)
// @Summary Update due status
// @Tags Dues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Due ID"
// @Param body body services.UpdateDueStatusInput true "Status and/or paid amount"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /dues/{id}/status [patch]
func (h *DueHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var input services.UpdateDueStatusInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	due, err := h.dueService.UpdateStatus(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Due updated successfully", due)
}

// BulkUpdate applies several status updates, all or none (Admin only)
// @Summary Bulk update dues
// @Tags Dues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body []services.BulkUpdateDueInput true "Updates"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /dues/bulk [patch]
func (h *DueHandler) BulkUpdate(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var inputs []services.BulkUpdateDueInput
	if err := parseBody(c, &inputs); err != nil {
		return respondError(c, h.log, err)
	}

	dues, err := h.dueService.BulkUpdate(c.UserContext(), actor, inputs)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Dues updated successfully", dues)
}

// Delete soft deletes a due (Admin only)
// @Summary Delete due
// @Tags Dues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Due ID"
// @Param body body DeleteDueRequest false "Reason"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /dues/{id} [delete]
func (h *DueHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var req DeleteDueRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return respondError(c, h.log, err)
		}
	}

	due, err := h.dueService.SoftDelete(c.UserContext(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Due deleted successfully", due)
}

// Restore undoes a soft delete (Admin only)
// @Summary Restore due
// @Tags Dues
// @Produce json
// @Security BearerAuth
// @Param id path string true "Due ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /dues/{id}/restore [post]
func (h *DueHandler) Restore(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	due, err := h.dueService.Restore(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Due restored successfully", due)
}
