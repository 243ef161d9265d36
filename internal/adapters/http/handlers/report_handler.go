package handlers

import (
	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/core/services"
	"alumni-ledger/internal/pkg/pagination"
	"alumni-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ReportHandler handles report endpoints (Admin only)
type ReportHandler struct {
	reportService *services.ReportService
	log           *zap.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(reportService *services.ReportService, log *zap.Logger) *ReportHandler {
	return &ReportHandler{reportService: reportService, log: log}
}

// Generate builds and stores a report
// @Summary Generate report
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.GenerateReportInput true "Report type and period"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /reports [post]
func (h *ReportHandler) Generate(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var input services.GenerateReportInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	report, err := h.reportService.Generate(c.UserContext(), actor, input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Created(c, "Report generated successfully", report.ToResponse(true))
}

// List lists reports without their data payload
// @Summary List reports
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Param type query string false "Report type"
// @Success 200 {object} response.Response
// @Router /reports [get]
func (h *ReportHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	page := pagination.GetParams(c, pagination.DefaultLimit)
	reports, total, err := h.reportService.List(c.UserContext(), actor, domain.ReportType(c.Query("type")), page)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Reports retrieved successfully", pagination.NewPage(reports, page, total))
}

// GetByID returns one report. The raw data is included only with includeData=true.
// @Summary Get report
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param includeData query bool false "Include raw aggregation data"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /reports/{id} [get]
func (h *ReportHandler) GetByID(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	report, err := h.reportService.GetByID(c.UserContext(), actor, c.Params("id"), c.QueryBool("includeData"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Report retrieved successfully", report)
}
