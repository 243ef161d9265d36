package handlers

import (
	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/core/services"
	"alumni-ledger/internal/pkg/pagination"
	"alumni-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LoanHandler handles loan endpoints
type LoanHandler struct {
	loanService *services.LoanService
	log         *zap.Logger
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService *services.LoanService, log *zap.Logger) *LoanHandler {
	return &LoanHandler{loanService: loanService, log: log}
}

// Apply submits a loan application for the caller
// @Summary Apply for loan
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.ApplyLoanInput true "Application"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /loans [post]
func (h *LoanHandler) Apply(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var input services.ApplyLoanInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	loan, err := h.loanService.Apply(c.UserContext(), actor, input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Created(c, "Loan application submitted", loan)
}

// List lists every loan (Admin only)
// @Summary List loans
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param status query string false "Loan status"
// @Success 200 {object} response.Response
// @Router /loans [get]
func (h *LoanHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	page := pagination.GetParams(c, pagination.LoanLimit)
	loans, total, err := h.loanService.List(c.UserContext(), actor, domain.LoanStatus(c.Query("status")), page)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Loans retrieved successfully", pagination.NewPage(loans, page, total))
}

// ListMine lists the caller's loans
// @Summary List own loans
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param status query string false "Loan status"
// @Success 200 {object} response.Response
// @Router /loans/me [get]
func (h *LoanHandler) ListMine(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return h.listByBorrower(c, actor, actor.UserID.String())
}

// ListByBorrower lists one member's loans
// @Summary List member loans
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Borrower user ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /loans/member/{userId} [get]
func (h *LoanHandler) ListByBorrower(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return h.listByBorrower(c, actor, c.Params("userId"))
}

func (h *LoanHandler) listByBorrower(c *fiber.Ctx, actor domain.Actor, borrowerID string) error {
	page := pagination.GetParams(c, pagination.LoanLimit)
	loans, total, err := h.loanService.ListByBorrower(c.UserContext(), actor, borrowerID, domain.LoanStatus(c.Query("status")), page)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Loans retrieved successfully", pagination.NewPage(loans, page, total))
}

// GetByID returns one loan
// @Summary Get loan
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id} [get]
func (h *LoanHandler) GetByID(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	loan, err := h.loanService.GetByID(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Loan retrieved successfully", loan)
}

// UpdateStatus moves a loan through its lifecycle (Admin only)
// @Summary Update loan status
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Param body body services.UpdateLoanStatusInput true "Status"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /loans/{id}/status [patch]
func (h *LoanHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var input services.UpdateLoanStatusInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	loan, err := h.loanService.UpdateStatus(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Loan updated successfully", loan)
}
