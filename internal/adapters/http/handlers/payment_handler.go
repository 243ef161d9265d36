package handlers

import (
	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/core/services"
	"alumni-ledger/internal/pkg/pagination"
	"alumni-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PaymentHandler handles payment endpoints
type PaymentHandler struct {
	paymentService *services.PaymentService
	log            *zap.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *services.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, log: log}
}

func paymentFilter(c *fiber.Ctx) services.PaymentListFilter {
	return services.PaymentListFilter{
		PayerID: c.Query("payer"),
		Status:  domain.PaymentStatus(c.Query("status")),
		Type:    domain.PaymentType(c.Query("type")),
	}
}

// Create records a payment
// @Summary Record payment
// @Description Members record their own payments; admins may name any payer
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreatePaymentInput true "Payment"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /payments [post]
func (h *PaymentHandler) Create(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var input services.CreatePaymentInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	payment, err := h.paymentService.Create(c.UserContext(), actor, input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Created(c, "Payment recorded successfully", payment)
}

// List lists every payment (Admin only)
// @Summary List payments
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Param payer query string false "Payer user ID"
// @Param status query string false "pending, approved or rejected"
// @Param type query string false "dues, donation, pledge or levy"
// @Success 200 {object} response.Response
// @Router /payments [get]
func (h *PaymentHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	page := pagination.GetParams(c, pagination.DefaultLimit)
	payments, total, err := h.paymentService.List(c.UserContext(), actor, paymentFilter(c), page)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Payments retrieved successfully", pagination.NewPage(payments, page, total))
}

// ListMine lists the caller's payments
// @Summary List own payments
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Success 200 {object} response.Response
// @Router /payments/me [get]
func (h *PaymentHandler) ListMine(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	page := pagination.GetParams(c, pagination.DefaultLimit)
	payments, total, err := h.paymentService.ListMine(c.UserContext(), actor, paymentFilter(c), page)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Payments retrieved successfully", pagination.NewPage(payments, page, total))
}

// GetByID returns one payment
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /payments/{id} [get]
func (h *PaymentHandler) GetByID(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	payment, err := h.paymentService.GetByID(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Payment retrieved successfully", payment)
}

// UpdateStatus approves or rejects a payment (Admin only)
// @Summary Review payment
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Param body body services.UpdatePaymentStatusInput true "Status"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /payments/{id}/status [patch]
func (h *PaymentHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var input services.UpdatePaymentStatusInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	payment, err := h.paymentService.UpdateStatus(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Success(c, "Payment updated successfully", payment)
}
