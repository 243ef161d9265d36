package services

import (
	"context"
	"time"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/adapters/persistence/repositories"
	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/pkg/metrics"
	"alumni-ledger/internal/pkg/pagination"
	"alumni-ledger/internal/pkg/validate"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService records payments and reconciles their approval with member totals
type PaymentService struct {
	tx       repositories.Transactor
	payments repositories.PaymentRepository
	users    repositories.UserRepository
	loans    repositories.LoanRepository
	ledger   *MemberLedgerService
	metrics  *metrics.Recorder
	log      *zap.Logger
	now      func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	tx repositories.Transactor,
	payments repositories.PaymentRepository,
	users repositories.UserRepository,
	loans repositories.LoanRepository,
	ledger *MemberLedgerService,
	recorder *metrics.Recorder,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		tx:       tx,
		payments: payments,
		users:    users,
		loans:    loans,
		ledger:   ledger,
		metrics:  recorder,
		log:      log.Named("payments"),
		now:      time.Now,
	}
}

// CreatePaymentInput represents create payment input. PayerID is honoured for admins only.
type CreatePaymentInput struct {
	PayerID     string             `json:"payer"`
	Amount      decimal.Decimal    `json:"amount" validate:"required,gt=0,money"`
	Type        domain.PaymentType `json:"type" validate:"required,oneof=dues donation pledge levy"`
	Description string             `json:"description" validate:"max=2000"`
	LoanID      string             `json:"loanId"`
	Date        *time.Time         `json:"date"`
	ReceiptURL  string             `json:"receiptUrl" validate:"omitempty,url,max=500"`
}

// UpdatePaymentStatusInput represents a payment review decision
type UpdatePaymentStatusInput struct {
	Status domain.PaymentStatus `json:"status" validate:"required"`
}

// PaymentListFilter represents payment list query parameters
type PaymentListFilter struct {
	PayerID string
	Status  domain.PaymentStatus
	Type    domain.PaymentType
}

// Create records a pending payment. A dues payment lowers dues owing immediately.
func (s *PaymentService) Create(ctx context.Context, actor domain.Actor, input CreatePaymentInput) (*models.Payment, error) {
	if msgs := validate.Check(input); len(msgs) > 0 {
		return nil, domain.ValidationFields(msgs)
	}

	payerID := actor.UserID
	if input.PayerID != "" {
		id, err := parseID(input.PayerID, "payer")
		if err != nil {
			return nil, err
		}
		if id != actor.UserID && !actor.IsAdmin() {
			return nil, domain.Forbidden("members can only record their own payments")
		}
		payerID = id
	}

	payment := &models.Payment{
		ID:          uuid.New(),
		PayerID:     payerID,
		Amount:      input.Amount,
		Type:        input.Type,
		Description: input.Description,
		Date:        s.now(),
		Status:      domain.PaymentStatusPending,
		ReceiptURL:  input.ReceiptURL,
	}
	if input.Date != nil {
		payment.Date = *input.Date
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.users.GetByID(ctx, payerID); err != nil {
			return notFoundOr(err, domain.NotFound("payer not found"), "load payer")
		}
		if input.LoanID != "" {
			loanID, err := parseID(input.LoanID, "loan")
			if err != nil {
				return err
			}
			loan, err := s.loans.GetByID(ctx, loanID)
			if err != nil {
				return notFoundOr(err, domain.Validation("referenced loan does not exist"), "load loan")
			}
			if loan.BorrowerID != payerID {
				return domain.Validation("referenced loan does not belong to the payer")
			}
			payment.LoanID = &loanID
		}

		if err := s.payments.Create(ctx, payment); err != nil {
			return wrapInternal("create payment", err)
		}
		return s.ledger.ApplyPaymentSubmitted(ctx, payment, actor.UserID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerTransition("payment", "submitted")
	s.log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("payer_id", payment.PayerID.String()),
		zap.String("type", string(payment.Type)),
		zap.String("amount", payment.Amount.String()),
	)
	return payment, nil
}

// UpdateStatus approves or rejects a payment and credits or reverses member totals
func (s *PaymentService) UpdateStatus(ctx context.Context, actor domain.Actor, id string, input UpdatePaymentStatusInput) (*models.Payment, error) {
	if err := domain.RequireRole(actor.Role, domain.AdminRoles...); err != nil {
		return nil, err
	}
	paymentID, err := parseID(id, "payment")
	if err != nil {
		return nil, err
	}
	if msgs := validate.Check(input); len(msgs) > 0 {
		return nil, domain.ValidationFields(msgs)
	}

	var (
		payment *models.Payment
		effect  PaymentEffect
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.payments.GetByIDForUpdate(ctx, paymentID)
		if err != nil {
			return notFoundOr(err, domain.ErrPaymentNotFound, "load payment")
		}
		effect, err = ResolvePaymentTransition(current.Status, input.Status, current.Credited)
		if err != nil {
			return err
		}

		now := s.now()
		current.Status = input.Status
		switch effect.Kind {
		case PaymentCredit:
			current.Credited = true
		case PaymentReversal:
			current.Credited = false
		}
		current.ReviewedBy = uuidPtr(actor.UserID)
		current.ReviewedAt = &now
		if err := s.payments.Update(ctx, current); err != nil {
			return wrapInternal("update payment", err)
		}

		switch effect.Kind {
		case PaymentCredit:
			err = s.ledger.ApplyPaymentApproved(ctx, current, actor.UserID)
		case PaymentReversal:
			err = s.ledger.ApplyPaymentReversed(ctx, current, actor.UserID)
		}
		if err != nil {
			return err
		}
		payment = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerTransition("payment", string(effect.Kind))
	s.log.Info("payment reviewed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("from", string(effect.From)),
		zap.String("to", string(effect.To)),
		zap.String("effect", string(effect.Kind)),
	)
	return payment, nil
}

// GetByID returns a payment to its payer or an admin
func (s *PaymentService) GetByID(ctx context.Context, actor domain.Actor, id string) (*models.Payment, error) {
	paymentID, err := parseID(id, "payment")
	if err != nil {
		return nil, err
	}
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrPaymentNotFound, "load payment")
	}
	if !actor.CanAccess(payment.PayerID) {
		return nil, domain.Forbidden("not allowed to view this payment")
	}
	return payment, nil
}

// List lists every payment (admin)
func (s *PaymentService) List(ctx context.Context, actor domain.Actor, filter PaymentListFilter, page *pagination.Params) ([]*models.Payment, int64, error) {
	if err := domain.RequireRole(actor.Role, domain.AdminRoles...); err != nil {
		return nil, 0, err
	}
	repoFilter, err := s.repoFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	if filter.PayerID != "" {
		payerID, err := parseID(filter.PayerID, "payer")
		if err != nil {
			return nil, 0, err
		}
		repoFilter.PayerID = &payerID
	}
	return s.list(ctx, repoFilter, page)
}

// ListMine lists the actor's own payments
func (s *PaymentService) ListMine(ctx context.Context, actor domain.Actor, filter PaymentListFilter, page *pagination.Params) ([]*models.Payment, int64, error) {
	repoFilter, err := s.repoFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	repoFilter.PayerID = uuidPtr(actor.UserID)
	return s.list(ctx, repoFilter, page)
}

func (s *PaymentService) repoFilter(filter PaymentListFilter) (repositories.PaymentFilter, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return repositories.PaymentFilter{}, domain.Validation("invalid payment status: %s", filter.Status)
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return repositories.PaymentFilter{}, domain.Validation("invalid payment type: %s", filter.Type)
	}
	return repositories.PaymentFilter{Status: filter.Status, Type: filter.Type}, nil
}

func (s *PaymentService) list(ctx context.Context, filter repositories.PaymentFilter, page *pagination.Params) ([]*models.Payment, int64, error) {
	payments, total, err := s.payments.List(ctx, filter, page.Offset, page.Limit)
	if err != nil {
		return nil, 0, wrapInternal("list payments", err)
	}
	return payments, total, nil
}
