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

// LoanService handles loan applications and their status lifecycle
type LoanService struct {
	tx        repositories.Transactor
	loans     repositories.LoanRepository
	ledger    *MemberLedgerService
	minAmount decimal.Decimal
	metrics   *metrics.Recorder
	log       *zap.Logger
	now       func() time.Time
}

// NewLoanService creates a new loan service. Applications below minAmount are rejected.
func NewLoanService(
	tx repositories.Transactor,
	loans repositories.LoanRepository,
	ledger *MemberLedgerService,
	minAmount decimal.Decimal,
	recorder *metrics.Recorder,
	log *zap.Logger,
) *LoanService {
	return &LoanService{
		tx:        tx,
		loans:     loans,
		ledger:    ledger,
		minAmount: minAmount,
		metrics:   recorder,
		log:       log.Named("loans"),
		now:       time.Now,
	}
}

// ApplyLoanInput represents a loan application
type ApplyLoanInput struct {
	Amount         decimal.Decimal       `json:"amount" validate:"required,gt=0,money"`
	Purpose        string                `json:"purpose" validate:"required,max=2000"`
	RepaymentTerms domain.RepaymentTerms `json:"repaymentTerms" validate:"omitempty,oneof=3_months 6_months 12_months 24_months"`
	DueDate        *time.Time            `json:"dueDate"`
}

// UpdateLoanStatusInput represents a loan status change
type UpdateLoanStatusInput struct {
	Status domain.LoanStatus `json:"status" validate:"required"`
}

// Apply files a pending loan for the acting member
func (s *LoanService) Apply(ctx context.Context, actor domain.Actor, input ApplyLoanInput) (*models.Loan, error) {
	if msgs := validate.Check(input); len(msgs) > 0 {
		return nil, domain.ValidationFields(msgs)
	}
	if input.Amount.LessThan(s.minAmount) {
		return nil, domain.Validation("amount must be at least %s", s.minAmount.StringFixed(2))
	}

	now := s.now()
	dueDate := now.AddDate(0, 12, 0)
	if input.DueDate != nil {
		dueDate = *input.DueDate
	}
	if !dueDate.After(now) {
		return nil, domain.Validation("dueDate must be in the future")
	}
	terms := input.RepaymentTerms
	if terms == "" {
		terms = domain.DefaultRepaymentTerms
	}

	loan := &models.Loan{
		ID:              uuid.New(),
		BorrowerID:      actor.UserID,
		Amount:          input.Amount,
		Purpose:         input.Purpose,
		ApplicationDate: now,
		Status:          domain.LoanStatusPending,
		RepaymentTerms:  terms,
		DueDate:         dueDate,
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.loans.Create(ctx, loan); err != nil {
			return wrapInternal("create loan", err)
		}
		return s.ledger.ApplyLoanApplication(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerTransition("loan", "applied")
	s.log.Info("loan applied",
		zap.String("loan_id", loan.ID.String()),
		zap.String("borrower_id", loan.BorrowerID.String()),
		zap.String("amount", loan.Amount.String()),
	)
	return loan, nil
}

// UpdateStatus moves a loan along its status graph and adjusts the borrower's totals
func (s *LoanService) UpdateStatus(ctx context.Context, actor domain.Actor, id string, input UpdateLoanStatusInput) (*models.Loan, error) {
	if err := domain.RequireRole(actor.Role, domain.AdminRoles...); err != nil {
		return nil, err
	}
	loanID, err := parseID(id, "loan")
	if err != nil {
		return nil, err
	}
	if msgs := validate.Check(input); len(msgs) > 0 {
		return nil, domain.ValidationFields(msgs)
	}

	var (
		loan   *models.Loan
		effect LoanEffect
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.loans.GetByIDForUpdate(ctx, loanID)
		if err != nil {
			return notFoundOr(err, domain.ErrLoanNotFound, "load loan")
		}
		effect, err = ResolveLoanTransition(current.Status, input.Status)
		if err != nil {
			return err
		}
		if effect.Kind == LoanNoOp {
			loan = current
			return nil
		}

		current.Status = input.Status
		if input.Status == domain.LoanStatusApproved {
			now := s.now()
			current.ApprovedBy = uuidPtr(actor.UserID)
			current.ApprovalDate = &now
		} else {
			current.ApprovedBy = nil
			current.ApprovalDate = nil
		}
		if err := s.loans.Update(ctx, current); err != nil {
			return wrapInternal("update loan", err)
		}

		switch effect.Kind {
		case LoanApproved:
			err = s.ledger.ApplyLoanApproval(ctx, current, actor.UserID)
		case LoanRepaid:
			err = s.ledger.ApplyLoanRepaid(ctx, current, actor.UserID)
		case LoanRejected:
			err = s.ledger.ApplyLoanRejection(ctx, current, actor.UserID)
		}
		if err != nil {
			return err
		}
		loan = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerTransition("loan", string(effect.Kind))
	s.log.Info("loan status changed",
		zap.String("loan_id", loan.ID.String()),
		zap.String("from", string(effect.From)),
		zap.String("to", string(effect.To)),
	)
	return loan, nil
}

// GetByID returns a loan to its borrower or an admin
func (s *LoanService) GetByID(ctx context.Context, actor domain.Actor, id string) (*models.Loan, error) {
	loanID, err := parseID(id, "loan")
	if err != nil {
		return nil, err
	}
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrLoanNotFound, "load loan")
	}
	if !actor.CanAccess(loan.BorrowerID) {
		return nil, domain.Forbidden("not allowed to view this loan")
	}
	return loan, nil
}

// ListByBorrower lists one borrower's loans. Members may only list their own.
func (s *LoanService) ListByBorrower(ctx context.Context, actor domain.Actor, borrowerID string, status domain.LoanStatus, page *pagination.Params) ([]*models.Loan, int64, error) {
	id, err := parseID(borrowerID, "user")
	if err != nil {
		return nil, 0, err
	}
	if !actor.CanAccess(id) {
		return nil, 0, domain.Forbidden("not allowed to view these loans")
	}
	return s.list(ctx, repositories.LoanFilter{BorrowerID: &id, Status: status}, page)
}

// List lists every loan (admin)
func (s *LoanService) List(ctx context.Context, actor domain.Actor, status domain.LoanStatus, page *pagination.Params) ([]*models.Loan, int64, error) {
	if err := domain.RequireRole(actor.Role, domain.AdminRoles...); err != nil {
		return nil, 0, err
	}
	return s.list(ctx, repositories.LoanFilter{Status: status}, page)
}

func (s *LoanService) list(ctx context.Context, filter repositories.LoanFilter, page *pagination.Params) ([]*models.Loan, int64, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, domain.Validation("invalid loan status: %s", filter.Status)
	}
	loans, total, err := s.loans.List(ctx, filter, page.Offset, page.Limit)
	if err != nil {
		return nil, 0, wrapInternal("list loans", err)
	}
	return loans, total, nil
}
