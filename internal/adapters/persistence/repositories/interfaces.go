package repositories

import (
	"context"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transactor runs fn inside one database transaction. Repository calls made with the
// ctx passed to fn join that transaction; nested calls join the outer one.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CountByRole(ctx context.Context, role domain.Role) (int64, error)
}

// RefreshTokenRepository defines refresh token repository interface
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context) (int64, error)
	CountActiveByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}

// MemberFilter narrows member listings
type MemberFilter struct {
	Search         string
	Department     string
	GraduationYear int
}

// MemberTotals sums the running totals of every member
type MemberTotals struct {
	Members        int64           `json:"members"`
	TotalDuesPaid  decimal.Decimal `json:"totalDuesPaid"`
	DuesOwing      decimal.Decimal `json:"duesOwing"`
	TotalDonations decimal.Decimal `json:"totalDonations"`
	ActiveLoans    int64           `json:"activeLoans"`
	LoanBalance    decimal.Decimal `json:"loanBalance"`
}

// MemberRepository defines member aggregate repository interface
type MemberRepository interface {
	Create(ctx context.Context, member *models.Member) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Member, error)
	// GetByUserIDForUpdate locks the row until the surrounding transaction ends
	GetByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*models.Member, error)
	UpdateProfile(ctx context.Context, member *models.Member) error
	UpdateTotals(ctx context.Context, member *models.Member) error
	List(ctx context.Context, filter MemberFilter, offset, limit int) ([]*models.Member, int64, error)
	Totals(ctx context.Context) (*MemberTotals, error)
}

// LedgerEntryRepository stores the audit trail of aggregate adjustments
type LedgerEntryRepository interface {
	Create(ctx context.Context, entry *models.LedgerEntry) error
	ListByMember(ctx context.Context, memberID uuid.UUID, offset, limit int) ([]*models.LedgerEntry, int64, error)
}

// DueFilter narrows due listings
type DueFilter struct {
	OwnerID        *uuid.UUID
	Status         domain.DueStatus
	Type           domain.DueType
	IncludeDeleted bool
	OnlyDeleted    bool
}

// DueAggregate groups dues by type and status
type DueAggregate struct {
	Type   domain.DueType   `json:"type"`
	Status domain.DueStatus `json:"status"`
	Count  int64            `json:"count"`
	Total  decimal.Decimal  `json:"total"`
	Paid   decimal.Decimal  `json:"paid"`
}

// DueRepository defines due repository interface
type DueRepository interface {
	Create(ctx context.Context, due *models.Due) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Due, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Due, error)
	Update(ctx context.Context, due *models.Due) error
	List(ctx context.Context, filter DueFilter, offset, limit int) ([]*models.Due, int64, error)
	Aggregate(ctx context.Context, period domain.DateRange) ([]DueAggregate, error)
}

// LoanFilter narrows loan listings
type LoanFilter struct {
	BorrowerID *uuid.UUID
	Status     domain.LoanStatus
}

// LoanAggregate groups loans by status
type LoanAggregate struct {
	Status domain.LoanStatus `json:"status"`
	Count  int64             `json:"count"`
	Total  decimal.Decimal   `json:"total"`
}

// LoanRepository defines loan repository interface
type LoanRepository interface {
	Create(ctx context.Context, loan *models.Loan) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	Update(ctx context.Context, loan *models.Loan) error
	List(ctx context.Context, filter LoanFilter, offset, limit int) ([]*models.Loan, int64, error)
	Aggregate(ctx context.Context, period domain.DateRange) ([]LoanAggregate, error)
}

// PaymentFilter narrows payment listings
type PaymentFilter struct {
	PayerID *uuid.UUID
	Status  domain.PaymentStatus
	Type    domain.PaymentType
}

// PaymentAggregate groups payments by type and status
type PaymentAggregate struct {
	Type   domain.PaymentType   `json:"type"`
	Status domain.PaymentStatus `json:"status"`
	Count  int64                `json:"count"`
	Total  decimal.Decimal      `json:"total"`
}

// PaymentRepository defines payment repository interface
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
	List(ctx context.Context, filter PaymentFilter, offset, limit int) ([]*models.Payment, int64, error)
	Aggregate(ctx context.Context, period domain.DateRange) ([]PaymentAggregate, error)
}

// ReportRepository defines report repository interface. Reports are never updated.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	// List omits the data payload
	List(ctx context.Context, reportType domain.ReportType, offset, limit int) ([]*models.Report, int64, error)
}
