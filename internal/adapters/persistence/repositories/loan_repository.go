package repositories

import (
	"context"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/core/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// loanRepository implements LoanRepository interface
type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

// Create creates a new loan
func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return conn(ctx, r.db).Omit(clause.Associations).Create(loan).Error
}

// GetByID gets a loan with its borrower
func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	err := conn(ctx, r.db).
		Preload("Borrower").
		Where("id = ?", id).
		First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// GetByIDForUpdate reads the loan with SELECT ... FOR UPDATE
func (r *loanRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// Update saves every loan column
func (r *loanRepository) Update(ctx context.Context, loan *models.Loan) error {
	return conn(ctx, r.db).Omit(clause.Associations).Save(loan).Error
}

// List lists loans with pagination
func (r *loanRepository) List(ctx context.Context, filter LoanFilter, offset, limit int) ([]*models.Loan, int64, error) {
	var loans []*models.Loan
	var total int64

	q := conn(ctx, r.db).Model(&models.Loan{})
	if filter.BorrowerID != nil {
		q = q.Where("borrower_id = ?", *filter.BorrowerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	q = q.Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Preload("Borrower").
		Order("application_date DESC").
		Offset(offset).
		Limit(limit).
		Find(&loans).Error

	return loans, total, err
}

// Aggregate groups loans applied for within period by status
func (r *loanRepository) Aggregate(ctx context.Context, period domain.DateRange) ([]LoanAggregate, error) {
	var rows []LoanAggregate
	q := applyPeriod(conn(ctx, r.db).Model(&models.Loan{}), "application_date", period)
	err := q.Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Group("status").
		Order("status").
		Scan(&rows).Error
	return rows, err
}
