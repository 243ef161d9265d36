package repositories

import (
	"context"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/core/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// paymentRepository implements PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create creates a new payment
func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return conn(ctx, r.db).Omit(clause.Associations).Create(payment).Error
}

// GetByID gets a payment by ID
func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := conn(ctx, r.db).Where("id = ?", id).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByIDForUpdate reads the payment with SELECT ... FOR UPDATE
func (r *paymentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Update saves every payment column
func (r *paymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	return conn(ctx, r.db).Omit(clause.Associations).Save(payment).Error
}

// List lists payments by date, newest first
func (r *paymentRepository) List(ctx context.Context, filter PaymentFilter, offset, limit int) ([]*models.Payment, int64, error) {
	var payments []*models.Payment
	var total int64

	q := conn(ctx, r.db).Model(&models.Payment{})
	if filter.PayerID != nil {
		q = q.Where("payer_id = ?", *filter.PayerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}

	q = q.Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Order("date DESC, created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&payments).Error

	return payments, total, err
}

// Aggregate groups payments dated within period by type and status
func (r *paymentRepository) Aggregate(ctx context.Context, period domain.DateRange) ([]PaymentAggregate, error) {
	var rows []PaymentAggregate
	q := applyPeriod(conn(ctx, r.db).Model(&models.Payment{}), "date", period)
	err := q.Select("type, status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Group("type, status").
		Order("type, status").
		Scan(&rows).Error
	return rows, err
}
