package repositories

import (
	"context"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/core/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dueRepository implements DueRepository interface
type dueRepository struct {
	db *gorm.DB
}

// NewDueRepository creates a new due repository
func NewDueRepository(db *gorm.DB) DueRepository {
	return &dueRepository{db: db}
}

// Create creates a new due
func (r *dueRepository) Create(ctx context.Context, due *models.Due) error {
	return conn(ctx, r.db).Omit(clause.Associations).Create(due).Error
}

// GetByID gets a due by ID, deleted or not
func (r *dueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Due, error) {
	var due models.Due
	err := conn(ctx, r.db).Where("id = ?", id).First(&due).Error
	if err != nil {
		return nil, err
	}
	return &due, nil
}

// GetByIDForUpdate reads the due with SELECT ... FOR UPDATE
func (r *dueRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Due, error) {
	var due models.Due
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&due).Error
	if err != nil {
		return nil, err
	}
	return &due, nil
}

// Update saves every due column
func (r *dueRepository) Update(ctx context.Context, due *models.Due) error {
	return conn(ctx, r.db).Omit(clause.Associations).Save(due).Error
}

// List lists dues newest first
func (r *dueRepository) List(ctx context.Context, filter DueFilter, offset, limit int) ([]*models.Due, int64, error) {
	var dues []*models.Due
	var total int64

	q := conn(ctx, r.db).Model(&models.Due{})
	if filter.OwnerID != nil {
		q = q.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	switch {
	case filter.OnlyDeleted:
		q = q.Where("is_deleted = ?", true)
	case !filter.IncludeDeleted:
		q = q.Where("is_deleted = ?", false)
	}

	q = q.Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&dues).Error

	return dues, total, err
}

// Aggregate groups live dues created within period
func (r *dueRepository) Aggregate(ctx context.Context, period domain.DateRange) ([]DueAggregate, error) {
	var rows []DueAggregate
	q := conn(ctx, r.db).Model(&models.Due{}).Where("is_deleted = ?", false)
	q = applyPeriod(q, "created_at", period)
	err := q.Select(`type, status, COUNT(*) AS count,
			COALESCE(SUM(amount), 0) AS total,
			COALESCE(SUM(paid_amount), 0) AS paid`).
		Group("type, status").
		Order("type, status").
		Scan(&rows).Error
	return rows, err
}
