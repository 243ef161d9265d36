package repositories

import (
	"context"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/core/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// reportRepository implements ReportRepository interface
type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

// Create stores a generated report
func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	return conn(ctx, r.db).Create(report).Error
}

// GetByID gets a report including its data payload
func (r *reportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := conn(ctx, r.db).Where("id = ?", id).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// List lists reports newest first without their data payload
func (r *reportRepository) List(ctx context.Context, reportType domain.ReportType, offset, limit int) ([]*models.Report, int64, error) {
	var reports []*models.Report
	var total int64

	q := conn(ctx, r.db).Model(&models.Report{})
	if reportType != "" {
		q = q.Where("type = ?", reportType)
	}

	q = q.Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Omit("data").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&reports).Error

	return reports, total, err
}
