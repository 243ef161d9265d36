package repositories

import (
	"context"

	"alumni-ledger/internal/adapters/persistence/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ledgerEntryRepository implements LedgerEntryRepository interface
type ledgerEntryRepository struct {
	db *gorm.DB
}

// NewLedgerEntryRepository creates a new ledger entry repository
func NewLedgerEntryRepository(db *gorm.DB) LedgerEntryRepository {
	return &ledgerEntryRepository{db: db}
}

// Create appends an audit entry
func (r *ledgerEntryRepository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return conn(ctx, r.db).Create(entry).Error
}

// ListByMember lists entries newest first
func (r *ledgerEntryRepository) ListByMember(ctx context.Context, memberID uuid.UUID, offset, limit int) ([]*models.LedgerEntry, int64, error) {
	var entries []*models.LedgerEntry
	var total int64

	q := conn(ctx, r.db).Model(&models.LedgerEntry{}).Where("member_id = ?", memberID)
	q = q.Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error

	return entries, total, err
}
