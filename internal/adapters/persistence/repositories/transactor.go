package repositories

import (
	"context"

	"alumni-ledger/internal/core/domain"

	"gorm.io/gorm"
)

type txKey struct{}

// gormTransactor implements Transactor on top of gorm's Transaction
type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor creates a new gorm backed transactor
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

// WithinTransaction commits when fn returns nil and rolls back otherwise
func (t *gormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction carried by ctx, or db
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// applyPeriod restricts column to [start, end); zero bounds are open
func applyPeriod(q *gorm.DB, column string, period domain.DateRange) *gorm.DB {
	if !period.Start.IsZero() {
		q = q.Where(column+" >= ?", period.Start)
	}
	if !period.End.IsZero() {
		q = q.Where(column+" < ?", period.End)
	}
	return q
}
