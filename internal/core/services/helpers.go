package services

import (
	"errors"
	"strings"

	"alumni-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// parseID parses a record id; a malformed id is a validation error
func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, domain.Validation("invalid %s id format", what)
	}
	return id, nil
}

// notFoundOr maps gorm's missing-row error to notFound and wraps anything else
func notFoundOr(err error, notFound *domain.Error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return wrapInternal(op, err)
}

// wrapInternal wraps err unless it already carries a domain classification
func wrapInternal(op string, err error) error {
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return err
	}
	var bulk *domain.BulkError
	if errors.As(err, &bulk) {
		return err
	}
	return domain.Internal(op, err)
}

// wrapErr is wrapInternal that passes nil through
func wrapErr(err error, op string) error {
	if err == nil {
		return nil
	}
	return wrapInternal(op, err)
}

// floorZero clamps negative amounts to zero
func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
