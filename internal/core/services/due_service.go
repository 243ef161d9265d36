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

// DueService issues dues and applies payments and status changes to them
type DueService struct {
	tx      repositories.Transactor
	dues    repositories.DueRepository
	users   repositories.UserRepository
	members repositories.MemberRepository
	ledger  *MemberLedgerService
	metrics *metrics.Recorder
	log     *zap.Logger
	now     func() time.Time
}

// NewDueService creates a new due service
func NewDueService(
	tx repositories.Transactor,
	dues repositories.DueRepository,
	users repositories.UserRepository,
	members repositories.MemberRepository,
	ledger *MemberLedgerService,
	recorder *metrics.Recorder,
	log *zap.Logger,
) *DueService {
	return &DueService{
		tx:      tx,
		dues:    dues,
		users:   users,
		members: members,
		ledger:  ledger,
		metrics: recorder,
		log:     log.Named("dues"),
		now:     time.Now,
	}
}

// CreateDueInput represents create due input
type CreateDueInput struct {
	OwnerID     string          `json:"owner" validate:"required"`
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Amount      decimal.Decimal `json:"amount" validate:"required,gt=0,money"`
	Type        domain.DueType  `json:"type" validate:"required,oneof=annual condolence wedding other"`
	DueDate     time.Time       `json:"dueDate" validate:"required"`
}

// UpdateDueStatusInput carries either a payment increment or a target status
type UpdateDueStatusInput struct {
	Status     *domain.DueStatus `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	PaidAmount *decimal.Decimal  `json:"paidAmount" validate:"omitempty,gt=0,money"`
}

// BulkUpdateDueInput is one element of a bulk update
type BulkUpdateDueInput struct {
	ID string `json:"id" validate:"required"`
	UpdateDueStatusInput
}

// DueListFilter represents due list query parameters
type DueListFilter struct {
	OwnerID        string
	Status         domain.DueStatus
	Type           domain.DueType
	IncludeDeleted bool
	OnlyDeleted    bool
}

// ============================================================
// Create
// ============================================================

// Create issues a due to a member and raises their dues owing
func (s *DueService) Create(ctx context.Context, actor domain.Actor, input CreateDueInput) (*models.Due, error) {
	var due *models.Due
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkIssuer(ctx, actor); err != nil {
			return err
		}
		prepared, err := s.prepareDue(ctx, actor, input)
		if err != nil {
			return err
		}
		if err := s.persistDue(ctx, actor, prepared); err != nil {
			return err
		}
		due = prepared
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerTransition("due", "issued")
	s.log.Info("due issued",
		zap.String("due_id", due.ID.String()),
		zap.String("owner_id", due.OwnerID.String()),
		zap.String("amount", due.Amount.String()),
	)
	return due, nil
}

// BulkCreate issues every due or none. Every item is validated before anything is
// written; failures are reported by index.
func (s *DueService) BulkCreate(ctx context.Context, actor domain.Actor, inputs []CreateDueInput) ([]*models.Due, error) {
	if len(inputs) == 0 {
		return nil, domain.Validation("at least one due is required")
	}

	var created []*models.Due
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkIssuer(ctx, actor); err != nil {
			return err
		}

		bulk := &domain.BulkError{}
		prepared := make([]*models.Due, 0, len(inputs))
		for i, input := range inputs {
			due, err := s.prepareDue(ctx, actor, input)
			if err != nil {
				if domain.IsKind(err, domain.KindInternal) {
					return err
				}
				bulk.Add(i, err)
				continue
			}
			prepared = append(prepared, due)
		}
		if err := bulk.OrNil(); err != nil {
			return err
		}

		for _, due := range prepared {
			if err := s.persistDue(ctx, actor, due); err != nil {
				return err
			}
		}
		created = prepared
		return nil
	})
	if err != nil {
		return nil, err
	}

	for range created {
		s.metrics.LedgerTransition("due", "issued")
	}
	s.log.Info("dues issued in bulk", zap.Int("count", len(created)))
	return created, nil
}

// checkIssuer requires the acting user to exist and hold an admin role
func (s *DueService) checkIssuer(ctx context.Context, actor domain.Actor) error {
	issuer, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return notFoundOr(err, domain.NotFound("issuer not found"), "load issuer")
	}
	return domain.RequireRole(issuer.Role, domain.AdminRoles...)
}

// prepareDue validates input and builds the due without writing anything
func (s *DueService) prepareDue(ctx context.Context, actor domain.Actor, input CreateDueInput) (*models.Due, error) {
	if msgs := validate.Check(input); len(msgs) > 0 {
		return nil, domain.ValidationFields(msgs)
	}
	ownerID, err := parseID(input.OwnerID, "owner")
	if err != nil {
		return nil, err
	}
	if !input.DueDate.After(s.now()) {
		return nil, domain.Validation("dueDate must be in the future")
	}

	if _, err := s.members.GetByUserID(ctx, ownerID); err != nil {
		return nil, notFoundOr(err, domain.NotFound("owner %s not found", ownerID), "load owner")
	}

	return &models.Due{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       input.Title,
		Description: input.Description,
		Amount:      input.Amount,
		Type:        input.Type,
		DueDate:     input.DueDate,
		Status:      domain.DueStatusPending,
		PaidAmount:  decimal.Zero,
		IssuedBy:    actor.UserID,
	}, nil
}

func (s *DueService) persistDue(ctx context.Context, actor domain.Actor, due *models.Due) error {
	if err := s.dues.Create(ctx, due); err != nil {
		return wrapInternal("create due", err)
	}
	return s.ledger.ApplyDueIssued(ctx, due, actor.UserID)
}

// ============================================================
// Status / payment
// ============================================================

// UpdateStatus records a payment increment or moves the due to a new status
func (s *DueService) UpdateStatus(ctx context.Context, actor domain.Actor, id string, input UpdateDueStatusInput) (*models.Due, error) {
	if err := domain.RequireRole(actor.Role, domain.AdminRoles...); err != nil {
		return nil, err
	}
	dueID, err := parseID(id, "due")
	if err != nil {
		return nil, err
	}

	var (
		due     *models.Due
		outcome DueOutcome
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.loadLive(ctx, dueID)
		if err != nil {
			return err
		}
		outcome, err = s.resolve(current, input)
		if err != nil {
			return err
		}
		if err := s.commitOutcome(ctx, actor, current, outcome); err != nil {
			return err
		}
		due = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerTransition("due", string(outcome.Kind))
	s.log.Info("due updated",
		zap.String("due_id", due.ID.String()),
		zap.String("outcome", string(outcome.Kind)),
		zap.String("applied", outcome.Applied.String()),
	)
	return due, nil
}

// BulkUpdate applies every update or none. Updates to the same due in one batch are
// resolved in order.
func (s *DueService) BulkUpdate(ctx context.Context, actor domain.Actor, inputs []BulkUpdateDueInput) ([]*models.Due, error) {
	if err := domain.RequireRole(actor.Role, domain.AdminRoles...); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, domain.Validation("at least one update is required")
	}

	type plan struct {
		due     *models.Due
		before  models.Due
		outcome DueOutcome
	}

	var updated []*models.Due
	var plans []plan
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		bulk := &domain.BulkError{}
		working := map[uuid.UUID]*models.Due{}
		plans = make([]plan, 0, len(inputs))

		for i, input := range inputs {
			if msgs := validate.Check(input); len(msgs) > 0 {
				bulk.Add(i, domain.ValidationFields(msgs))
				continue
			}
			dueID, err := parseID(input.ID, "due")
			if err != nil {
				bulk.Add(i, err)
				continue
			}

			due, ok := working[dueID]
			if !ok {
				due, err = s.loadLive(ctx, dueID)
				if err != nil {
					if domain.IsKind(err, domain.KindInternal) {
						return err
					}
					bulk.Add(i, err)
					continue
				}
				working[dueID] = due
			}

			outcome, err := s.resolve(due, input.UpdateDueStatusInput)
			if err != nil {
				bulk.Add(i, err)
				continue
			}
			before := *due
			due.PaidAmount = outcome.PaidAmount
			due.Status = outcome.Status
			plans = append(plans, plan{due: due, before: before, outcome: outcome})
		}
		if err := bulk.OrNil(); err != nil {
			return err
		}

		for _, p := range plans {
			// working copies already carry the final state
			if err := s.dues.Update(ctx, p.due); err != nil {
				return wrapInternal("update due", err)
			}
			if p.outcome.Applied.IsPositive() {
				if err := s.ledger.ApplyDuePayment(ctx, p.due, p.outcome.Applied, p.outcome.Settled(), actor.UserID); err != nil {
					return err
				}
			}
		}

		updated = make([]*models.Due, 0, len(plans))
		for _, p := range plans {
			updated = append(updated, p.due)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range plans {
		s.metrics.LedgerTransition("due", string(p.outcome.Kind))
	}
	s.log.Info("dues updated in bulk", zap.Int("count", len(updated)))
	return updated, nil
}

func (s *DueService) resolve(due *models.Due, input UpdateDueStatusInput) (DueOutcome, error) {
	if msgs := validate.Check(input); len(msgs) > 0 {
		return DueOutcome{}, domain.ValidationFields(msgs)
	}
	switch {
	case input.PaidAmount != nil:
		return ResolveDuePayment(due, *input.PaidAmount)
	case input.Status != nil:
		return ResolveDueStatus(due, *input.Status)
	}
	return DueOutcome{}, domain.Validation("status or paidAmount is required")
}

func (s *DueService) commitOutcome(ctx context.Context, actor domain.Actor, due *models.Due, outcome DueOutcome) error {
	due.PaidAmount = outcome.PaidAmount
	due.Status = outcome.Status
	if err := s.dues.Update(ctx, due); err != nil {
		return wrapInternal("update due", err)
	}
	if !outcome.Applied.IsPositive() {
		return nil
	}
	return s.ledger.ApplyDuePayment(ctx, due, outcome.Applied, outcome.Settled(), actor.UserID)
}

// loadLive locks a due that has not been soft deleted
func (s *DueService) loadLive(ctx context.Context, id uuid.UUID) (*models.Due, error) {
	due, err := s.dues.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrDueNotFound, "load due")
	}
	if due.IsDeleted {
		return nil, domain.Validation("due %s is deleted", id)
	}
	return due, nil
}

// ============================================================
// Soft delete
// ============================================================

// SoftDelete hides a due. Member totals are left unchanged.
func (s *DueService) SoftDelete(ctx context.Context, actor domain.Actor, id, reason string) (*models.Due, error) {
	if err := domain.RequireRole(actor.Role, domain.AdminRoles...); err != nil {
		return nil, err
	}
	dueID, err := parseID(id, "due")
	if err != nil {
		return nil, err
	}

	var due *models.Due
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.dues.GetByIDForUpdate(ctx, dueID)
		if err != nil {
			return notFoundOr(err, domain.ErrDueNotFound, "load due")
		}
		if current.IsDeleted {
			return domain.ErrDueAlreadyDeleted
		}

		now := s.now()
		current.IsDeleted = true
		current.DeletedAt = &now
		current.DeletedBy = uuidPtr(actor.UserID)
		current.DeletionReason = reason
		current.RestoredAt = nil
		current.RestoredBy = nil

		if err := s.dues.Update(ctx, current); err != nil {
			return wrapInternal("update due", err)
		}
		due = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("due deleted", zap.String("due_id", due.ID.String()), zap.String("reason", reason))
	return due, nil
}

// Restore makes a soft deleted due visible again
func (s *DueService) Restore(ctx context.Context, actor domain.Actor, id string) (*models.Due, error) {
	if err := domain.RequireRole(actor.Role, domain.AdminRoles...); err != nil {
		return nil, err
	}
	dueID, err := parseID(id, "due")
	if err != nil {
		return nil, err
	}

	var due *models.Due
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.dues.GetByIDForUpdate(ctx, dueID)
		if err != nil {
			return notFoundOr(err, domain.ErrDueNotFound, "load due")
		}
		if !current.IsDeleted {
			return domain.ErrDueNotDeleted
		}

		now := s.now()
		current.IsDeleted = false
		current.DeletedAt = nil
		current.DeletedBy = nil
		current.DeletionReason = ""
		current.RestoredAt = &now
		current.RestoredBy = uuidPtr(actor.UserID)

		if err := s.dues.Update(ctx, current); err != nil {
			return wrapInternal("update due", err)
		}
		due = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("due restored", zap.String("due_id", due.ID.String()))
	return due, nil
}

// ============================================================
// Queries
// ============================================================

// GetByID returns a due to its owner or an admin. Deleted dues are visible to admins only.
func (s *DueService) GetByID(ctx context.Context, actor domain.Actor, id string) (*models.Due, error) {
	dueID, err := parseID(id, "due")
	if err != nil {
		return nil, err
	}
	due, err := s.dues.GetByID(ctx, dueID)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrDueNotFound, "load due")
	}
	if due.IsDeleted && !actor.IsAdmin() {
		return nil, domain.ErrDueNotFound
	}
	if !actor.CanAccess(due.OwnerID) {
		return nil, domain.Forbidden("not allowed to view this due")
	}
	return due, nil
}

// List lists all dues (admin)
func (s *DueService) List(ctx context.Context, actor domain.Actor, filter DueListFilter, page *pagination.Params) ([]*models.Due, int64, error) {
	if err := domain.RequireRole(actor.Role, domain.AdminRoles...); err != nil {
		return nil, 0, err
	}

	repoFilter, err := s.repoFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	if filter.OwnerID != "" {
		ownerID, err := parseID(filter.OwnerID, "owner")
		if err != nil {
			return nil, 0, err
		}
		repoFilter.OwnerID = &ownerID
	}
	repoFilter.IncludeDeleted = filter.IncludeDeleted
	repoFilter.OnlyDeleted = filter.OnlyDeleted

	dues, total, err := s.dues.List(ctx, repoFilter, page.Offset, page.Limit)
	if err != nil {
		return nil, 0, wrapInternal("list dues", err)
	}
	return dues, total, nil
}

// ListMine lists the actor's own live dues
func (s *DueService) ListMine(ctx context.Context, actor domain.Actor, filter DueListFilter, page *pagination.Params) ([]*models.Due, int64, error) {
	repoFilter, err := s.repoFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	repoFilter.OwnerID = uuidPtr(actor.UserID)

	dues, total, err := s.dues.List(ctx, repoFilter, page.Offset, page.Limit)
	if err != nil {
		return nil, 0, wrapInternal("list dues", err)
	}
	return dues, total, nil
}

func (s *DueService) repoFilter(filter DueListFilter) (repositories.DueFilter, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return repositories.DueFilter{}, domain.Validation("invalid due status: %s", filter.Status)
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return repositories.DueFilter{}, domain.Validation("invalid due type: %s", filter.Type)
	}
	return repositories.DueFilter{Status: filter.Status, Type: filter.Type}, nil
}
