package services

import (
	"context"
	"errors"
	"testing"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/pkg/pagination"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDueCreate(t *testing.T) {
	f := newFixture(t)

	due := f.issueDue(t, f.member.UserID, "100")

	assert.Equal(t, domain.DueStatusPending, due.Status)
	assert.True(t, due.PaidAmount.IsZero())
	assert.Equal(t, f.admin.UserID, due.IssuedBy)

	m := f.aggregate(t, f.member.UserID)
	assertMoney(t, "duesOwing", "100", m.DuesOwing)
	assertMoney(t, "totalDuesPaid", "0", m.TotalDuesPaid)

	entries := f.store.LedgerEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntryDueIssued, entries[0].EntryType)
	assert.Equal(t, due.ID, entries[0].SourceID)
	assertMoney(t, "entry delta", "100", entries[0].DuesOwingDelta)
}

func TestDueCreateRejections(t *testing.T) {
	valid := func(owner uuid.UUID) CreateDueInput {
		return CreateDueInput{
			OwnerID: owner.String(),
			Title:   "Wedding levy",
			Amount:  dec("50"),
			Type:    domain.DueTypeWedding,
			DueDate: fixedNow.AddDate(0, 0, 7),
		}
	}

	cases := []struct {
		name   string
		actor  func(f *fixture) domain.Actor
		mutate func(in *CreateDueInput)
		kind   domain.ErrorKind
	}{
		{"zero amount", adminActor, func(in *CreateDueInput) { in.Amount = dec("0") }, domain.KindValidation},
		{"negative amount", adminActor, func(in *CreateDueInput) { in.Amount = dec("-5") }, domain.KindValidation},
		{"sub-cent amount", adminActor, func(in *CreateDueInput) { in.Amount = dec("0.001") }, domain.KindValidation},
		{"missing title", adminActor, func(in *CreateDueInput) { in.Title = "" }, domain.KindValidation},
		{"unknown type", adminActor, func(in *CreateDueInput) { in.Type = "birthday" }, domain.KindValidation},
		{"due date now", adminActor, func(in *CreateDueInput) { in.DueDate = fixedNow }, domain.KindValidation},
		{"due date past", adminActor, func(in *CreateDueInput) { in.DueDate = fixedNow.AddDate(0, 0, -1) }, domain.KindValidation},
		{"malformed owner", adminActor, func(in *CreateDueInput) { in.OwnerID = "not-a-uuid" }, domain.KindValidation},
		{"unknown owner", adminActor, func(in *CreateDueInput) { in.OwnerID = uuid.NewString() }, domain.KindNotFound},
		{"member issuer", func(f *fixture) domain.Actor { return f.member }, func(in *CreateDueInput) {}, domain.KindAuthorization},
		{"unknown issuer", func(f *fixture) domain.Actor {
			return domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin}
		}, func(in *CreateDueInput) {}, domain.KindNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			input := valid(f.member.UserID)
			tc.mutate(&input)

			_, err := f.dues.Create(context.Background(), tc.actor(f), input)
			require.Error(t, err)
			assert.Equal(t, tc.kind, domain.KindOf(err), err.Error())

			assert.Zero(t, f.store.DueCount())
			assert.True(t, f.aggregate(t, f.member.UserID).DuesOwing.IsZero())
		})
	}
}

func adminActor(f *fixture) domain.Actor { return f.admin }

func TestDueCreateValidationMessagesUseJSONNames(t *testing.T) {
	f := newFixture(t)

	_, err := f.dues.Create(context.Background(), f.admin, CreateDueInput{OwnerID: f.member.UserID.String()})
	var dErr *domain.Error
	require.True(t, errors.As(err, &dErr))
	assert.Contains(t, dErr.Fields, "title is required")
	assert.Contains(t, dErr.Fields, "amount is required")
	assert.Contains(t, dErr.Fields, "dueDate is required")
}

func TestDueFullPaymentScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := f.issueDue(t, f.member.UserID, "100")

	updated, err := f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{PaidAmount: ptr(dec("100"))})
	require.NoError(t, err)

	assert.Equal(t, domain.DueStatusApproved, updated.Status)
	assertMoney(t, "paidAmount", "100", updated.PaidAmount)

	m := f.aggregate(t, f.member.UserID)
	assertMoney(t, "duesOwing", "0", m.DuesOwing)
	assertMoney(t, "totalDuesPaid", "100", m.TotalDuesPaid)
}

func TestDuePartialPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := f.issueDue(t, f.member.UserID, "100")

	updated, err := f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{PaidAmount: ptr(dec("40"))})
	require.NoError(t, err)
	assert.Equal(t, domain.DueStatusPending, updated.Status)
	assertMoney(t, "paidAmount", "40", updated.PaidAmount)

	m := f.aggregate(t, f.member.UserID)
	assertMoney(t, "duesOwing", "60", m.DuesOwing)
	assertMoney(t, "totalDuesPaid", "0", m.TotalDuesPaid)

	// overpaying clamps to the outstanding 60
	updated, err = f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{PaidAmount: ptr(dec("100"))})
	require.NoError(t, err)
	assert.Equal(t, domain.DueStatusApproved, updated.Status)
	assertMoney(t, "paidAmount", "100", updated.PaidAmount)

	m = f.aggregate(t, f.member.UserID)
	assertMoney(t, "duesOwing", "0", m.DuesOwing)
	assertMoney(t, "totalDuesPaid", "60", m.TotalDuesPaid)

	// a settled due takes no further payment
	_, err = f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{PaidAmount: ptr(dec("1"))})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestDuePaymentRejectsSubCentAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := f.issueDue(t, f.member.UserID, "100")

	_, err := f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{PaidAmount: ptr(dec("0.005"))})
	var dErr *domain.Error
	require.True(t, errors.As(err, &dErr))
	assert.Equal(t, domain.KindValidation, dErr.Kind)
	assert.Contains(t, dErr.Fields, "paidAmount must have at most 2 decimal places")

	m := f.aggregate(t, f.member.UserID)
	assertMoney(t, "duesOwing", "100", m.DuesOwing)
	assertMoney(t, "totalDuesPaid", "0", m.TotalDuesPaid)

	updated, err := f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{PaidAmount: ptr(dec("0.01"))})
	require.NoError(t, err)
	assertMoney(t, "paidAmount", "0.01", updated.PaidAmount)
}

func TestDueApproveWithShortfall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := f.issueDue(t, f.member.UserID, "100")

	_, err := f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{PaidAmount: ptr(dec("25"))})
	require.NoError(t, err)

	updated, err := f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{Status: ptr(domain.DueStatusApproved)})
	require.NoError(t, err)
	assert.Equal(t, domain.DueStatusApproved, updated.Status)
	assertMoney(t, "paidAmount", "100", updated.PaidAmount)

	m := f.aggregate(t, f.member.UserID)
	assertMoney(t, "duesOwing", "0", m.DuesOwing)
	assertMoney(t, "totalDuesPaid", "75", m.TotalDuesPaid)
}

func TestDueStatusOnlyChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := f.issueDue(t, f.member.UserID, "100")

	updated, err := f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{Status: ptr(domain.DueStatusRejected)})
	require.NoError(t, err)
	assert.Equal(t, domain.DueStatusRejected, updated.Status)
	assertMoney(t, "duesOwing", "100", f.aggregate(t, f.member.UserID).DuesOwing)

	_, err = f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{Status: ptr(domain.DueStatus("paid"))})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestDueFullyPaidCannotLeaveApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := f.issueDue(t, f.member.UserID, "100")

	_, err := f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{PaidAmount: ptr(dec("100"))})
	require.NoError(t, err)

	_, err = f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{Status: ptr(domain.DueStatusPending)})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	stored, err := f.repos.Dues.GetByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DueStatusApproved, stored.Status)
}

func TestDueUpdateLookupErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	input := UpdateDueStatusInput{PaidAmount: ptr(dec("10"))}

	_, err := f.dues.UpdateStatus(ctx, f.admin, "123", input)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = f.dues.UpdateStatus(ctx, f.admin, uuid.NewString(), input)
	assert.ErrorIs(t, err, domain.ErrDueNotFound)

	due := f.issueDue(t, f.member.UserID, "100")
	_, err = f.dues.UpdateStatus(ctx, f.member, due.ID.String(), input)
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))
}

func TestDueUpdateRollsBackWhenLedgerFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := f.issueDue(t, f.member.UserID, "100")

	f.store.FailOn("ledger.Create", errors.New("disk full"))
	_, err := f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{PaidAmount: ptr(dec("100"))})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInternal))

	stored, err := f.repos.Dues.GetByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DueStatusPending, stored.Status)
	assert.True(t, stored.PaidAmount.IsZero())

	m := f.aggregate(t, f.member.UserID)
	assertMoney(t, "duesOwing", "100", m.DuesOwing)
	assertMoney(t, "totalDuesPaid", "0", m.TotalDuesPaid)
	assert.Equal(t, 1, f.store.Rollbacks())
}

func TestDueBulkCreateIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.addUser(t, domain.RoleMember)

	inputs := []CreateDueInput{
		{OwnerID: f.member.UserID.String(), Title: "A", Amount: dec("10"), Type: domain.DueTypeAnnual, DueDate: fixedNow.AddDate(0, 1, 0)},
		{OwnerID: other.UserID.String(), Title: "B", Amount: dec("0"), Type: domain.DueTypeAnnual, DueDate: fixedNow.AddDate(0, 1, 0)},
		{OwnerID: other.UserID.String(), Title: "C", Amount: dec("30"), Type: domain.DueTypeOther, DueDate: fixedNow.AddDate(0, 1, 0)},
	}

	_, err := f.dues.BulkCreate(ctx, f.admin, inputs)
	var bulk *domain.BulkError
	require.True(t, errors.As(err, &bulk), "got %v", err)
	require.Len(t, bulk.Errors, 1)
	assert.Equal(t, 1, bulk.Errors[0].Index)
	assert.Contains(t, bulk.Errors[0].Message, "amount")

	assert.Zero(t, f.store.DueCount())
	assert.Empty(t, f.store.LedgerEntries())
	assert.True(t, f.aggregate(t, f.member.UserID).DuesOwing.IsZero())
	assert.True(t, f.aggregate(t, other.UserID).DuesOwing.IsZero())
}

func TestDueBulkCreateReportsEveryFailure(t *testing.T) {
	f := newFixture(t)
	future := fixedNow.AddDate(0, 1, 0)

	_, err := f.dues.BulkCreate(context.Background(), f.admin, []CreateDueInput{
		{OwnerID: uuid.NewString(), Title: "A", Amount: dec("10"), Type: domain.DueTypeAnnual, DueDate: future},
		{OwnerID: f.member.UserID.String(), Title: "B", Amount: dec("10"), Type: domain.DueTypeAnnual, DueDate: future},
		{OwnerID: f.member.UserID.String(), Title: "C", Amount: dec("10"), Type: domain.DueTypeAnnual, DueDate: fixedNow},
	})
	var bulk *domain.BulkError
	require.True(t, errors.As(err, &bulk))
	require.Len(t, bulk.Errors, 2)
	assert.Equal(t, 0, bulk.Errors[0].Index)
	assert.Equal(t, 2, bulk.Errors[1].Index)
	assert.Zero(t, f.store.DueCount())
}

func TestDueBulkCreate(t *testing.T) {
	f := newFixture(t)
	other := f.addUser(t, domain.RoleMember)
	future := fixedNow.AddDate(0, 1, 0)

	created, err := f.dues.BulkCreate(context.Background(), f.admin, []CreateDueInput{
		{OwnerID: f.member.UserID.String(), Title: "A", Amount: dec("10"), Type: domain.DueTypeAnnual, DueDate: future},
		{OwnerID: other.UserID.String(), Title: "B", Amount: dec("20"), Type: domain.DueTypeAnnual, DueDate: future},
		{OwnerID: other.UserID.String(), Title: "C", Amount: dec("5.50"), Type: domain.DueTypeCondolence, DueDate: future},
	})
	require.NoError(t, err)
	assert.Len(t, created, 3)
	assert.Equal(t, 3, f.store.DueCount())
	assertMoney(t, "member duesOwing", "10", f.aggregate(t, f.member.UserID).DuesOwing)
	assertMoney(t, "other duesOwing", "25.5", f.aggregate(t, other.UserID).DuesOwing)
}

func TestDueBulkCreateRollsBackOnStorageFailure(t *testing.T) {
	f := newFixture(t)
	future := fixedNow.AddDate(0, 1, 0)
	f.store.FailOn("members.UpdateTotals", errors.New("deadlock"))

	_, err := f.dues.BulkCreate(context.Background(), f.admin, []CreateDueInput{
		{OwnerID: f.member.UserID.String(), Title: "A", Amount: dec("10"), Type: domain.DueTypeAnnual, DueDate: future},
		{OwnerID: f.member.UserID.String(), Title: "B", Amount: dec("10"), Type: domain.DueTypeAnnual, DueDate: future},
	})
	assert.True(t, domain.IsKind(err, domain.KindInternal))
	assert.Zero(t, f.store.DueCount())
}

func TestDueBulkUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.issueDue(t, f.member.UserID, "100")
	second := f.issueDue(t, f.member.UserID, "50")

	updated, err := f.dues.BulkUpdate(ctx, f.admin, []BulkUpdateDueInput{
		{ID: first.ID.String(), UpdateDueStatusInput: UpdateDueStatusInput{PaidAmount: ptr(dec("60"))}},
		{ID: first.ID.String(), UpdateDueStatusInput: UpdateDueStatusInput{PaidAmount: ptr(dec("60"))}},
		{ID: second.ID.String(), UpdateDueStatusInput: UpdateDueStatusInput{Status: ptr(domain.DueStatusRejected)}},
	})
	require.NoError(t, err)
	require.Len(t, updated, 3)

	stored, err := f.repos.Dues.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DueStatusApproved, stored.Status)
	assertMoney(t, "paidAmount", "100", stored.PaidAmount)

	m := f.aggregate(t, f.member.UserID)
	assertMoney(t, "duesOwing", "50", m.DuesOwing)
	assertMoney(t, "totalDuesPaid", "40", m.TotalDuesPaid)
}

func TestDueBulkUpdateIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := f.issueDue(t, f.member.UserID, "100")
	before := f.aggregate(t, f.member.UserID)

	_, err := f.dues.BulkUpdate(ctx, f.admin, []BulkUpdateDueInput{
		{ID: due.ID.String(), UpdateDueStatusInput: UpdateDueStatusInput{PaidAmount: ptr(dec("30"))}},
		{ID: uuid.NewString(), UpdateDueStatusInput: UpdateDueStatusInput{PaidAmount: ptr(dec("30"))}},
		{ID: "bogus", UpdateDueStatusInput: UpdateDueStatusInput{PaidAmount: ptr(dec("30"))}},
	})
	var bulk *domain.BulkError
	require.True(t, errors.As(err, &bulk))
	require.Len(t, bulk.Errors, 2)
	assert.Equal(t, 1, bulk.Errors[0].Index)
	assert.Equal(t, 2, bulk.Errors[1].Index)

	stored, err := f.repos.Dues.GetByID(ctx, due.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaidAmount.IsZero())
	assertMoney(t, "duesOwing", before.DuesOwing.String(), f.aggregate(t, f.member.UserID).DuesOwing)
}

func TestDueSoftDeleteAndRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := f.issueDue(t, f.member.UserID, "100")

	deleted, err := f.dues.SoftDelete(ctx, f.admin, due.ID.String(), "issued twice")
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	require.NotNil(t, deleted.DeletedBy)
	assert.Equal(t, f.admin.UserID, *deleted.DeletedBy)
	assert.Equal(t, "issued twice", deleted.DeletionReason)
	assert.NotNil(t, deleted.DeletedAt)

	// visibility only; the aggregate keeps the amount owed
	assertMoney(t, "duesOwing", "100", f.aggregate(t, f.member.UserID).DuesOwing)

	_, err = f.dues.SoftDelete(ctx, f.admin, due.ID.String(), "again")
	assert.ErrorIs(t, err, domain.ErrDueAlreadyDeleted)

	_, err = f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{PaidAmount: ptr(dec("10"))})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	mine, total, err := f.dues.ListMine(ctx, f.member, DueListFilter{}, pagination.New(1, 10, pagination.DefaultLimit))
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, mine)

	_, err = f.dues.GetByID(ctx, f.member, due.ID.String())
	assert.ErrorIs(t, err, domain.ErrDueNotFound)

	restored, err := f.dues.Restore(ctx, f.admin, due.ID.String())
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
	assert.Nil(t, restored.DeletedAt)
	assert.Nil(t, restored.DeletedBy)
	assert.Empty(t, restored.DeletionReason)
	require.NotNil(t, restored.RestoredBy)
	assert.Equal(t, f.admin.UserID, *restored.RestoredBy)

	_, err = f.dues.Restore(ctx, f.admin, due.ID.String())
	assert.ErrorIs(t, err, domain.ErrDueNotDeleted)
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestDueReadAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.addUser(t, domain.RoleMember)
	due := f.issueDue(t, f.member.UserID, "100")
	f.issueDue(t, other.UserID, "20")

	got, err := f.dues.GetByID(ctx, f.member, due.ID.String())
	require.NoError(t, err)
	assert.Equal(t, due.ID, got.ID)

	_, err = f.dues.GetByID(ctx, other, due.ID.String())
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))

	_, _, err = f.dues.List(ctx, f.member, DueListFilter{}, pagination.New(1, 10, pagination.DefaultLimit))
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))

	all, total, err := f.dues.List(ctx, f.admin, DueListFilter{}, pagination.New(1, 10, pagination.DefaultLimit))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	owned, total, err := f.dues.List(ctx, f.admin, DueListFilter{OwnerID: other.UserID.String()}, pagination.New(1, 10, pagination.DefaultLimit))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, other.UserID, owned[0].OwnerID)

	_, _, err = f.dues.List(ctx, f.admin, DueListFilter{Status: "closed"}, pagination.New(1, 10, pagination.DefaultLimit))
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestDueUpdatesLockTheDueRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := f.issueDue(t, f.member.UserID, "100")

	_, err := f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{PaidAmount: ptr(dec("30"))})
	require.NoError(t, err)
	_, err = f.dues.BulkUpdate(ctx, f.admin, []BulkUpdateDueInput{
		{ID: due.ID.String(), UpdateDueStatusInput: UpdateDueStatusInput{PaidAmount: ptr(dec("20"))}},
	})
	require.NoError(t, err)
	_, err = f.dues.SoftDelete(ctx, f.admin, due.ID.String(), "duplicate")
	require.NoError(t, err)
	assert.Equal(t, 3, f.store.Locks("dues"))

	f.store.FailOn("dues.GetByIDForUpdate", errors.New("lock wait timeout"))
	_, err = f.dues.Restore(ctx, f.admin, due.ID.String())
	assert.True(t, domain.IsKind(err, domain.KindInternal))

	stored, err := f.repos.Dues.GetByID(ctx, due.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDeleted)
	assertMoney(t, "paidAmount", "50", stored.PaidAmount)
}
