package services

import (
	"context"
	"errors"
	"testing"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) review(t *testing.T, p *models.Payment, status domain.PaymentStatus) *models.Payment {
	t.Helper()
	out, err := f.payments.UpdateStatus(context.Background(), f.admin, p.ID.String(), UpdatePaymentStatusInput{Status: status})
	require.NoError(t, err)
	return out
}

func TestPaymentRejectionReversalScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.issueDue(t, f.member.UserID, "200")

	payment, err := f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("50"), Type: domain.PaymentTypeDues})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	assert.Equal(t, f.member.UserID, payment.PayerID)
	assert.Equal(t, fixedNow, payment.Date)

	m := f.aggregate(t, f.member.UserID)
	assertMoney(t, "duesOwing after submit", "150", m.DuesOwing)
	assertMoney(t, "totalDuesPaid after submit", "0", m.TotalDuesPaid)

	approved := f.review(t, payment, domain.PaymentStatusApproved)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, f.admin.UserID, *approved.ReviewedBy)
	m = f.aggregate(t, f.member.UserID)
	assertMoney(t, "duesOwing after approve", "150", m.DuesOwing)
	assertMoney(t, "totalDuesPaid after approve", "50", m.TotalDuesPaid)

	f.review(t, payment, domain.PaymentStatusRejected)
	m = f.aggregate(t, f.member.UserID)
	assertMoney(t, "duesOwing after reject", "200", m.DuesOwing)
	assertMoney(t, "totalDuesPaid after reject", "0", m.TotalDuesPaid)
}

func TestPaymentApproveRejectRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.issueDue(t, f.member.UserID, "300")

	payment, err := f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("75.25"), Type: domain.PaymentTypeDues})
	require.NoError(t, err)
	before := f.aggregate(t, f.member.UserID)

	f.review(t, payment, domain.PaymentStatusApproved)
	f.review(t, payment, domain.PaymentStatusRejected)

	after := f.aggregate(t, f.member.UserID)
	assertMoney(t, "totalDuesPaid", before.TotalDuesPaid.String(), after.TotalDuesPaid)
	// rejection re-owes the amount that submission took off
	assertMoney(t, "duesOwing", before.DuesOwing.Add(dec("75.25")).String(), after.DuesOwing)
}

func TestPaymentReapprovalIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dues, err := f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("40"), Type: domain.PaymentTypeDues})
	require.NoError(t, err)
	donation, err := f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("25"), Type: domain.PaymentTypeDonation})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		f.review(t, dues, domain.PaymentStatusApproved)
		f.review(t, donation, domain.PaymentStatusApproved)
	}

	m := f.aggregate(t, f.member.UserID)
	assertMoney(t, "totalDuesPaid", "40", m.TotalDuesPaid)
	assertMoney(t, "totalDonations", "25", m.TotalDonations)
}

func TestPaymentRejectedThenApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	donation, err := f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("60"), Type: domain.PaymentTypeDonation})
	require.NoError(t, err)
	assert.True(t, f.aggregate(t, f.member.UserID).TotalDonations.IsZero())

	f.review(t, donation, domain.PaymentStatusRejected)
	assert.True(t, f.aggregate(t, f.member.UserID).TotalDonations.IsZero())

	f.review(t, donation, domain.PaymentStatusApproved)
	assertMoney(t, "totalDonations", "60", f.aggregate(t, f.member.UserID).TotalDonations)

	f.review(t, donation, domain.PaymentStatusRejected)
	assertMoney(t, "totalDonations", "0", f.aggregate(t, f.member.UserID).TotalDonations)
}

func TestPaymentPledgeAndLevyNeverTouchTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.issueDue(t, f.member.UserID, "100")
	before := f.aggregate(t, f.member.UserID)
	entries := len(f.store.LedgerEntries())

	for _, typ := range []domain.PaymentType{domain.PaymentTypePledge, domain.PaymentTypeLevy} {
		p, err := f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("30"), Type: typ})
		require.NoError(t, err)
		f.review(t, p, domain.PaymentStatusApproved)
		f.review(t, p, domain.PaymentStatusRejected)
	}

	after := f.aggregate(t, f.member.UserID)
	assert.True(t, before.DuesOwing.Equal(after.DuesOwing))
	assert.True(t, before.TotalDuesPaid.Equal(after.TotalDuesPaid))
	assert.True(t, before.TotalDonations.Equal(after.TotalDonations))
	assert.Len(t, f.store.LedgerEntries(), entries)
}

func TestPaymentSubmissionFloorsDuesOwing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.issueDue(t, f.member.UserID, "20")

	_, err := f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("50"), Type: domain.PaymentTypeDues})
	require.NoError(t, err)

	m := f.aggregate(t, f.member.UserID)
	assertMoney(t, "duesOwing", "0", m.DuesOwing)

	entries := f.store.LedgerEntries()
	last := entries[len(entries)-1]
	assert.Equal(t, models.EntryPaymentSubmitted, last.EntryType)
	// the entry records what moved, not what was asked for
	assertMoney(t, "entry delta", "-20", last.DuesOwingDelta)
}

func TestPaymentReversalFloorsTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	donation, err := f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("80"), Type: domain.PaymentTypeDonation})
	require.NoError(t, err)
	f.review(t, donation, domain.PaymentStatusApproved)

	// simulate totals drifting below the approved amount
	m := f.aggregate(t, f.member.UserID)
	m.TotalDonations = dec("30")
	require.NoError(t, f.repos.Members.UpdateTotals(ctx, &m))

	f.review(t, donation, domain.PaymentStatusRejected)
	assertMoney(t, "totalDonations", "0", f.aggregate(t, f.member.UserID).TotalDonations)
}

func TestPaymentApprovedBackToPendingKeepsSingleCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	donations := func() decimal.Decimal { return f.aggregate(t, f.member.UserID).TotalDonations }

	p, err := f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("10"), Type: domain.PaymentTypeDonation})
	require.NoError(t, err)
	assert.True(t, f.review(t, p, domain.PaymentStatusApproved).Credited)
	assertMoney(t, "after approve", "10", donations())

	pending := f.review(t, p, domain.PaymentStatusPending)
	assert.Equal(t, domain.PaymentStatusPending, pending.Status)
	assert.True(t, pending.Credited)
	assertMoney(t, "after return to pending", "10", donations())

	f.review(t, p, domain.PaymentStatusApproved)
	assertMoney(t, "after re-approve", "10", donations())

	f.review(t, p, domain.PaymentStatusPending)
	rejected := f.review(t, p, domain.PaymentStatusRejected)
	assert.False(t, rejected.Credited)
	assertMoney(t, "after reject from pending", "0", donations())

	f.review(t, p, domain.PaymentStatusApproved)
	assertMoney(t, "after approve again", "10", donations())
}

func TestPaymentUpdateStatusErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("10"), Type: domain.PaymentTypeDues})
	require.NoError(t, err)

	_, err = f.payments.UpdateStatus(ctx, f.admin, p.ID.String(), UpdatePaymentStatusInput{Status: "settled"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = f.payments.UpdateStatus(ctx, f.admin, "xyz", UpdatePaymentStatusInput{Status: domain.PaymentStatusApproved})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = f.payments.UpdateStatus(ctx, f.admin, uuid.NewString(), UpdatePaymentStatusInput{Status: domain.PaymentStatusApproved})
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	_, err = f.payments.UpdateStatus(ctx, f.member, p.ID.String(), UpdatePaymentStatusInput{Status: domain.PaymentStatusApproved})
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))
}

func TestPaymentCreatePayerRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.addUser(t, domain.RoleMember)

	_, err := f.payments.Create(ctx, f.member, CreatePaymentInput{PayerID: other.UserID.String(), Amount: dec("10"), Type: domain.PaymentTypeDonation})
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))

	p, err := f.payments.Create(ctx, f.admin, CreatePaymentInput{PayerID: other.UserID.String(), Amount: dec("10"), Type: domain.PaymentTypeDonation})
	require.NoError(t, err)
	assert.Equal(t, other.UserID, p.PayerID)

	_, err = f.payments.Create(ctx, f.admin, CreatePaymentInput{PayerID: uuid.NewString(), Amount: dec("10"), Type: domain.PaymentTypeDonation})
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	_, err = f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("0"), Type: domain.PaymentTypeDues})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("10"), Type: "tithe"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestPaymentLoanReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.addUser(t, domain.RoleMember)

	loan, err := f.loans.Apply(ctx, f.member, ApplyLoanInput{Amount: dec("1000"), Purpose: "Tools"})
	require.NoError(t, err)

	p, err := f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("100"), Type: domain.PaymentTypeLevy, LoanID: loan.ID.String()})
	require.NoError(t, err)
	require.NotNil(t, p.LoanID)
	assert.Equal(t, loan.ID, *p.LoanID)

	_, err = f.payments.Create(ctx, other, CreatePaymentInput{Amount: dec("100"), Type: domain.PaymentTypeLevy, LoanID: loan.ID.String()})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("100"), Type: domain.PaymentTypeLevy, LoanID: uuid.NewString()})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestPaymentReadAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.addUser(t, domain.RoleMember)
	page := pagination.New(1, 10, pagination.DefaultLimit)

	p, err := f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("10"), Type: domain.PaymentTypeDonation})
	require.NoError(t, err)
	_, err = f.payments.Create(ctx, other, CreatePaymentInput{Amount: dec("15"), Type: domain.PaymentTypeDues})
	require.NoError(t, err)

	_, err = f.payments.GetByID(ctx, other, p.ID.String())
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))

	mine, total, err := f.payments.ListMine(ctx, f.member, PaymentListFilter{}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, p.ID, mine[0].ID)

	_, _, err = f.payments.List(ctx, f.member, PaymentListFilter{}, page)
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))

	dues, total, err := f.payments.List(ctx, f.admin, PaymentListFilter{Type: domain.PaymentTypeDues}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, other.UserID, dues[0].PayerID)

	_, _, err = f.payments.List(ctx, f.admin, PaymentListFilter{Type: "tithe"}, page)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestPaymentReviewLocksThePaymentRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payment, err := f.payments.Create(ctx, f.member, CreatePaymentInput{Amount: dec("25"), Type: domain.PaymentTypeDonation})
	require.NoError(t, err)

	f.review(t, payment, domain.PaymentStatusApproved)
	assert.Equal(t, 1, f.store.Locks("payments"))

	f.store.FailOn("payments.GetByIDForUpdate", errors.New("lock wait timeout"))
	_, err = f.payments.UpdateStatus(ctx, f.admin, payment.ID.String(), UpdatePaymentStatusInput{Status: domain.PaymentStatusRejected})
	assert.True(t, domain.IsKind(err, domain.KindInternal))
	assertMoney(t, "totalDonations", "25", f.aggregate(t, f.member.UserID).TotalDonations)
}
