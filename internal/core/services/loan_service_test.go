package services

import (
	"context"
	"errors"
	"testing"

	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/pkg/pagination"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loan, err := f.loans.Apply(ctx, f.member, ApplyLoanInput{Amount: dec("1000"), Purpose: "School fees"})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPending, loan.Status)
	assert.Equal(t, domain.RepaymentTerms12Months, loan.RepaymentTerms)
	assert.Equal(t, fixedNow.AddDate(0, 12, 0), loan.DueDate)
	assert.Equal(t, 1, f.aggregate(t, f.member.UserID).ActiveLoans)

	loan, err = f.loans.UpdateStatus(ctx, f.admin, loan.ID.String(), UpdateLoanStatusInput{Status: domain.LoanStatusApproved})
	require.NoError(t, err)
	require.NotNil(t, loan.ApprovedBy)
	assert.Equal(t, f.admin.UserID, *loan.ApprovedBy)
	require.NotNil(t, loan.ApprovalDate)
	assert.Equal(t, fixedNow, *loan.ApprovalDate)
	assertMoney(t, "loanBalance", "1000", f.aggregate(t, f.member.UserID).LoanBalance)

	loan, err = f.loans.UpdateStatus(ctx, f.admin, loan.ID.String(), UpdateLoanStatusInput{Status: domain.LoanStatusPaid})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPaid, loan.Status)
	assert.Nil(t, loan.ApprovedBy)
	assert.Nil(t, loan.ApprovalDate)

	m := f.aggregate(t, f.member.UserID)
	assertMoney(t, "loanBalance", "0", m.LoanBalance)
	assert.Equal(t, 0, m.ActiveLoans)
}

func TestLoanApplyValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.loans.Apply(ctx, f.member, ApplyLoanInput{Amount: dec("999.99"), Purpose: "Rent"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Contains(t, err.Error(), "1000.00")

	_, err = f.loans.Apply(ctx, f.member, ApplyLoanInput{Amount: dec("5000")})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	past := fixedNow.AddDate(0, 0, -1)
	_, err = f.loans.Apply(ctx, f.member, ApplyLoanInput{Amount: dec("5000"), Purpose: "Rent", DueDate: &past})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = f.loans.Apply(ctx, f.member, ApplyLoanInput{Amount: dec("5000"), Purpose: "Rent", RepaymentTerms: "48_months"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	assert.Equal(t, 0, f.aggregate(t, f.member.UserID).ActiveLoans)
}

func TestLoanApplyWithoutMemberProfile(t *testing.T) {
	f := newFixture(t)

	stranger := domain.Actor{UserID: uuid.New(), Role: domain.RoleMember}
	_, err := f.loans.Apply(context.Background(), stranger, ApplyLoanInput{Amount: dec("2000"), Purpose: "Car"})
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)

	all, total, err := f.loans.List(context.Background(), f.admin, "", pagination.New(1, 20, pagination.LoanLimit))
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, all)
}

func TestLoanRejectedCannotBeApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loan, err := f.loans.Apply(ctx, f.member, ApplyLoanInput{Amount: dec("1500"), Purpose: "Tools"})
	require.NoError(t, err)
	_, err = f.loans.UpdateStatus(ctx, f.admin, loan.ID.String(), UpdateLoanStatusInput{Status: domain.LoanStatusRejected})
	require.NoError(t, err)

	before := f.aggregate(t, f.member.UserID)
	assert.Equal(t, 0, before.ActiveLoans)

	_, err = f.loans.UpdateStatus(ctx, f.admin, loan.ID.String(), UpdateLoanStatusInput{Status: domain.LoanStatusApproved})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	stored, err := f.repos.Loans.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusRejected, stored.Status)
	assert.Nil(t, stored.ApprovedBy)

	after := f.aggregate(t, f.member.UserID)
	assert.Equal(t, before.ActiveLoans, after.ActiveLoans)
	assert.True(t, before.LoanBalance.Equal(after.LoanBalance))
}

func TestLoanSameStatusIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loan, err := f.loans.Apply(ctx, f.member, ApplyLoanInput{Amount: dec("1000"), Purpose: "Tools"})
	require.NoError(t, err)
	_, err = f.loans.UpdateStatus(ctx, f.admin, loan.ID.String(), UpdateLoanStatusInput{Status: domain.LoanStatusApproved})
	require.NoError(t, err)
	entries := len(f.store.LedgerEntries())

	_, err = f.loans.UpdateStatus(ctx, f.admin, loan.ID.String(), UpdateLoanStatusInput{Status: domain.LoanStatusApproved})
	require.NoError(t, err)

	assert.Len(t, f.store.LedgerEntries(), entries)
	assertMoney(t, "loanBalance", "1000", f.aggregate(t, f.member.UserID).LoanBalance)
}

func TestLoanDefaultThenPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loan, err := f.loans.Apply(ctx, f.member, ApplyLoanInput{Amount: dec("2500"), Purpose: "Harvest"})
	require.NoError(t, err)
	for _, status := range []domain.LoanStatus{domain.LoanStatusApproved, domain.LoanStatusDefaulted} {
		_, err = f.loans.UpdateStatus(ctx, f.admin, loan.ID.String(), UpdateLoanStatusInput{Status: status})
		require.NoError(t, err)
	}

	m := f.aggregate(t, f.member.UserID)
	assertMoney(t, "loanBalance", "2500", m.LoanBalance)
	assert.Equal(t, 1, m.ActiveLoans)

	_, err = f.loans.UpdateStatus(ctx, f.admin, loan.ID.String(), UpdateLoanStatusInput{Status: domain.LoanStatusPaid})
	require.NoError(t, err)

	m = f.aggregate(t, f.member.UserID)
	assertMoney(t, "loanBalance", "0", m.LoanBalance)
	assert.Equal(t, 0, m.ActiveLoans)
}

func TestLoanUpdateStatusGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loan, err := f.loans.Apply(ctx, f.member, ApplyLoanInput{Amount: dec("1000"), Purpose: "Tools"})
	require.NoError(t, err)

	_, err = f.loans.UpdateStatus(ctx, f.member, loan.ID.String(), UpdateLoanStatusInput{Status: domain.LoanStatusApproved})
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))

	_, err = f.loans.UpdateStatus(ctx, f.admin, "nope", UpdateLoanStatusInput{Status: domain.LoanStatusApproved})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = f.loans.UpdateStatus(ctx, f.admin, uuid.NewString(), UpdateLoanStatusInput{Status: domain.LoanStatusApproved})
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)

	_, err = f.loans.UpdateStatus(ctx, f.admin, loan.ID.String(), UpdateLoanStatusInput{Status: domain.LoanStatusPaid})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed: approved, rejected")
}

func TestLoanApprovalRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loan, err := f.loans.Apply(ctx, f.member, ApplyLoanInput{Amount: dec("1000"), Purpose: "Tools"})
	require.NoError(t, err)

	f.store.FailOn("members.UpdateTotals", errors.New("lock wait timeout"))
	_, err = f.loans.UpdateStatus(ctx, f.admin, loan.ID.String(), UpdateLoanStatusInput{Status: domain.LoanStatusApproved})
	assert.True(t, domain.IsKind(err, domain.KindInternal))

	stored, err := f.repos.Loans.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPending, stored.Status)
	assert.Nil(t, stored.ApprovedBy)
	assert.True(t, f.aggregate(t, f.member.UserID).LoanBalance.IsZero())
}

func TestLoanReadAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.addUser(t, domain.RoleMember)

	loan, err := f.loans.Apply(ctx, f.member, ApplyLoanInput{Amount: dec("1000"), Purpose: "Tools"})
	require.NoError(t, err)

	_, err = f.loans.GetByID(ctx, other, loan.ID.String())
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))

	got, err := f.loans.GetByID(ctx, f.admin, loan.ID.String())
	require.NoError(t, err)
	assert.Equal(t, loan.ID, got.ID)

	page := pagination.New(1, 0, pagination.LoanLimit)
	assert.Equal(t, pagination.LoanLimit, page.Limit)

	_, _, err = f.loans.ListByBorrower(ctx, other, f.member.UserID.String(), "", page)
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))

	mine, total, err := f.loans.ListByBorrower(ctx, f.member, f.member.UserID.String(), "", page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, mine, 1)

	_, _, err = f.loans.List(ctx, f.member, "", page)
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))

	pending, total, err := f.loans.List(ctx, f.admin, domain.LoanStatusPending, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, pending, 1)
}

func TestLoanUpdateStatusLocksTheLoanRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loan, err := f.loans.Apply(ctx, f.member, ApplyLoanInput{Amount: dec("1000"), Purpose: "Tools"})
	require.NoError(t, err)

	_, err = f.loans.UpdateStatus(ctx, f.admin, loan.ID.String(), UpdateLoanStatusInput{Status: domain.LoanStatusApproved})
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.Locks("loans"))

	f.store.FailOn("loans.GetByIDForUpdate", errors.New("lock wait timeout"))
	_, err = f.loans.UpdateStatus(ctx, f.admin, loan.ID.String(), UpdateLoanStatusInput{Status: domain.LoanStatusPaid})
	assert.True(t, domain.IsKind(err, domain.KindInternal))
	assertMoney(t, "loanBalance", "1000", f.aggregate(t, f.member.UserID).LoanBalance)
}
