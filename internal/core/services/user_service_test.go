package services

import (
	"context"
	"testing"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/adapters/persistence/repositories"
	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/pkg/pagination"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateProfileLeavesTotalsAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.issueDue(t, f.member.UserID, "80")

	profile, err := f.users.UpdateProfile(ctx, f.member.UserID, &UpdateProfileInput{
		FirstName:  ptr("  Grace "),
		Department: ptr("Chemistry"),
		Address:    ptr("12 Marina Rd"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", profile.User.FirstName)
	assert.Equal(t, string(domain.RoleMember), profile.User.LastName)
	assert.Equal(t, "Chemistry", profile.Member.Department)
	assert.Equal(t, "12 Marina Rd", profile.Member.Address)
	assertMoney(t, "duesOwing", "80", profile.Member.DuesOwing)

	_, err = f.users.UpdateProfile(ctx, f.member.UserID, &UpdateProfileInput{GraduationYear: ptr(1800)})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = f.users.GetProfile(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, err := f.auth.Register(ctx, registerInput("ada@example.org"))
	require.NoError(t, err)

	err = f.users.ChangePassword(ctx, reg.User.ID, &ChangePasswordInput{OldPassword: "wrongpass1", NewPassword: "n3wpassword"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	err = f.users.ChangePassword(ctx, reg.User.ID, &ChangePasswordInput{OldPassword: "s3cretpass", NewPassword: "nodigitshere"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	require.NoError(t, f.users.ChangePassword(ctx, reg.User.ID, &ChangePasswordInput{OldPassword: "s3cretpass", NewPassword: "n3wpassword"}))

	_, err = f.auth.RefreshToken(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)

	_, err = f.auth.Login(ctx, &LoginInput{Email: "ada@example.org", Password: "s3cretpass"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, &LoginInput{Email: "ada@example.org", Password: "n3wpassword"})
	assert.NoError(t, err)
}

func TestMemberLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.addUser(t, domain.RoleMember)
	page := pagination.New(1, 0, pagination.MemberLimit)

	all, total, err := f.users.ListMembers(ctx, f.admin, repositories.MemberFilter{}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 3)

	found, total, err := f.users.ListMembers(ctx, f.admin, repositories.MemberFilter{Search: " ADMIN "}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, f.admin.UserID, found[0].UserID)

	_, _, err = f.users.ListMembers(ctx, f.member, repositories.MemberFilter{}, page)
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))

	m, err := f.users.GetMember(ctx, f.member, f.member.UserID.String())
	require.NoError(t, err)
	assert.Equal(t, f.member.UserID, m.UserID)

	_, err = f.users.GetMember(ctx, f.member, other.UserID.String())
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))

	_, err = f.users.GetMember(ctx, f.admin, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestLedgerHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := f.issueDue(t, f.member.UserID, "100")
	_, err := f.dues.UpdateStatus(ctx, f.admin, due.ID.String(), UpdateDueStatusInput{PaidAmount: ptr(dec("100"))})
	require.NoError(t, err)

	entries, total, err := f.users.LedgerHistory(ctx, f.member, f.member.UserID.String(), pagination.New(1, 10, pagination.DefaultLimit))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	// newest first
	assert.Equal(t, models.EntryDuePayment, entries[0].EntryType)
	assertMoney(t, "duesOwingDelta", "-100", entries[0].DuesOwingDelta)
	assertMoney(t, "totalDuesPaidDelta", "100", entries[0].TotalDuesPaidDelta)
	assert.Equal(t, models.EntryDueIssued, entries[1].EntryType)
	require.NotNil(t, entries[1].PerformedBy)
	assert.Equal(t, f.admin.UserID, *entries[1].PerformedBy)

	other := f.addUser(t, domain.RoleMember)
	_, _, err = f.users.LedgerHistory(ctx, other, f.member.UserID.String(), pagination.New(1, 10, pagination.DefaultLimit))
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))
}

func TestSetRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.addUser(t, domain.RoleSuperAdmin)

	_, err := f.users.SetRole(ctx, f.admin, f.member.UserID.String(), &SetRoleInput{Role: domain.RoleAdmin})
	assert.True(t, domain.IsKind(err, domain.KindAuthorization))

	_, err = f.users.SetRole(ctx, root, root.UserID.String(), &SetRoleInput{Role: domain.RoleMember})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = f.users.SetRole(ctx, root, f.member.UserID.String(), &SetRoleInput{Role: "owner"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	updated, err := f.users.SetRole(ctx, root, f.member.UserID.String(), &SetRoleInput{Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, updated.Role)
}

func TestSetActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.addUser(t, domain.RoleSuperAdmin)
	reg, err := f.auth.Register(ctx, registerInput("ada@example.org"))
	require.NoError(t, err)

	_, err = f.users.SetActive(ctx, root, root.UserID.String(), &SetActiveInput{IsActive: ptr(false)})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = f.users.SetActive(ctx, root, reg.User.ID.String(), &SetActiveInput{})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	off, err := f.users.SetActive(ctx, root, reg.User.ID.String(), &SetActiveInput{IsActive: ptr(false)})
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	active, err := f.repos.Tokens.CountActiveByUserID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Zero(t, active)

	_, err = f.auth.Login(ctx, &LoginInput{Email: "ada@example.org", Password: "s3cretpass"})
	assert.ErrorIs(t, err, domain.ErrUserInactive)

	on, err := f.users.SetActive(ctx, root, reg.User.ID.String(), &SetActiveInput{IsActive: ptr(true)})
	require.NoError(t, err)
	assert.True(t, on.IsActive)
}
