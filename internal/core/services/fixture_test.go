package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/config"
	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/testutil/memstore"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store *memstore.Store
	repos memstore.Repos

	ledger   *MemberLedgerService
	dues     *DueService
	loans    *LoanService
	payments *PaymentService
	auth     *AuthService
	users    *UserService
	reports  *ReportService

	admin  domain.Actor
	member domain.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	repos := store.Repos()
	log := zap.NewNop()
	clock := func() time.Time { return fixedNow }

	ledger := NewMemberLedgerService(repos.Tx, repos.Members, repos.Ledger)
	f := &fixture{
		store:    store,
		repos:    repos,
		ledger:   ledger,
		dues:     NewDueService(repos.Tx, repos.Dues, repos.Users, repos.Members, ledger, nil, log),
		loans:    NewLoanService(repos.Tx, repos.Loans, ledger, decimal.NewFromInt(1000), nil, log),
		payments: NewPaymentService(repos.Tx, repos.Payments, repos.Users, repos.Loans, ledger, nil, log),
		auth: NewAuthService(repos.Tx, repos.Users, repos.Tokens, repos.Members, config.JWTConfig{
			Secret:           "test-secret",
			RefreshSecret:    "test-refresh-secret",
			AccessTokenMins:  15,
			RefreshTokenDays: 7,
		}, log),
		users:   NewUserService(repos.Tx, repos.Users, repos.Members, repos.Tokens, ledger, log),
		reports: NewReportService(repos.Reports, repos.Dues, repos.Loans, repos.Payments, repos.Members, log),
	}
	f.dues.now = clock
	f.loans.now = clock
	f.payments.now = clock
	f.auth.now = clock
	f.reports.now = clock
	f.auth.hashCost = bcrypt.MinCost
	f.users.hashCost = bcrypt.MinCost

	f.admin = f.addUser(t, domain.RoleAdmin)
	f.member = f.addUser(t, domain.RoleMember)
	return f
}

// addUser creates a user with an empty member aggregate
func (f *fixture) addUser(t *testing.T, role domain.Role) domain.Actor {
	t.Helper()
	ctx := context.Background()

	user := &models.User{
		ID:        uuid.New(),
		Email:     fmt.Sprintf("%s-%s@example.org", role, uuid.NewString()[:8]),
		Password:  "x",
		FirstName: "Test",
		LastName:  string(role),
		Role:      role,
		IsActive:  true,
	}
	require.NoError(t, f.repos.Users.Create(ctx, user))
	require.NoError(t, f.repos.Members.Create(ctx, &models.Member{ID: uuid.New(), UserID: user.ID}))
	return domain.Actor{UserID: user.ID, Role: role}
}

func (f *fixture) aggregate(t *testing.T, userID uuid.UUID) models.Member {
	t.Helper()
	m, ok := f.store.Member(userID)
	require.True(t, ok, "member for %s", userID)
	return m
}

func (f *fixture) issueDue(t *testing.T, owner uuid.UUID, amount string) *models.Due {
	t.Helper()
	due, err := f.dues.Create(context.Background(), f.admin, CreateDueInput{
		OwnerID: owner.String(),
		Title:   "Annual dues",
		Amount:  dec(amount),
		Type:    domain.DueTypeAnnual,
		DueDate: fixedNow.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	return due
}

func assertMoney(t *testing.T, field, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "%s: want %s got %s", field, want, got.String())
}

func ptr[T any](v T) *T {
	return &v
}
