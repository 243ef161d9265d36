package services

import (
	"context"
	"encoding/json"
	"time"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/adapters/persistence/repositories"
	"alumni-ledger/internal/core/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cache stores serialized dashboard payloads
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const (
	adminDashboardKey = "dashboard:admin"
	recentLimit       = 5
)

// DashboardService handles dashboard operations
type DashboardService struct {
	members  repositories.MemberRepository
	users    repositories.UserRepository
	dues     repositories.DueRepository
	loans    repositories.LoanRepository
	payments repositories.PaymentRepository
	cache    Cache
	ttl      time.Duration
	log      *zap.Logger
}

// NewDashboardService creates a new dashboard service. The admin summary is cached for ttl.
func NewDashboardService(
	members repositories.MemberRepository,
	users repositories.UserRepository,
	dues repositories.DueRepository,
	loans repositories.LoanRepository,
	payments repositories.PaymentRepository,
	cache Cache,
	ttl time.Duration,
	log *zap.Logger,
) *DashboardService {
	return &DashboardService{
		members:  members,
		users:    users,
		dues:     dues,
		loans:    loans,
		payments: payments,
		cache:    cache,
		ttl:      ttl,
		log:      log.Named("dashboard"),
	}
}

// ============================================================
// Admin Dashboard
// ============================================================

// AdminDashboardData represents admin dashboard data
type AdminDashboardData struct {
	Totals *repositories.MemberTotals `json:"totals"`

	Admins int64 `json:"admins"`

	PendingDues     int64 `json:"pendingDues"`
	PendingLoans    int64 `json:"pendingLoans"`
	PendingPayments int64 `json:"pendingPayments"`

	RecentPayments []*models.Payment `json:"recentPayments"`
	RecentLoans    []*models.Loan    `json:"recentLoans"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// GetAdminDashboard returns association wide figures, served from cache when fresh
func (s *DashboardService) GetAdminDashboard(ctx context.Context, actor domain.Actor) (*AdminDashboardData, error) {
	if err := domain.RequireRole(actor.Role, domain.AdminRoles...); err != nil {
		return nil, err
	}

	if raw, ok, err := s.cache.Get(ctx, adminDashboardKey); err != nil {
		s.log.Warn("dashboard cache read failed", zap.Error(err))
	} else if ok {
		var cached AdminDashboardData
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	}

	data, err := s.buildAdminDashboard(ctx)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(data); err == nil {
		if err := s.cache.Set(ctx, adminDashboardKey, raw, s.ttl); err != nil {
			s.log.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return data, nil
}

func (s *DashboardService) buildAdminDashboard(ctx context.Context) (*AdminDashboardData, error) {
	data := &AdminDashboardData{GeneratedAt: time.Now().UTC()}

	totals, err := s.members.Totals(ctx)
	if err != nil {
		return nil, wrapInternal("member totals", err)
	}
	data.Totals = totals

	admins, err := s.users.CountByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, wrapInternal("count admins", err)
	}
	superAdmins, err := s.users.CountByRole(ctx, domain.RoleSuperAdmin)
	if err != nil {
		return nil, wrapInternal("count superadmins", err)
	}
	data.Admins = admins + superAdmins

	if _, data.PendingDues, err = s.dues.List(ctx, repositories.DueFilter{Status: domain.DueStatusPending}, 0, 1); err != nil {
		return nil, wrapInternal("count pending dues", err)
	}
	if _, data.PendingLoans, err = s.loans.List(ctx, repositories.LoanFilter{Status: domain.LoanStatusPending}, 0, 1); err != nil {
		return nil, wrapInternal("count pending loans", err)
	}
	if _, data.PendingPayments, err = s.payments.List(ctx, repositories.PaymentFilter{Status: domain.PaymentStatusPending}, 0, 1); err != nil {
		return nil, wrapInternal("count pending payments", err)
	}

	if data.RecentPayments, _, err = s.payments.List(ctx, repositories.PaymentFilter{}, 0, recentLimit); err != nil {
		return nil, wrapInternal("recent payments", err)
	}
	if data.RecentLoans, _, err = s.loans.List(ctx, repositories.LoanFilter{}, 0, recentLimit); err != nil {
		return nil, wrapInternal("recent loans", err)
	}
	return data, nil
}

// ============================================================
// Member Dashboard
// ============================================================

// MemberDashboardData represents a member's own dashboard
type MemberDashboardData struct {
	Member         *models.Member    `json:"member"`
	RecentDues     []*models.Due     `json:"recentDues"`
	RecentLoans    []*models.Loan    `json:"recentLoans"`
	RecentPayments []*models.Payment `json:"recentPayments"`
}

// GetMemberDashboard returns the actor's aggregate and latest records. It is never cached.
func (s *DashboardService) GetMemberDashboard(ctx context.Context, userID uuid.UUID) (*MemberDashboardData, error) {
	member, err := s.members.GetByUserID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrMemberNotFound, "load member")
	}
	member.User = nil

	data := &MemberDashboardData{Member: member}
	if data.RecentDues, _, err = s.dues.List(ctx, repositories.DueFilter{OwnerID: &userID}, 0, recentLimit); err != nil {
		return nil, wrapInternal("recent dues", err)
	}
	if data.RecentLoans, _, err = s.loans.List(ctx, repositories.LoanFilter{BorrowerID: &userID}, 0, recentLimit); err != nil {
		return nil, wrapInternal("recent loans", err)
	}
	if data.RecentPayments, _, err = s.payments.List(ctx, repositories.PaymentFilter{PayerID: &userID}, 0, recentLimit); err != nil {
		return nil, wrapInternal("recent payments", err)
	}
	return data, nil
}
