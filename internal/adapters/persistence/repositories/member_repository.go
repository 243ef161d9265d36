package repositories

import (
	"context"

	"alumni-ledger/internal/adapters/persistence/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	profileColumns = []string{"graduation_year", "department", "occupation", "address"}
	totalsColumns  = []string{"total_dues_paid", "dues_owing", "total_donations", "active_loans", "loan_balance"}
)

// memberRepository implements MemberRepository interface
type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

// Create creates a member aggregate
func (r *memberRepository) Create(ctx context.Context, member *models.Member) error {
	return conn(ctx, r.db).Omit(clause.Associations).Create(member).Error
}

// GetByUserID gets a member with its user
func (r *memberRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Member, error) {
	var member models.Member
	err := conn(ctx, r.db).
		Preload("User").
		Where("user_id = ?", userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// GetByUserIDForUpdate reads the member with SELECT ... FOR UPDATE
func (r *memberRepository) GetByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*models.Member, error) {
	var member models.Member
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// UpdateProfile writes profile columns only
func (r *memberRepository) UpdateProfile(ctx context.Context, member *models.Member) error {
	return conn(ctx, r.db).
		Model(member).
		Select(profileColumns).
		Updates(member).Error
}

// UpdateTotals writes the running totals only
func (r *memberRepository) UpdateTotals(ctx context.Context, member *models.Member) error {
	return conn(ctx, r.db).
		Model(member).
		Select(totalsColumns).
		Updates(member).Error
}

// List lists members with their users
func (r *memberRepository) List(ctx context.Context, filter MemberFilter, offset, limit int) ([]*models.Member, int64, error) {
	var members []*models.Member
	var total int64

	q := conn(ctx, r.db).Model(&models.Member{}).Joins("User")
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("`User`.first_name LIKE ? OR `User`.last_name LIKE ? OR `User`.email LIKE ?", like, like, like)
	}
	if filter.Department != "" {
		q = q.Where("members.department = ?", filter.Department)
	}
	if filter.GraduationYear > 0 {
		q = q.Where("members.graduation_year = ?", filter.GraduationYear)
	}

	q = q.Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Order("members.created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&members).Error

	return members, total, err
}

// Totals sums all member aggregates
func (r *memberRepository) Totals(ctx context.Context) (*MemberTotals, error) {
	var totals MemberTotals
	err := conn(ctx, r.db).Model(&models.Member{}).
		Select(`COUNT(*) AS members,
			COALESCE(SUM(total_dues_paid), 0) AS total_dues_paid,
			COALESCE(SUM(dues_owing), 0) AS dues_owing,
			COALESCE(SUM(total_donations), 0) AS total_donations,
			COALESCE(SUM(active_loans), 0) AS active_loans,
			COALESCE(SUM(loan_balance), 0) AS loan_balance`).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}
