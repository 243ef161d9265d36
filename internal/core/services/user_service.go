package services

import (
	"context"
	"strings"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/adapters/persistence/repositories"
	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/pkg/pagination"
	"alumni-ledger/internal/pkg/password"
	"alumni-ledger/internal/pkg/validate"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserService handles profiles, member lookup and account administration
type UserService struct {
	tx               repositories.Transactor
	userRepo         repositories.UserRepository
	memberRepo       repositories.MemberRepository
	refreshTokenRepo repositories.RefreshTokenRepository
	ledger           *MemberLedgerService
	hashCost         int
	log              *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	tx repositories.Transactor,
	userRepo repositories.UserRepository,
	memberRepo repositories.MemberRepository,
	refreshTokenRepo repositories.RefreshTokenRepository,
	ledger *MemberLedgerService,
	log *zap.Logger,
) *UserService {
	return &UserService{
		tx:               tx,
		userRepo:         userRepo,
		memberRepo:       memberRepo,
		refreshTokenRepo: refreshTokenRepo,
		ledger:           ledger,
		hashCost:         password.DefaultCost,
		log:              log.Named("users"),
	}
}

// Profile is a user together with their member aggregate
type Profile struct {
	User   *models.UserResponse `json:"user"`
	Member *models.Member       `json:"member"`
}

// UpdateProfileInput represents update profile input (for self). Nil fields are left unchanged.
type UpdateProfileInput struct {
	FirstName      *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName       *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	Phone          *string `json:"phone" validate:"omitempty,max=30"`
	GraduationYear *int    `json:"graduationYear" validate:"omitempty,gte=1900,lte=2100"`
	Department     *string `json:"department" validate:"omitempty,max=150"`
	Occupation     *string `json:"occupation" validate:"omitempty,max=150"`
	Address        *string `json:"address" validate:"omitempty,max=500"`
}

// ChangePasswordInput represents change password input
type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

// SetRoleInput represents a role change by a superadmin
type SetRoleInput struct {
	Role domain.Role `json:"role" validate:"required,oneof=member admin superadmin"`
}

// SetActiveInput represents an activation change by a superadmin
type SetActiveInput struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// GetProfile gets own profile
func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrUserNotFound, "load user")
	}
	member, err := s.memberRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrMemberNotFound, "load member")
	}
	member.User = nil
	return &Profile{User: user.ToResponse(), Member: member}, nil
}

// UpdateProfile updates own profile. Running totals cannot be changed here.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, input *UpdateProfileInput) (*Profile, error) {
	if msgs := validate.Check(input); len(msgs) > 0 {
		return nil, domain.ValidationFields(msgs)
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return notFoundOr(err, domain.ErrUserNotFound, "load user")
		}
		member, err := s.memberRepo.GetByUserID(ctx, userID)
		if err != nil {
			return notFoundOr(err, domain.ErrMemberNotFound, "load member")
		}

		userChanged := false
		if input.FirstName != nil {
			user.FirstName = strings.TrimSpace(*input.FirstName)
			userChanged = true
		}
		if input.LastName != nil {
			user.LastName = strings.TrimSpace(*input.LastName)
			userChanged = true
		}
		if input.Phone != nil {
			user.Phone = *input.Phone
			userChanged = true
		}
		if userChanged {
			if err := s.userRepo.Update(ctx, user); err != nil {
				return wrapInternal("update user", err)
			}
		}

		if input.GraduationYear != nil {
			member.GraduationYear = *input.GraduationYear
		}
		if input.Department != nil {
			member.Department = *input.Department
		}
		if input.Occupation != nil {
			member.Occupation = *input.Occupation
		}
		if input.Address != nil {
			member.Address = *input.Address
		}
		return wrapErr(s.memberRepo.UpdateProfile(ctx, member), "update member")
	})
	if err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

// ChangePassword changes user's password and ends every other session
func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, input *ChangePasswordInput) error {
	if msgs := validate.Check(input); len(msgs) > 0 {
		return domain.ValidationFields(msgs)
	}
	if !password.ValidatePassword(input.NewPassword) {
		return domain.Validation("newPassword must contain at least one letter and one digit")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return notFoundOr(err, domain.ErrUserNotFound, "load user")
	}
	if !password.Verify(input.OldPassword, user.Password) {
		return domain.Validation("old password is incorrect")
	}

	hashed, err := password.HashWithCost(input.NewPassword, s.hashCost)
	if err != nil {
		return domain.Internal("hash password", err)
	}
	user.Password = hashed
	if err := s.userRepo.Update(ctx, user); err != nil {
		return wrapInternal("update user", err)
	}
	if err := s.refreshTokenRepo.RevokeAllByUserID(ctx, userID); err != nil {
		return wrapInternal("revoke refresh tokens", err)
	}

	s.log.Info("password changed", zap.String("user_id", userID.String()))
	return nil
}

// ListMembers lists member profiles (admin)
func (s *UserService) ListMembers(ctx context.Context, actor domain.Actor, filter repositories.MemberFilter, page *pagination.Params) ([]*models.Member, int64, error) {
	if err := domain.RequireRole(actor.Role, domain.AdminRoles...); err != nil {
		return nil, 0, err
	}
	filter.Search = strings.TrimSpace(filter.Search)
	members, total, err := s.memberRepo.List(ctx, filter, page.Offset, page.Limit)
	if err != nil {
		return nil, 0, wrapInternal("list members", err)
	}
	return members, total, nil
}

// GetMember returns the member owned by userID to that user or an admin
func (s *UserService) GetMember(ctx context.Context, actor domain.Actor, userID string) (*models.Member, error) {
	id, err := parseID(userID, "user")
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(id) {
		return nil, domain.Forbidden("not allowed to view this member")
	}
	member, err := s.memberRepo.GetByUserID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrMemberNotFound, "load member")
	}
	return member, nil
}

// LedgerHistory lists the audit trail of a member's running totals
func (s *UserService) LedgerHistory(ctx context.Context, actor domain.Actor, userID string, page *pagination.Params) ([]*models.LedgerEntry, int64, error) {
	id, err := parseID(userID, "user")
	if err != nil {
		return nil, 0, err
	}
	if !actor.CanAccess(id) {
		return nil, 0, domain.Forbidden("not allowed to view this ledger")
	}
	return s.ledger.History(ctx, id, page.Offset, page.Limit)
}

// SetRole changes a user's role (superadmin). Superadmins cannot change their own role.
func (s *UserService) SetRole(ctx context.Context, actor domain.Actor, userID string, input *SetRoleInput) (*models.UserResponse, error) {
	if err := domain.RequireRole(actor.Role, domain.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if msgs := validate.Check(input); len(msgs) > 0 {
		return nil, domain.ValidationFields(msgs)
	}
	id, err := parseID(userID, "user")
	if err != nil {
		return nil, err
	}
	if id == actor.UserID {
		return nil, domain.Validation("cannot change your own role")
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrUserNotFound, "load user")
	}
	user.Role = input.Role
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, wrapInternal("update user", err)
	}

	s.log.Info("role changed",
		zap.String("user_id", id.String()),
		zap.String("role", string(input.Role)),
		zap.String("by", actor.UserID.String()),
	)
	return user.ToResponse(), nil
}

// SetActive activates or deactivates an account (superadmin). Deactivation revokes
// every refresh token of the account.
func (s *UserService) SetActive(ctx context.Context, actor domain.Actor, userID string, input *SetActiveInput) (*models.UserResponse, error) {
	if err := domain.RequireRole(actor.Role, domain.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if msgs := validate.Check(input); len(msgs) > 0 {
		return nil, domain.ValidationFields(msgs)
	}
	id, err := parseID(userID, "user")
	if err != nil {
		return nil, err
	}
	if id == actor.UserID && !*input.IsActive {
		return nil, domain.Validation("cannot deactivate your own account")
	}

	var user *models.User
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err = s.userRepo.GetByID(ctx, id)
		if err != nil {
			return notFoundOr(err, domain.ErrUserNotFound, "load user")
		}
		user.IsActive = *input.IsActive
		if err := s.userRepo.Update(ctx, user); err != nil {
			return wrapInternal("update user", err)
		}
		if !user.IsActive {
			return wrapErr(s.refreshTokenRepo.RevokeAllByUserID(ctx, id), "revoke refresh tokens")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("activation changed", zap.String("user_id", id.String()), zap.Bool("active", user.IsActive))
	return user.ToResponse(), nil
}
