package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/adapters/persistence/repositories"
	"alumni-ledger/internal/config"
	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/pkg/jwt"
	"alumni-ledger/internal/pkg/password"
	"alumni-ledger/internal/pkg/validate"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthService handles authentication business logic
type AuthService struct {
	tx               repositories.Transactor
	userRepo         repositories.UserRepository
	refreshTokenRepo repositories.RefreshTokenRepository
	memberRepo       repositories.MemberRepository
	jwtCfg           config.JWTConfig
	hashCost         int
	log              *zap.Logger
	now              func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	tx repositories.Transactor,
	userRepo repositories.UserRepository,
	refreshTokenRepo repositories.RefreshTokenRepository,
	memberRepo repositories.MemberRepository,
	jwtCfg config.JWTConfig,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		tx:               tx,
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		memberRepo:       memberRepo,
		jwtCfg:           jwtCfg,
		hashCost:         password.DefaultCost,
		log:              log.Named("auth"),
		now:              time.Now,
	}
}

// RegisterInput represents registration input
type RegisterInput struct {
	Email          string `json:"email" validate:"required,email,max=100"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	FirstName      string `json:"firstName" validate:"required,max=100"`
	LastName       string `json:"lastName" validate:"required,max=100"`
	Phone          string `json:"phone" validate:"max=30"`
	GraduationYear int    `json:"graduationYear" validate:"omitempty,gte=1900,lte=2100"`
	Department     string `json:"department" validate:"max=150"`
	Occupation     string `json:"occupation" validate:"max=150"`
}

// LoginInput represents login input
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User         *models.UserResponse `json:"user"`
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
}

// Register creates a member account together with its member profile
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (*AuthResponse, error) {
	// 1. Validate input
	input.Email = normalizeEmail(input.Email)
	if msgs := validate.Check(input); len(msgs) > 0 {
		return nil, domain.ValidationFields(msgs)
	}
	if !password.ValidatePassword(input.Password) {
		return nil, domain.Validation("password must contain at least one letter and one digit")
	}

	// 2. Hash password
	hashed, err := password.HashWithCost(input.Password, s.hashCost)
	if err != nil {
		return nil, domain.Internal("hash password", err)
	}

	user := &models.User{
		ID:        uuid.New(),
		Email:     input.Email,
		Password:  hashed,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Phone:     input.Phone,
		Role:      domain.RoleMember,
		IsActive:  true,
	}

	// 3. Create user and member aggregate together
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.userRepo.ExistsByEmail(ctx, user.Email)
		if err != nil {
			return wrapInternal("check email", err)
		}
		if exists {
			return domain.ErrEmailTaken
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return wrapInternal("create user", err)
		}
		member := &models.Member{
			ID:             uuid.New(),
			UserID:         user.ID,
			GraduationYear: input.GraduationYear,
			Department:     input.Department,
			Occupation:     input.Occupation,
		}
		if err := s.memberRepo.Create(ctx, member); err != nil {
			return wrapInternal("create member", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 4. Issue tokens
	resp, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.String()), zap.String("email", user.Email))
	return resp, nil
}

// Login authenticates a user
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	input.Email = normalizeEmail(input.Email)
	if msgs := validate.Check(input); len(msgs) > 0 {
		return nil, domain.ValidationFields(msgs)
	}

	// 1. Find user by email
	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrInvalidCredentials, "load user")
	}

	// 2. Verify password before revealing account state
	if !password.Verify(input.Password, user.Password) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	resp, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Info("user logged in", zap.String("user_id", user.ID.String()))
	return resp, nil
}

// RefreshToken rotates a refresh token. The presented token is revoked and a new
// pair issued.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	// 1. Validate refresh token JWT
	claims, err := jwt.ValidateRefreshToken(refreshToken, s.jwtCfg.RefreshSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	// 2. Find the stored hash
	tokenHash := password.HashToken(refreshToken)
	stored, err := s.refreshTokenRepo.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrTokenInvalid, "load refresh token")
	}
	if stored.IsRevoked() {
		// a revoked token being replayed; end every session of this user
		if err := s.refreshTokenRepo.RevokeAllByUserID(ctx, stored.UserID); err != nil {
			s.log.Error("revoke sessions after token reuse", zap.Error(err))
		}
		s.log.Warn("revoked refresh token reused", zap.String("user_id", stored.UserID.String()))
		return nil, domain.ErrTokenRevoked
	}
	if !s.now().Before(stored.ExpiresAt) {
		return nil, domain.ErrTokenExpired
	}

	// 3. Check user
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrTokenInvalid, "load user")
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	// 4. Rotate
	if err := s.refreshTokenRepo.RevokeByTokenHash(ctx, tokenHash); err != nil {
		return nil, wrapInternal("revoke refresh token", err)
	}
	resp, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Debug("token refreshed", zap.String("user_id", user.ID.String()))
	return resp, nil
}

// Logout revokes the refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.refreshTokenRepo.RevokeByTokenHash(ctx, password.HashToken(refreshToken)); err != nil {
		return wrapInternal("revoke refresh token", err)
	}
	return nil
}

// LogoutAll revokes all refresh tokens for a user
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	if err := s.refreshTokenRepo.RevokeAllByUserID(ctx, userID); err != nil {
		return wrapInternal("revoke refresh tokens", err)
	}
	s.log.Info("all sessions revoked", zap.String("user_id", userID.String()))
	return nil
}

// ValidateAccessToken validates an access token
func (s *AuthService) ValidateAccessToken(accessToken string) (*jwt.Claims, error) {
	claims, err := jwt.ValidateAccessToken(accessToken, s.jwtCfg.Secret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// Authenticate resolves the caller behind accessToken. Role and active flag are
// read from the stored user, not from the token claims.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (domain.Actor, error) {
	claims, err := s.ValidateAccessToken(accessToken)
	if err != nil {
		return domain.Actor{}, err
	}
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return domain.Actor{}, notFoundOr(err, domain.ErrTokenInvalid, "load user")
	}
	if !user.IsActive {
		return domain.Actor{}, domain.ErrUserInactive
	}
	if !user.Role.IsValid() {
		return domain.Actor{}, domain.ErrTokenInvalid
	}
	return domain.Actor{UserID: user.ID, Role: user.Role}, nil
}

// Me returns the user behind userID
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrUserNotFound, "load user")
	}
	return user, nil
}

// CleanupExpiredTokens deletes refresh tokens past their expiry
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.refreshTokenRepo.DeleteExpired(ctx)
	if err != nil {
		return 0, wrapInternal("delete expired tokens", err)
	}
	return n, nil
}

// EnsureSuperAdmin creates the initial superadmin when none exists. It reports
// whether an account was created.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, email, plain string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || plain == "" {
		return false, domain.Validation("superadmin email and password are required")
	}

	created := false
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		count, err := s.userRepo.CountByRole(ctx, domain.RoleSuperAdmin)
		if err != nil {
			return wrapInternal("count superadmins", err)
		}
		if count > 0 {
			return nil
		}

		user, err := s.userRepo.GetByEmail(ctx, email)
		switch {
		case err == nil:
			// promote the existing account
			user.Role = domain.RoleSuperAdmin
			user.IsActive = true
			if err := s.userRepo.Update(ctx, user); err != nil {
				return wrapInternal("promote superadmin", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			hashed, err := password.HashWithCost(plain, s.hashCost)
			if err != nil {
				return domain.Internal("hash password", err)
			}
			user = &models.User{
				ID:        uuid.New(),
				Email:     email,
				Password:  hashed,
				FirstName: "Super",
				LastName:  "Admin",
				Role:      domain.RoleSuperAdmin,
				IsActive:  true,
			}
			if err := s.userRepo.Create(ctx, user); err != nil {
				return wrapInternal("create superadmin", err)
			}
		default:
			return wrapInternal("load user", err)
		}

		if _, err := s.memberRepo.GetByUserID(ctx, user.ID); errors.Is(err, gorm.ErrRecordNotFound) {
			if err := s.memberRepo.Create(ctx, &models.Member{ID: uuid.New(), UserID: user.ID}); err != nil {
				return wrapInternal("create member", err)
			}
		} else if err != nil {
			return wrapInternal("load member", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		s.log.Info("superadmin ensured", zap.String("email", email))
	}
	return created, nil
}

// issue generates a token pair and stores the refresh token hash
func (s *AuthService) issue(ctx context.Context, user *models.User) (*AuthResponse, error) {
	accessToken, err := jwt.GenerateAccessToken(user.ID, user.Email, string(user.Role), s.jwtCfg.Secret, s.jwtCfg.AccessTTL())
	if err != nil {
		return nil, domain.Internal("sign access token", err)
	}
	refreshToken, err := jwt.GenerateRefreshToken(user.ID, uuid.NewString(), s.jwtCfg.RefreshSecret, s.jwtCfg.RefreshTTL())
	if err != nil {
		return nil, domain.Internal("sign refresh token", err)
	}

	token := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: password.HashToken(refreshToken),
		ExpiresAt: s.now().Add(s.jwtCfg.RefreshTTL()),
	}
	if err := s.refreshTokenRepo.Create(ctx, token); err != nil {
		return nil, wrapInternal("store refresh token", err)
	}

	return &AuthResponse{
		User:         user.ToResponse(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
