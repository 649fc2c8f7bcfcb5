package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/skillswap/backend/internal/auth"
	"go.uber.org/zap"
)

// LoginLimiter throttles repeated failed logins per key.
type LoginLimiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// GoogleVerifier verifies Google ID tokens.
type GoogleVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.GoogleUser, error)
	IsConfigured() bool
}

// AuthService handles authentication business logic
type AuthService struct {
	repo    UserRepository
	jwt     *auth.JWTManager
	google  GoogleVerifier
	limiter LoginLimiter
	logger  *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(repo UserRepository, jwt *auth.JWTManager, google GoogleVerifier, limiter LoginLimiter, logger *zap.Logger) *AuthService {
	return &AuthService{
		repo:    repo,
		jwt:     jwt,
		google:  google,
		limiter: limiter,
		logger:  logger,
	}
}

// AuthResult is returned by every sign-in flow
type AuthResult struct {
	User         *User     `json:"user"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	IsNewUser    bool      `json:"isNewUser,omitempty"`
}

// Register creates a new user with email/password
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Name:         name,
		Email:        email,
		PasswordHash: &passwordHash,
	})
	if err != nil {
		return nil, err
	}

	return s.issue(user, false)
}

// Login authenticates a user with email/password
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	blocked, err := s.limiter.Blocked(ctx, email)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrTooManyAttempts
	}

	user, hash, err := s.repo.GetUserWithPassword(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	// Unknown emails go through the same comparison as wrong passwords
	if err := auth.CheckPassword(hash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) && !errors.Is(err, auth.ErrNoPassword) {
			return nil, err
		}
		if err := s.limiter.Fail(ctx, email); err != nil {
			s.logger.Warn("Failed to record login failure", zap.Error(err))
		}
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		s.logger.Warn("Failed to reset login attempts", zap.Error(err))
	}
	now := time.Now().UTC()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	return s.issue(user, false)
}

// Refresh exchanges a valid refresh token for a new token pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	userID, err := s.jwt.Verify(auth.RefreshToken, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return s.issue(user, false)
}

// GoogleLogin signs in with a Google ID token, creating or linking the account as needed
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	googleUser, err := s.google.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByGoogleID(ctx, googleUser.GoogleID)
	if err == nil {
		if !user.IsActive {
			return nil, ErrUserInactive
		}
		return s.issue(user, false)
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	user, err = s.repo.GetUserByEmail(ctx, googleUser.Email)
	switch {
	case err == nil:
		if !user.IsActive {
			return nil, ErrUserInactive
		}
		user, err = s.repo.LinkGoogleAccount(ctx, user.ID, googleUser.GoogleID)
		if err != nil {
			return nil, err
		}
		return s.issue(user, false)
	case errors.Is(err, ErrUserNotFound):
	default:
		return nil, err
	}

	name := googleUser.Name
	if name == "" {
		name = googleUser.Email
	}
	googleID := googleUser.GoogleID
	user, err = s.repo.CreateUser(ctx, CreateUserParams{
		Name:      name,
		Email:     googleUser.Email,
		GoogleID:  &googleID,
		AvatarURL: googleUser.Picture,
	})
	if err != nil {
		return nil, err
	}

	return s.issue(user, true)
}

// GoogleEnabled reports whether Google sign-in is configured
func (s *AuthService) GoogleEnabled() bool {
	return s.google != nil && s.google.IsConfigured()
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *AuthService) issue(user *User, isNew bool) (*AuthResult, error) {
	pair, err := s.jwt.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		IsNewUser:    isNew,
	}, nil
}
