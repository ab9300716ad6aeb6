// Package service implements the business logic of the CRM backend.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/scalemako/crm-backend/internal/auth"
	"github.com/scalemako/crm-backend/internal/domain"
	"github.com/scalemako/crm-backend/internal/mailer"
	"github.com/scalemako/crm-backend/internal/ratelimit"
	"github.com/scalemako/crm-backend/internal/repository"
	apperrors "github.com/scalemako/crm-backend/pkg/errors"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// AuthService implements login, session, and password-reset flows.
type AuthService struct {
	userRepo     repository.UserRepository
	tokens       *auth.TokenManager
	loginLimiter ratelimit.Limiter
	resetLimiter ratelimit.Limiter
	mailer       mailer.Mailer
	appURL       string
	logger       *slog.Logger
	now          func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	tokens *auth.TokenManager,
	loginLimiter ratelimit.Limiter,
	resetLimiter ratelimit.Limiter,
	m mailer.Mailer,
	appURL string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		tokens:       tokens,
		loginLimiter: loginLimiter,
		resetLimiter: resetLimiter,
		mailer:       m,
		appURL:       appURL,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Email        string
	Password     string
	BusinessName string
}

// LoginInput holds the parameters for user login. ClientKey identifies the
// caller for rate limiting.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
	ClientKey  string
}

// Register creates a new account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		BusinessName: input.BusinessName,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// Login authenticates a user and returns the account plus a signed session
// token. The checks run cheapest first: rate limit, then account lookup,
// then lockout, then the bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.User, string, error) {
	if input.Email == "" {
		return nil, "", apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, "", apperrors.InvalidInput("password is required")
	}

	if res := s.loginLimiter.Consume(ctx, input.ClientKey); !res.Allowed {
		return nil, "", apperrors.RateLimited("Too many login attempts. Please try again later.")
	}

	now := s.now().UTC()

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		// Indistinguishable from a wrong password to the caller.
		return nil, "", apperrors.Unauthorized("Invalid credentials")
	}

	if locked, minutes := user.LockedOut(now); locked {
		return nil, "", apperrors.Locked(minutes)
	}

	if !auth.CheckPassword(input.Password, user.PasswordHash) {
		count, lockUntil := user.RecordLoginFailure(now)
		if err := s.userRepo.UpdateLockout(ctx, user.ID, count, lockUntil); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist login failure",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
		if lockUntil != nil {
			s.logger.WarnContext(ctx, "account locked after repeated failures",
				slog.String("user_id", user.ID),
				slog.Int("failed_count", count),
			)
		}
		// The attempt that trips the lock still reads as a wrong password;
		// the 423 only surfaces on the next attempt.
		return nil, "", apperrors.Unauthorized("Invalid credentials")
	}

	if user.FailedLoginCount > 0 || user.LockUntil != nil {
		if err := s.userRepo.ResetLockout(ctx, user.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to clear lockout state",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	token, err := s.tokens.IssueSession(user.ID, user.Email, user.Role, input.RememberMe)
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.Bool("extended_session", input.RememberMe),
	)

	return user, token, nil
}

// Session verifies a session token and returns the current user projection.
// If the account row cannot be read, the projection degrades to the token
// claims so an authenticated user is not logged out by a transient database
// failure.
func (s *AuthService) Session(ctx context.Context, token string) (domain.Summary, error) {
	claims, err := s.tokens.VerifySession(token)
	if err != nil {
		return domain.Summary{}, apperrors.Unauthorized("Invalid credentials")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		s.logger.WarnContext(ctx, "session user lookup failed, serving claims",
			slog.String("user_id", claims.UserID),
			slog.String("error", err.Error()),
		)
		role := claims.Role
		if role == "" {
			role = domain.RoleUser
		}
		return domain.Summary{ID: claims.UserID, Email: claims.Email, Role: role}, nil
	}

	return user.Summary(), nil
}

// RequestPasswordReset starts phase one of the reset flow: issue a
// short-lived reset token and email it. The outcome is identical whether or
// not the address belongs to an account, so the endpoint cannot be used to
// probe for registered emails.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, clientKey string) error {
	if res := s.resetLimiter.Consume(ctx, clientKey); !res.Allowed {
		return apperrors.RateLimited("Too many reset requests. Please try again later.")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.InfoContext(ctx, "password reset requested for unknown email")
		return nil
	}

	token, err := s.tokens.IssueReset(user.ID, user.Email)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.appURL, url.QueryEscape(token))
	if err := s.mailer.SendPasswordReset(ctx, user.Email, resetURL); err != nil {
		// Delivery failure must not reveal whether the account exists.
		s.logger.ErrorContext(ctx, "failed to send password reset email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	s.logger.InfoContext(ctx, "password reset email sent",
		slog.String("user_id", user.ID),
	)

	return nil
}

// ResetPassword redeems a reset token and installs the new password,
// clearing any lockout state.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.VerifyReset(token)
	if err != nil {
		return apperrors.InvalidInput("Invalid or expired reset token")
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, claims.UserID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", claims.UserID),
	)

	return nil
}

// validatePassword enforces the minimum password policy.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
