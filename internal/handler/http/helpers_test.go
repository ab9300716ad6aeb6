package http

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/scalemako/crm-backend/internal/auth"
	"github.com/scalemako/crm-backend/internal/domain"
	"github.com/scalemako/crm-backend/internal/encryption"
	"github.com/scalemako/crm-backend/internal/mailer"
	"github.com/scalemako/crm-backend/internal/ratelimit"
	"github.com/scalemako/crm-backend/internal/service"
	"github.com/scalemako/crm-backend/internal/session"
	"github.com/scalemako/crm-backend/pkg/health"
)

const testMasterKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// ============================================================================
// Mock Repositories
// ============================================================================

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *mockUserRepo) UpdateLockout(ctx context.Context, id string, failedCount int, lockUntil *time.Time) error {
	args := m.Called(ctx, id, failedCount, lockUntil)
	return args.Error(0)
}

func (m *mockUserRepo) ResetLockout(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockAPIKeyRepo struct {
	mock.Mock
}

func (m *mockAPIKeyRepo) Upsert(ctx context.Context, key *domain.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockAPIKeyRepo) GetActive(ctx context.Context, userID, svc string) (*domain.APIKey, error) {
	args := m.Called(ctx, userID, svc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

func (m *mockAPIKeyRepo) ListActive(ctx context.Context, userID string) ([]domain.APIKey, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.APIKey), args.Error(1)
}

func (m *mockAPIKeyRepo) Deactivate(ctx context.Context, userID, svc string) error {
	args := m.Called(ctx, userID, svc)
	return args.Error(0)
}

type mockLeadRepo struct {
	mock.Mock
}

func (m *mockLeadRepo) Create(ctx context.Context, lead *domain.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

func (m *mockLeadRepo) GetByID(ctx context.Context, userID, id string) (*domain.Lead, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lead), args.Error(1)
}

func (m *mockLeadRepo) GetByPhone(ctx context.Context, userID, phone string) (*domain.Lead, error) {
	args := m.Called(ctx, userID, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lead), args.Error(1)
}

func (m *mockLeadRepo) ListByUserID(ctx context.Context, userID string) ([]domain.Lead, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Lead), args.Error(1)
}

func (m *mockLeadRepo) UpdateStatus(ctx context.Context, userID, id, status string) error {
	args := m.Called(ctx, userID, id, status)
	return args.Error(0)
}

type mockCallLogRepo struct {
	mock.Mock
}

func (m *mockCallLogRepo) Create(ctx context.Context, log *domain.CallLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *mockCallLogRepo) ListByUserID(ctx context.Context, userID string) ([]domain.CallLog, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CallLog), args.Error(1)
}

// denyLimiter always rejects; used to exercise the 429 path.
type denyLimiter struct{}

func (denyLimiter) Consume(context.Context, string) ratelimit.Result {
	return ratelimit.Result{Allowed: false, RetryAfter: time.Minute}
}

// ============================================================================
// Fixture
// ============================================================================

type fixture struct {
	router   http.Handler
	userRepo *mockUserRepo
	keyRepo  *mockAPIKeyRepo
	leadRepo *mockLeadRepo
	callRepo *mockCallLogRepo
	tokens   *auth.TokenManager
	cipher   *encryption.Cipher
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	loginLimiter ratelimit.Limiter
	resetLimiter ratelimit.Limiter
}

func withLoginLimiter(l ratelimit.Limiter) fixtureOption {
	return func(c *fixtureConfig) { c.loginLimiter = l }
}

func withResetLimiter(l ratelimit.Limiter) fixtureOption {
	return func(c *fixtureConfig) { c.resetLimiter = l }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := &fixtureConfig{
		loginLimiter: ratelimit.NewDisabled(ratelimit.LoginWindow),
		resetLimiter: ratelimit.NewDisabled(ratelimit.PasswordResetWindow),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	tokens := auth.NewTokenManager("test-secret-key-for-testing")
	cipher, err := encryption.New(testMasterKey)
	require.NoError(t, err)

	f := &fixture{
		userRepo: new(mockUserRepo),
		keyRepo:  new(mockAPIKeyRepo),
		leadRepo: new(mockLeadRepo),
		callRepo: new(mockCallLogRepo),
		tokens:   tokens,
		cipher:   cipher,
	}

	authService := service.NewAuthService(
		f.userRepo, tokens, cfg.loginLimiter, cfg.resetLimiter,
		mailer.NewLog(logger), "https://app.test", logger,
	)
	apiKeyService := service.NewAPIKeyService(f.keyRepo, cipher, logger)
	leadService := service.NewLeadService(f.leadRepo, f.callRepo, logger)

	f.router = NewRouter(
		authService, apiKeyService, leadService,
		tokens, session.NewCookieManager(false), health.NewHandler(), logger,
		CORSConfig{AllowedOrigins: []string{"*"}, Environment: "development"},
	)

	return f
}

func testUser(password string) *domain.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 4)
	if err != nil {
		panic(err)
	}
	now := time.Now().UTC()
	return &domain.User{
		ID:            "u-1",
		Email:         "owner@biz.test",
		PasswordHash:  string(hash),
		BusinessName:  "Mako Plumbing",
		Role:          domain.RoleUser,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (f *fixture) sessionCookie(t *testing.T, userID, email string) *http.Cookie {
	t.Helper()
	token, err := f.tokens.IssueSession(userID, email, domain.RoleUser, false)
	require.NoError(t, err)
	return &http.Cookie{Name: session.CookieName, Value: token}
}
