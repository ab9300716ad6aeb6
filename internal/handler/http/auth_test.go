package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scalemako/crm-backend/internal/domain"
	"github.com/scalemako/crm-backend/internal/session"
	apperrors "github.com/scalemako/crm-backend/pkg/errors"
)

func postJSON(t *testing.T, router http.Handler, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func patchJSON(t *testing.T, router http.Handler, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPatch, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	f := newFixture(t)
	user := testUser("SecurePass123")
	f.userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

	rec := postJSON(t, f.router, "/auth/login", LoginRequest{
		Email:    user.Email,
		Password: "SecurePass123",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	cookie := findCookie(rec, session.CookieName)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	// The cookie carries a verifiable session token.
	claims, err := f.tokens.VerifySession(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	// The body is the safe user projection.
	body := rec.Body.String()
	assert.Contains(t, body, user.Email)
	assert.NotContains(t, body, user.PasswordHash)
}

func TestLogin_WrongPassword_Generic401(t *testing.T) {
	f := newFixture(t)
	user := testUser("SecurePass123")
	f.userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	f.userRepo.On("UpdateLockout", mock.Anything, user.ID, 1, (*time.Time)(nil)).Return(nil)

	rec := postJSON(t, f.router, "/auth/login", LoginRequest{
		Email:    user.Email,
		Password: "WrongPass999",
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Invalid credentials", resp.Error.Message)
	assert.Nil(t, findCookie(rec, session.CookieName))
}

func TestLogin_UnknownEmail_SameBodyAsWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.userRepo.On("GetByEmail", mock.Anything, "nobody@biz.test").Return(nil, apperrors.ErrNotFound)

	rec := postJSON(t, f.router, "/auth/login", LoginRequest{
		Email:    "nobody@biz.test",
		Password: "SecurePass123",
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "Invalid credentials", resp.Error.Message)
}

func TestLogin_LockedAccount_423WithMinutes(t *testing.T) {
	f := newFixture(t)
	user := testUser("SecurePass123")
	until := time.Now().UTC().Add(10 * time.Minute)
	user.LockUntil = &until
	user.FailedLoginCount = domain.MaxFailedLogins
	f.userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

	rec := postJSON(t, f.router, "/auth/login", LoginRequest{
		Email:    user.Email,
		Password: "SecurePass123",
	})

	require.Equal(t, http.StatusLocked, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "Account locked. Try again in 10 minutes.", resp.Error.Message)
}

func TestLogin_RateLimited_429(t *testing.T) {
	f := newFixture(t, withLoginLimiter(denyLimiter{}))

	rec := postJSON(t, f.router, "/auth/login", LoginRequest{
		Email:    "owner@biz.test",
		Password: "SecurePass123",
	})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	f.userRepo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestLogin_MissingFields_400(t *testing.T) {
	f := newFixture(t)

	rec := postJSON(t, f.router, "/auth/login", map[string]string{"email": "owner@biz.test"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout_ClearsCookie(t *testing.T) {
	f := newFixture(t)

	rec := postJSON(t, f.router, "/auth/logout", map[string]string{})

	require.Equal(t, http.StatusOK, rec.Code)
	cookie := findCookie(rec, session.CookieName)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestSession_WithValidCookie(t *testing.T) {
	f := newFixture(t)
	user := testUser("SecurePass123")
	f.userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(f.sessionCookie(t, user.ID, user.Email))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Mako Plumbing")
}

func TestSession_NoCookie_401(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSession_ResetTokenRejected(t *testing.T) {
	f := newFixture(t)

	resetToken, err := f.tokens.IssueReset("u-1", "owner@biz.test")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: resetToken})
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResetPassword_RequestPhase_AlwaysSameBody(t *testing.T) {
	f := newFixture(t)
	user := testUser("SecurePass123")
	f.userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	f.userRepo.On("GetByEmail", mock.Anything, "nobody@biz.test").Return(nil, apperrors.ErrNotFound)

	known := postJSON(t, f.router, "/auth/reset-password", map[string]string{"email": user.Email})
	unknown := postJSON(t, f.router, "/auth/reset-password", map[string]string{"email": "nobody@biz.test"})

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}

func TestResetPassword_RedeemPhase(t *testing.T) {
	f := newFixture(t)
	f.userRepo.On("UpdatePassword", mock.Anything, "u-1", mock.AnythingOfType("string")).Return(nil)

	token, err := f.tokens.IssueReset("u-1", "owner@biz.test")
	require.NoError(t, err)

	rec := postJSON(t, f.router, "/auth/reset-password", map[string]string{
		"token":       token,
		"newPassword": "NewSecure456",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	f.userRepo.AssertExpectations(t)
}

func TestResetPassword_RedeemWithSessionToken_400(t *testing.T) {
	f := newFixture(t)

	sessionToken, err := f.tokens.IssueSession("u-1", "owner@biz.test", domain.RoleUser, false)
	require.NoError(t, err)

	rec := postJSON(t, f.router, "/auth/reset-password", map[string]string{
		"token":       sessionToken,
		"newPassword": "NewSecure456",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.userRepo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestResetPassword_TokenWithoutNewPassword_RunsRequestPhase(t *testing.T) {
	f := newFixture(t)
	user := testUser("SecurePass123")
	f.userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

	// A stray token field does not force the redeem phase while the email
	// is present and the new password is not.
	rec := postJSON(t, f.router, "/auth/reset-password", map[string]string{
		"token": "whatever",
		"email": user.Email,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "reset link")
	f.userRepo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestResetPassword_EmptyBody_400(t *testing.T) {
	f := newFixture(t)

	rec := postJSON(t, f.router, "/auth/reset-password", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetPassword_RequestPhase_RateLimited(t *testing.T) {
	f := newFixture(t, withResetLimiter(denyLimiter{}))

	rec := postJSON(t, f.router, "/auth/reset-password", map[string]string{"email": "owner@biz.test"})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSignup_CreatesAccount(t *testing.T) {
	f := newFixture(t)
	f.userRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	rec := postJSON(t, f.router, "/auth/signup", RegisterRequest{
		Email:        "new@biz.test",
		Password:     "SecurePass123",
		BusinessName: "New Biz",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "SecurePass123")
}

func TestSignup_DuplicateEmail_409(t *testing.T) {
	f := newFixture(t)
	f.userRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
		Return(apperrors.AlreadyExists("user", "email", "new@biz.test"))

	rec := postJSON(t, f.router, "/auth/signup", RegisterRequest{
		Email:    "new@biz.test",
		Password: "SecurePass123",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestContentTypeEnforced(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
