package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token lifetimes. Session tokens come in a default and an extended
// ("remember me") variant; reset tokens are always short-lived.
const (
	SessionTTL         = 24 * time.Hour
	ExtendedSessionTTL = 30 * 24 * time.Hour
	ResetTTL           = 15 * time.Minute
)

// Scope values partition token purposes. A reset token must never pass
// session verification and vice versa, even though both are signed with the
// same secret.
const (
	scopeSession = "session"
	scopeReset   = "password_reset"
)

// ErrInvalidToken is the single externally-visible verification failure.
// Bad signature, expiry, malformed input, and wrong scope all collapse into
// it; the wrapped cause stays available for internal logging via errors.Is.
var ErrInvalidToken = errors.New("invalid or expired token")

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Scope  string `json:"scope"`
	jwt.RegisteredClaims
}

// ResetClaims are the claims carried by a password-reset token.
type ResetClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Scope  string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies the compact expiring tokens used for
// sessions and password resets.
type TokenManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenManager creates a token manager with the given signing secret.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: "crm-backend",
		now:    time.Now,
	}
}

// WithClock overrides the manager's clock. Tests only.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

// IssueSession creates a signed session token. extended selects the
// 30-day "remember me" lifetime over the 24-hour default.
func (m *TokenManager) IssueSession(userID, email, role string, extended bool) (string, error) {
	ttl := SessionTTL
	if extended {
		ttl = ExtendedSessionTTL
	}

	now := m.now().UTC()
	claims := &SessionClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Scope:  scopeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    m.issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// IssueReset creates a signed password-reset token valid for 15 minutes.
func (m *TokenManager) IssueReset(userID, email string) (string, error) {
	now := m.now().UTC()
	claims := &ResetClaims{
		UserID: userID,
		Email:  email,
		Scope:  scopeReset,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ResetTTL)),
			Issuer:    m.issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return signed, nil
}

// VerifySession parses and validates a session token.
func (m *TokenManager) VerifySession(tokenString string) (*SessionClaims, error) {
	var claims SessionClaims
	if err := m.parse(tokenString, &claims); err != nil {
		return nil, err
	}
	if claims.Scope != scopeSession {
		return nil, fmt.Errorf("%w: not a session token", ErrInvalidToken)
	}
	return &claims, nil
}

// VerifyReset parses and validates a password-reset token.
func (m *TokenManager) VerifyReset(tokenString string) (*ResetClaims, error) {
	var claims ResetClaims
	if err := m.parse(tokenString, &claims); err != nil {
		return nil, err
	}
	if claims.Scope != scopeReset {
		return nil, fmt.Errorf("%w: not a reset token", ErrInvalidToken)
	}
	return &claims, nil
}

func (m *TokenManager) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
