// Package session manages the browser-facing session cookie that carries
// the signed auth token.
package session

import (
	"errors"
	"net/http"
	"strings"

	"github.com/scalemako/crm-backend/internal/auth"
)

// CookieName is the session cookie issued on login.
const CookieName = "auth-token"

// ErrNoToken is returned when a request carries no session credential.
var ErrNoToken = errors.New("session: no token in request")

// CookieManager writes and clears the session cookie. Secure is set outside
// local development so the cookie only travels over TLS in deployed
// environments.
type CookieManager struct {
	secure bool
}

// NewCookieManager creates a manager. secure controls the cookie's Secure
// attribute.
func NewCookieManager(secure bool) *CookieManager {
	return &CookieManager{secure: secure}
}

// Attach sets the session cookie on the response. The cookie lifetime
// mirrors the token's: extended sessions get the long TTL.
func (m *CookieManager) Attach(w http.ResponseWriter, token string, extended bool) {
	ttl := auth.SessionTTL
	if extended {
		ttl = auth.ExtendedSessionTTL
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Detach expires the session cookie immediately.
func (m *CookieManager) Detach(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest extracts the session token, preferring the cookie and
// falling back to a bearer Authorization header for non-browser clients.
func TokenFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
		return token, nil
	}

	return "", ErrNoToken
}
