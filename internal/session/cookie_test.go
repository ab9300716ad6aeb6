package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scalemako/crm-backend/internal/auth"
)

func responseCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestCookieManager_Attach(t *testing.T) {
	rec := httptest.NewRecorder()
	NewCookieManager(true).Attach(rec, "signed-token", false)

	c := responseCookie(t, rec)
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "signed-token", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, int(auth.SessionTTL.Seconds()), c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestCookieManager_AttachExtended(t *testing.T) {
	rec := httptest.NewRecorder()
	NewCookieManager(false).Attach(rec, "signed-token", true)

	c := responseCookie(t, rec)
	assert.Equal(t, int(auth.ExtendedSessionTTL.Seconds()), c.MaxAge)
	assert.False(t, c.Secure)
}

func TestCookieManager_Detach(t *testing.T) {
	rec := httptest.NewRecorder()
	NewCookieManager(true).Detach(rec)

	c := responseCookie(t, rec)
	assert.Equal(t, CookieName, c.Name)
	assert.Empty(t, c.Value)
	assert.Negative(t, c.MaxAge)
}

func TestTokenFromRequest_Cookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})

	token, err := TokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "from-cookie", token)
}

func TestTokenFromRequest_BearerFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.Header.Set("Authorization", "Bearer from-header")

	token, err := TokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "from-header", token)
}

func TestTokenFromRequest_CookieWinsOverHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")

	token, err := TokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "from-cookie", token)
}

func TestTokenFromRequest_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)

	_, err := TokenFromRequest(req)
	assert.ErrorIs(t, err, ErrNoToken)
}
