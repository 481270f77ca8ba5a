package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crm-dashboard/internal/dto"
	"github.com/noah-isme/crm-dashboard/internal/models"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
)

func TestAuthHandlerLoginSetsCookie(t *testing.T) {
	auth := &fakeAuth{}
	h := NewAuthHandler(auth, CookieConfig{Name: "crm_session", Secure: true})
	c, rec := newContext(http.MethodPost, "/auth/login", map[string]string{"email": "mia@example.com", "password": "secret"}, "")
	c.Request.Header.Set("User-Agent", "browser")

	h.Login(c)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "crm_session", cookies[0].Name)
	assert.Equal(t, "signed-token", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, "browser", auth.lastLogin.UserAgent)

	var body dto.SessionResponse
	decodeData(t, decode(t, rec), &body)
	assert.Equal(t, "/manager/dashboard", body.Home)
	assert.Equal(t, models.RoleManager, body.Identity.Role)
}

func TestAuthHandlerLoginRejectsBadPayload(t *testing.T) {
	h := NewAuthHandler(&fakeAuth{}, CookieConfig{})
	c, rec := newContext(http.MethodPost, "/auth/login", nil, "")

	h.Login(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandlerLoginPropagatesUpstreamError(t *testing.T) {
	h := NewAuthHandler(&fakeAuth{loginErr: appErrors.ErrInvalidCredentials}, CookieConfig{})
	c, rec := newContext(http.MethodPost, "/auth/login", map[string]string{"email": "a@b.co", "password": "x"}, "")

	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, decode(t, rec).Error.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestAuthHandlerLogoutClearsCookie(t *testing.T) {
	auth := &fakeAuth{}
	h := NewAuthHandler(auth, CookieConfig{Name: "crm_session"})
	c, rec := newContext(http.MethodPost, "/auth/logout", nil, models.RoleSales)

	h.Logout(c)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"sess-sales"}, auth.loggedOut)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestAuthHandlerMeWithoutSession(t *testing.T) {
	h := NewAuthHandler(&fakeAuth{}, CookieConfig{})
	c, rec := newContext(http.MethodGet, "/auth/me", nil, "")

	h.Me(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, appErrors.ErrSessionExpired.Code, decode(t, rec).Error.Code)
}
