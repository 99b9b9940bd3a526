package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/milestono/api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(t *testing.T, h *authHarness) http.Handler {
	t.Helper()
	return NewRouter(RouterServices{
		Auth:        h.svc,
		Cookies:     testCookiePolicy(),
		FailurePath: "/login",
	})
}

func TestAuthRoutes_LoginRoundTrip(t *testing.T) {
	h := newAuthHarness(t)
	router := newAuthRouter(t, h)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/auth/google?redirect=/profile", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "mock-idp", loc.Host)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Nil(t, findCookie(rec, SessionCookieName), "login initiation must not set a session")

	rec = serve(router, httptest.NewRequest(http.MethodGet,
		"/auth/google/callback?code=abc&state="+url.QueryEscape(state), nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/profile", rec.Header().Get("Location"))

	cookie := findCookie(rec, SessionCookieName)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.InDelta(t, 24*60*60, cookie.MaxAge, 5)

	rec = serve(router, withSession(httptest.NewRequest(http.MethodGet, "/api/me", nil), cookie.Value))
	require.Equal(t, http.StatusOK, rec.Code)
	var me map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "mock.user@example.com", me["email"])

	rec = serve(router, withSession(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), cookie.Value))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())
	cleared := findCookie(rec, SessionCookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	rec = serve(router, withSession(httptest.NewRequest(http.MethodGet, "/api/me", nil), cookie.Value))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRoutes_CallbackFailuresRedirectWithReason(t *testing.T) {
	tests := []struct {
		name   string
		query  func(state string) string
		reason string
	}{
		{
			name:   "unknown state",
			query:  func(string) string { return "code=abc&state=forged" },
			reason: "invalid_state",
		},
		{
			name:   "missing state",
			query:  func(string) string { return "code=abc" },
			reason: "invalid_state",
		},
		{
			name:   "provider error",
			query:  func(s string) string { return "error=access_denied&state=" + url.QueryEscape(s) },
			reason: "exchange_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAuthHarness(t)
			router := newAuthRouter(t, h)

			begin, err := h.svc.BeginLogin(t.Context(), "/")
			require.NoError(t, err)

			rec := serve(router, httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+tt.query(begin.State), nil))
			require.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/login?error="+tt.reason, rec.Header().Get("Location"))
			assert.Nil(t, findCookie(rec, SessionCookieName))
			assert.Equal(t, 0, h.sessions.Len())
		})
	}
}

func TestAuthRoutes_ReplayedCallbackRejected(t *testing.T) {
	h := newAuthHarness(t)
	router := newAuthRouter(t, h)

	begin, err := h.svc.BeginLogin(t.Context(), "/")
	require.NoError(t, err)
	target := "/auth/google/callback?code=abc&state=" + url.QueryEscape(begin.State)

	first := serve(router, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, "/", first.Header().Get("Location"))

	second := serve(router, httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, "/login?error=invalid_state", second.Header().Get("Location"))
	assert.Equal(t, 1, h.sessions.Len())
}

func TestAuthRoutes_ProviderUnavailable(t *testing.T) {
	h := newAuthHarness(t)
	svc := service.NewAuthService(service.AuthServiceOptions{
		States:     h.states,
		Sessions:   h.sessions,
		Identities: h.identities,
	})
	router := NewRouter(RouterServices{Auth: svc, Cookies: testCookiePolicy()})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "auth_unavailable")

	// Session-protected routes still work without a provider.
	id := h.seedSession(t)
	rec = serve(router, withSession(httptest.NewRequest(http.MethodGet, "/api/me", nil), id))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRoutes_NoAuthServiceFailsClosed(t *testing.T) {
	router := NewRouter(RouterServices{})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(router, withSession(httptest.NewRequest(http.MethodGet, "/api/me", nil), "anything"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRoutes_LoginRateLimited(t *testing.T) {
	h := newAuthHarness(t)
	router := NewRouter(RouterServices{
		Auth:           h.svc,
		Cookies:        testCookiePolicy(),
		LoginRateLimit: RateLimitConfig{PerSecond: 0.001, Burst: 2},
	})

	for range 2 {
		rec := serve(router, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
		require.Equal(t, http.StatusFound, rec.Code)
	}
	rec := serve(router, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 2, h.states.Len(), "rejected requests must not issue states")
}

func TestAuthHandlers_Status(t *testing.T) {
	h := newAuthHarness(t)
	router := newAuthRouter(t, h)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/auth/status", nil))
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	rec = serve(router, withSession(httptest.NewRequest(http.MethodGet, "/auth/status", nil), "stale"))
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())
	require.NotNil(t, findCookie(rec, SessionCookieName), "stale cookie should be cleared")

	id := h.seedSession(t)
	rec = serve(router, withSession(httptest.NewRequest(http.MethodGet, "/auth/status", nil), id))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "ada@example.com", body["user"].(map[string]any)["email"])
}

func TestAuthHandlers_LogoutWithoutSession(t *testing.T) {
	h := newAuthHarness(t)
	router := newAuthRouter(t, h)

	for range 2 {
		rec := serve(router, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())
	}
}

func TestCookiePolicy_SameSiteNone(t *testing.T) {
	h := newAuthHarness(t)
	router := NewRouter(RouterServices{
		Auth:    h.svc,
		Cookies: CookiePolicy{Secure: true, SameSite: http.SameSiteNoneMode, Domain: "example.com"},
	})

	begin, err := h.svc.BeginLogin(t.Context(), "/")
	require.NoError(t, err)
	rec := serve(router, httptest.NewRequest(http.MethodGet,
		"/auth/google/callback?code=abc&state="+url.QueryEscape(begin.State), nil))

	cookie := findCookie(rec, SessionCookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
	assert.Equal(t, "example.com", cookie.Domain)
}
