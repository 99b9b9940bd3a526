package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/milestono/api/internal/adapters/memory"
	domainauth "github.com/milestono/api/internal/domain/auth"
	authmocks "github.com/milestono/api/internal/mocks/auth"
	"github.com/milestono/api/internal/service"
	"github.com/stretchr/testify/require"
)

type authHarness struct {
	svc        *service.AuthService
	provider   *authmocks.MockAuthProvider
	sessions   *memory.SessionStore
	states     *memory.StateStore
	identities *authmocks.MemoryIdentityRepository
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()
	h := &authHarness{
		provider:   authmocks.NewMockAuthProvider(),
		sessions:   memory.NewSessionStore(nil),
		states:     memory.NewStateStore(memory.StateStoreOptions{}),
		identities: authmocks.NewMemoryIdentityRepository(),
	}
	h.svc = service.NewAuthService(service.AuthServiceOptions{
		Provider:   h.provider,
		States:     h.states,
		Sessions:   h.sessions,
		Identities: h.identities,
	})
	return h
}

// seedSession stores a live session and returns its id.
func (h *authHarness) seedSession(t *testing.T) string {
	t.Helper()
	now := time.Now()
	sess := domainauth.Session{
		ID:          "session-1",
		UserID:      "identity-1",
		Email:       "ada@example.com",
		DisplayName: "Ada",
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Hour),
	}
	require.NoError(t, h.sessions.Save(context.Background(), sess))
	return sess.ID
}

func testCookiePolicy() CookiePolicy {
	return CookiePolicy{Secure: true, SameSite: http.SameSiteLaxMode, MaxAge: 24 * time.Hour}
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func withSession(req *http.Request, id string) *http.Request {
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: id})
	return req
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
