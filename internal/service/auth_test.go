package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/milestono/api/internal/adapters/memory"
	domainauth "github.com/milestono/api/internal/domain/auth"
	apperrors "github.com/milestono/api/internal/errors"
	"github.com/milestono/api/internal/mocks"
	authmocks "github.com/milestono/api/internal/mocks/auth"
	"github.com/milestono/api/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockSessionStore is a test helper for testing session store errors.
type mockSessionStore struct {
	saveFunc   func(context.Context, domainauth.Session) error
	getFunc    func(context.Context, string) (domainauth.Session, error)
	deleteFunc func(context.Context, string) error
}

func (m *mockSessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, sess)
	}
	return nil
}

func (m *mockSessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return domainauth.Session{}, memory.ErrNotFound
}

func (m *mockSessionStore) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingMetrics) AuthOutcome(stage, outcome string) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, stage+":"+outcome)
	r.mu.Unlock()
}

type authFixture struct {
	svc        *AuthService
	provider   *authmocks.MockAuthProvider
	states     *memory.StateStore
	sessions   *memory.SessionStore
	identities *authmocks.MemoryIdentityRepository
	clock      *fakeClock
	metrics    *recordingMetrics
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	clock := newFakeClock()
	f := &authFixture{
		provider:   authmocks.NewMockAuthProvider(),
		states:     memory.NewStateStore(memory.StateStoreOptions{Now: clock.Now}),
		sessions:   memory.NewSessionStore(clock.Now),
		identities: authmocks.NewMemoryIdentityRepository(),
		clock:      clock,
		metrics:    &recordingMetrics{},
	}
	f.svc = NewAuthService(AuthServiceOptions{
		Provider:   f.provider,
		States:     f.states,
		Sessions:   f.sessions,
		Identities: f.identities,
		Now:        clock.Now,
		Metrics:    f.metrics,
	})
	return f
}

func stateFromAuthURL(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestNewAuthService_Defaults(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{})

	assert.Equal(t, domainauth.DefaultSessionTTL, svc.SessionTTL())
	assert.NotNil(t, svc.now)
	assert.NotNil(t, svc.logger)
	assert.False(t, svc.ProviderConfigured())
}

func TestAuthService_LoginRoundTrip(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginLogin(ctx, "/profile")
	require.NoError(t, err)
	assert.Contains(t, begin.AuthURL, "https://mock-idp/auth?")
	assert.Equal(t, begin.State, stateFromAuthURL(t, begin.AuthURL))
	assert.Equal(t, 0, f.sessions.Len(), "begin must not touch sessions")

	res, err := f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "/profile", res.RedirectTarget)
	assert.NotEmpty(t, res.Session.ID)
	assert.Equal(t, "mock.user@example.com", res.Session.Email)
	assert.Equal(t, f.clock.Now(), res.Session.IssuedAt)
	assert.Equal(t, f.clock.Now().Add(domainauth.DefaultSessionTTL), res.Session.ExpiresAt)

	sess, ok := f.svc.Authenticate(ctx, res.Session.ID)
	require.True(t, ok)
	assert.Equal(t, res.Session.UserID, sess.UserID)
	assert.Equal(t, 1, f.identities.Count())
	assert.Equal(t, []string{"begin:success", "callback:success"}, f.metrics.outcomes)
}

func TestAuthService_BeginLogin_SanitizesRedirect(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginLogin(ctx, "https://evil.example/steal")
	require.NoError(t, err)

	res, err := f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "/", res.RedirectTarget)
}

func TestAuthService_BeginLogin_ProviderUnavailable(t *testing.T) {
	f := newAuthFixture(t)
	svc := NewAuthService(AuthServiceOptions{
		States:     f.states,
		Sessions:   f.sessions,
		Identities: f.identities,
	})

	res, err := svc.BeginLogin(context.Background(), "/")
	require.ErrorIs(t, err, ErrAuthUnavailable)
	assert.Nil(t, res)
	assert.Equal(t, 0, f.states.Len())
}

func TestAuthService_HandleCallback_UnknownState(t *testing.T) {
	f := newAuthFixture(t)

	res, err := f.svc.HandleCallback(context.Background(), CallbackInput{State: "never-issued", Code: "abc"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsAuthErrorKind(err, AuthInvalidState))
	assert.Equal(t, 0, f.provider.Exchanges(), "no exchange for a forged state")
	assert.Equal(t, 0, f.sessions.Len())
	assert.Equal(t, []string{"callback:invalid_state"}, f.metrics.outcomes)
}

func TestAuthService_HandleCallback_ReplayRejected(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginLogin(ctx, "/")
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})
	require.Error(t, err)
	assert.True(t, IsAuthErrorKind(err, AuthInvalidState))
	assert.Equal(t, 1, f.provider.Exchanges())
	assert.Equal(t, 1, f.sessions.Len())
}

func TestAuthService_HandleCallback_ExpiredState(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginLogin(ctx, "/")
	require.NoError(t, err)

	f.clock.Advance(domainauth.DefaultStateTTL + time.Second)

	_, err = f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})
	assert.True(t, IsAuthErrorKind(err, AuthInvalidState))
	assert.Equal(t, 0, f.provider.Exchanges())
}

func TestAuthService_HandleCallback_ProviderErrorConsumesState(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginLogin(ctx, "/")
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, ProviderError: "access_denied"})
	assert.True(t, IsAuthErrorKind(err, AuthExchangeFailed))

	_, err = f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})
	assert.True(t, IsAuthErrorKind(err, AuthInvalidState), "state must not be reusable after a failed attempt")
	assert.Equal(t, 0, f.provider.Exchanges())
}

func TestAuthService_HandleCallback_ExchangeFailures(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		exchange func(context.Context, ports.ExchangeInput) (domainauth.ExternalIdentity, error)
	}{
		{name: "missing code", code: ""},
		{
			name: "provider rejects code",
			code: "bad",
			exchange: func(context.Context, ports.ExchangeInput) (domainauth.ExternalIdentity, error) {
				return domainauth.ExternalIdentity{}, errors.New("invalid_grant")
			},
		},
		{
			name: "identity without email",
			code: "abc",
			exchange: func(context.Context, ports.ExchangeInput) (domainauth.ExternalIdentity, error) {
				return domainauth.ExternalIdentity{Subject: "sub-1"}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			f.provider.ExchangeFunc = tt.exchange
			ctx := context.Background()

			begin, err := f.svc.BeginLogin(ctx, "/")
			require.NoError(t, err)

			res, err := f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: tt.code})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, string(AuthExchangeFailed), AuthErrorReason(err))
			assert.Equal(t, 0, f.sessions.Len())
			assert.Equal(t, 0, f.identities.Count())
		})
	}
}

func TestAuthService_HandleCallback_PassesNonceToExchange(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	var gotNonce string
	f.provider.ExchangeFunc = func(_ context.Context, in ports.ExchangeInput) (domainauth.ExternalIdentity, error) {
		gotNonce = in.Nonce
		return f.provider.DefaultUser, nil
	}

	begin, err := f.svc.BeginLogin(ctx, "/")
	require.NoError(t, err)
	u, err := url.Parse(begin.AuthURL)
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})
	require.NoError(t, err)
	assert.Equal(t, u.Query().Get("nonce"), gotNonce)
}

func TestAuthService_HandleCallback_LinksExistingEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	existing := f.identities.Seed("Mock.User@example.com", "Local Account", nil)

	begin, err := f.svc.BeginLogin(ctx, "/")
	require.NoError(t, err)
	res, err := f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})
	require.NoError(t, err)

	assert.Equal(t, existing.ID, res.Session.UserID)
	assert.Equal(t, 1, f.identities.Count())

	linked, err := f.identities.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.ExternalID)
	assert.Equal(t, "mock-sub-1", *linked.ExternalID)

	// A second login resolves by external id and creates nothing new.
	begin, err = f.svc.BeginLogin(ctx, "/")
	require.NoError(t, err)
	res, err = f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.Session.UserID)
	assert.Equal(t, 1, f.identities.Count())
}

func TestAuthService_HandleCallback_IdentityConflict(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	other := "other-sub"
	f.identities.Seed("mock.user@example.com", "Someone Else", &other)

	begin, err := f.svc.BeginLogin(ctx, "/")
	require.NoError(t, err)
	_, err = f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})

	require.Error(t, err)
	assert.True(t, IsAuthErrorKind(err, AuthIdentityConflict))
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, 0, f.sessions.Len())
}

func TestAuthService_HandleCallback_IdentityLookupFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	identities := mocks.NewMockIdentityRepository(ctrl)
	identities.EXPECT().
		ResolveExternal(gomock.Any(), gomock.Any()).
		Return(domainauth.Identity{}, apperrors.Unavailable("database unavailable"))

	clock := newFakeClock()
	sessions := memory.NewSessionStore(clock.Now)
	svc := NewAuthService(AuthServiceOptions{
		Provider:   authmocks.NewMockAuthProvider(),
		States:     memory.NewStateStore(memory.StateStoreOptions{Now: clock.Now}),
		Sessions:   sessions,
		Identities: identities,
		Now:        clock.Now,
	})
	ctx := context.Background()

	begin, err := svc.BeginLogin(ctx, "/")
	require.NoError(t, err)
	_, err = svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})

	assert.True(t, IsAuthErrorKind(err, AuthSessionFailed))
	assert.Equal(t, 0, sessions.Len())
}

func TestAuthService_HandleCallback_SessionSaveFails(t *testing.T) {
	f := newAuthFixture(t)
	svc := NewAuthService(AuthServiceOptions{
		Provider: f.provider,
		States:   f.states,
		Sessions: &mockSessionStore{
			saveFunc: func(context.Context, domainauth.Session) error { return errors.New("redis down") },
		},
		Identities: f.identities,
		Now:        f.clock.Now,
	})
	ctx := context.Background()

	begin, err := svc.BeginLogin(ctx, "/")
	require.NoError(t, err)
	res, err := svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})

	assert.Nil(t, res)
	assert.True(t, IsAuthErrorKind(err, AuthSessionFailed))
	assert.Contains(t, err.Error(), "redis down")
}

func TestAuthService_Authenticate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, ok := f.svc.Authenticate(ctx, "")
	assert.False(t, ok)
	_, ok = f.svc.Authenticate(ctx, "unknown")
	assert.False(t, ok)

	begin, err := f.svc.BeginLogin(ctx, "/")
	require.NoError(t, err)
	res, err := f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})
	require.NoError(t, err)

	f.clock.Advance(domainauth.DefaultSessionTTL)
	_, ok = f.svc.Authenticate(ctx, res.Session.ID)
	assert.False(t, ok, "session at its expiry instant is no longer valid")
	assert.Equal(t, 0, f.sessions.Len())
}

func TestAuthService_Authenticate_DeletesExpiredSession(t *testing.T) {
	clock := newFakeClock()
	expired := domainauth.Session{ID: "s1", ExpiresAt: clock.Now().Add(-time.Minute)}
	var deleted []string
	svc := NewAuthService(AuthServiceOptions{
		Sessions: &mockSessionStore{
			getFunc: func(context.Context, string) (domainauth.Session, error) { return expired, nil },
			deleteFunc: func(_ context.Context, id string) error {
				deleted = append(deleted, id)
				return nil
			},
		},
		Now: clock.Now,
	})

	_, ok := svc.Authenticate(context.Background(), "s1")
	assert.False(t, ok)
	assert.Equal(t, []string{"s1"}, deleted)
}

func TestAuthService_Logout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Logout(ctx, ""))
	require.NoError(t, f.svc.Logout(ctx, "never-existed"))

	begin, err := f.svc.BeginLogin(ctx, "/")
	require.NoError(t, err)
	res, err := f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, res.Session.ID))
	require.NoError(t, f.svc.Logout(ctx, res.Session.ID))

	_, ok := f.svc.Authenticate(ctx, res.Session.ID)
	assert.False(t, ok)
}

func TestAuthService_Logout_NotUndoneByConcurrentReads(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginLogin(ctx, "/")
	require.NoError(t, err)
	res, err := f.svc.HandleCallback(ctx, CallbackInput{State: begin.State, Code: "abc"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				f.svc.Authenticate(ctx, res.Session.ID)
			}
		}()
	}
	require.NoError(t, f.svc.Logout(ctx, res.Session.ID))
	wg.Wait()

	_, ok := f.svc.Authenticate(ctx, res.Session.ID)
	assert.False(t, ok)
}

func TestAuthService_Logout_StoreError(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{
		Sessions: &mockSessionStore{
			deleteFunc: func(context.Context, string) error { return errors.New("boom") },
		},
	})

	err := svc.Logout(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete session")
}

func TestAuthService_SweepStates(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	for range 3 {
		_, err := f.svc.BeginLogin(ctx, "/")
		require.NoError(t, err)
	}
	assert.Equal(t, 0, f.svc.SweepStates(ctx))

	f.clock.Advance(domainauth.DefaultStateTTL + time.Second)
	assert.Equal(t, 3, f.svc.SweepStates(ctx))
	assert.Equal(t, 0, f.states.Len())
}

func TestSafeRedirectPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/profile", "/profile"},
		{"/a/b?tab=1", "/a/b?tab=1"},
		{"https://evil.example/x", "/"},
		{"//evil.example/x", "/"},
		{"/\\evil.example", "/"},
		{"javascript:alert(1)", "/"},
		{"profile", "/"},
		{"/x\r\nSet-Cookie: a=b", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeRedirectPath(tt.in), "input %q", tt.in)
	}
}

func TestAuthError(t *testing.T) {
	cause := errors.New("underlying")
	err := newAuthError(AuthExchangeFailed, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "exchange_failed", err.Reason())
	assert.Equal(t, "exchange_failed: underlying", err.Error())
	assert.Equal(t, "unauthorized", AuthErrorReason(errors.New("other")))

	var nilErr *AuthError
	assert.Empty(t, nilErr.Error())
	assert.NoError(t, nilErr.Unwrap())
}
