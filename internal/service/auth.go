package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/milestono/api/internal/domain/auth"
	apperrors "github.com/milestono/api/internal/errors"
	"github.com/milestono/api/internal/ports"
)

// AuthMetrics records login flow outcomes. Implemented by observability/metrics.
type AuthMetrics interface {
	AuthOutcome(stage, outcome string)
}

// AuthServiceOptions groups dependencies for AuthService.
// Provider may be nil when no identity provider could be configured; the
// login endpoints then fail with ErrAuthUnavailable while sessions keep working.
type AuthServiceOptions struct {
	Provider   ports.AuthProvider
	States     ports.StateStore
	Sessions   ports.SessionStore
	Identities ports.IdentityRepository
	SessionTTL time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
	Metrics    AuthMetrics
}

// AuthService orchestrates the redirect login flow and gates requests on sessions.
type AuthService struct {
	provider   ports.AuthProvider
	states     ports.StateStore
	sessions   ports.SessionStore
	identities ports.IdentityRepository
	sessionTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
	metrics    AuthMetrics
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	s := &AuthService{
		provider:   opts.Provider,
		states:     opts.States,
		sessions:   opts.Sessions,
		identities: opts.Identities,
		sessionTTL: opts.SessionTTL,
		now:        opts.Now,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = domainauth.DefaultSessionTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ProviderConfigured reports whether a login provider is wired.
func (s *AuthService) ProviderConfigured() bool {
	return s != nil && s.provider != nil
}

// SessionTTL returns the lifetime given to new sessions.
func (s *AuthService) SessionTTL() time.Duration { return s.sessionTTL }

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
}

// BeginLogin issues a state for the sanitized redirect target and returns the provider URL.
func (s *AuthService) BeginLogin(ctx context.Context, requestedRedirect string) (*BeginLoginResult, error) {
	if !s.ProviderConfigured() {
		s.observe("begin", "unavailable")
		return nil, ErrAuthUnavailable
	}

	st, err := s.states.Issue(ctx, SafeRedirectPath(requestedRedirect))
	if err != nil {
		s.observe("begin", "error")
		return nil, fmt.Errorf("issue state: %w", err)
	}

	authURL := s.provider.AuthCodeURL(ports.BeginInput{State: st.Token, Nonce: st.Nonce})
	s.observe("begin", "success")
	return &BeginLoginResult{AuthURL: authURL, State: st.Token}, nil
}

// CallbackInput carries the query parameters the provider sent back.
type CallbackInput struct {
	State         string
	Code          string
	ProviderError string
}

// CallbackResult contains the established session and where to send the user.
type CallbackResult struct {
	Session        domainauth.Session
	RedirectTarget string
}

// HandleCallback redeems the state, exchanges the code, resolves the local
// identity and persists a session. Any failure leaves no session behind; the
// state is consumed either way.
func (s *AuthService) HandleCallback(ctx context.Context, in CallbackInput) (*CallbackResult, error) {
	res, err := s.handleCallback(ctx, in)
	if err != nil {
		s.observe("callback", AuthErrorReason(err))
		return nil, err
	}
	s.observe("callback", "success")
	return res, nil
}

func (s *AuthService) handleCallback(ctx context.Context, in CallbackInput) (*CallbackResult, error) {
	st, ok := s.states.ValidateAndConsume(ctx, in.State)
	if !ok {
		return nil, newAuthError(AuthInvalidState, errors.New("state is unknown, expired, or already used"))
	}

	if in.ProviderError != "" {
		return nil, newAuthError(AuthExchangeFailed, fmt.Errorf("provider returned error %q", in.ProviderError))
	}
	if in.Code == "" {
		return nil, newAuthError(AuthExchangeFailed, errors.New("authorization code is required"))
	}
	if !s.ProviderConfigured() {
		return nil, newAuthError(AuthExchangeFailed, ErrAuthUnavailable)
	}

	ext, err := s.provider.Exchange(ctx, ports.ExchangeInput{Code: in.Code, Nonce: st.Nonce})
	if err != nil {
		return nil, newAuthError(AuthExchangeFailed, fmt.Errorf("exchange authorization code: %w", err))
	}
	if strings.TrimSpace(ext.Email) == "" || strings.TrimSpace(ext.Subject) == "" {
		return nil, newAuthError(AuthExchangeFailed, errors.New("provider identity is missing subject or email"))
	}

	if s.identities == nil {
		return nil, newAuthError(AuthSessionFailed, errors.New("identity repository not configured"))
	}
	ident, err := s.identities.ResolveExternal(ctx, ext)
	if err != nil {
		if apperrors.IsConflict(err) {
			return nil, newAuthError(AuthIdentityConflict, err)
		}
		return nil, newAuthError(AuthSessionFailed, fmt.Errorf("resolve identity: %w", err))
	}

	now := s.now().UTC()
	sess := domainauth.Session{
		ID:          generateSessionID(),
		UserID:      ident.ID,
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.sessionTTL),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, newAuthError(AuthSessionFailed, fmt.Errorf("save session: %w", err))
	}

	s.logger.InfoContext(ctx, "login completed", "user_id", ident.ID)
	return &CallbackResult{Session: sess, RedirectTarget: SafeRedirectPath(st.RedirectTarget)}, nil
}

// Authenticate returns the live session for sessionID.
// Missing and expired sessions report false; expired ones are removed.
func (s *AuthService) Authenticate(ctx context.Context, sessionID string) (*domainauth.Session, bool) {
	if s == nil || sessionID == "" {
		return nil, false
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, false
	}

	if sess.Expired(s.now()) {
		if delErr := s.sessions.Delete(ctx, sessionID); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete expired session", "error", delErr)
		}
		return nil, false
	}
	return &sess, true
}

// Logout removes a session. Unknown or empty ids are a no-op.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.observe("logout", "error")
		return fmt.Errorf("delete session: %w", err)
	}
	s.observe("logout", "success")
	return nil
}

// SweepStates drops expired authorization states.
func (s *AuthService) SweepStates(ctx context.Context) int {
	return s.states.Sweep(ctx, s.now())
}

func (s *AuthService) observe(stage, outcome string) {
	if s.metrics != nil {
		s.metrics.AuthOutcome(stage, outcome)
	}
}

// SafeRedirectPath reduces raw to a same-origin relative path.
// Absolute URLs, scheme-relative paths and anything unparsable become "/".
func SafeRedirectPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return "/"
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	if strings.ContainsAny(raw, "\r\n\t") {
		return "/"
	}

	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	out := u.EscapedPath()
	if out == "" {
		out = "/"
	}
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}

// generateSessionID creates a cryptographically secure random session ID.
func generateSessionID() string {
	return uuid.New().String()
}
