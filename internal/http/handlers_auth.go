package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	domainauth "github.com/milestono/api/internal/domain/auth"
	"github.com/milestono/api/internal/service"
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	SessionGate
	ProviderConfigured() bool
	BeginLogin(ctx context.Context, requestedRedirect string) (*service.BeginLoginResult, error)
	HandleCallback(ctx context.Context, in service.CallbackInput) (*service.CallbackResult, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc         AuthServiceInterface
	Cookies     CookiePolicy
	FailurePath string
	Logger      *slog.Logger
	Now         func() time.Time
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Login handles the login initiation endpoint.
// GET /auth/google?redirect=<optional_path>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if !h.Svc.ProviderConfigured() {
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "auth_unavailable",
			Err:     service.ErrAuthUnavailable,
		})
		return
	}

	redirect := r.URL.Query().Get("redirect")
	if redirect == "" {
		redirect = r.URL.Query().Get("redirect_uri")
	}

	result, err := h.Svc.BeginLogin(r.Context(), redirect)
	if err != nil {
		if errors.Is(err, service.ErrAuthUnavailable) {
			WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "auth_unavailable", Err: err})
			return
		}
		h.logger().ErrorContext(r.Context(), "begin login failed", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "login_failed", Err: err})
		return
	}

	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback handles the OAuth callback endpoint.
// GET /auth/google/callback?code=<code>&state=<state>[&error=<provider_error>].
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.Svc.HandleCallback(r.Context(), service.CallbackInput{
		State:         q.Get("state"),
		Code:          q.Get("code"),
		ProviderError: q.Get("error"),
	})
	if err != nil {
		reason := service.AuthErrorReason(err)
		h.logger().WarnContext(r.Context(), "login callback failed", "reason", reason, "error", err)
		http.Redirect(w, r, h.failureURL(reason), http.StatusFound)
		return
	}

	h.Cookies.setSessionCookie(w, result.Session, h.now())
	http.Redirect(w, r, service.SafeRedirectPath(result.RedirectTarget), http.StatusFound)
}

// Logout handles the logout endpoint. It always succeeds.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if id := sessionIDFromRequest(r); id != "" {
		if err := h.Svc.Logout(r.Context(), id); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}

	h.Cookies.clearSessionCookie(w)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	id := sessionIDFromRequest(r)
	if id == "" {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	session, ok := h.Svc.Authenticate(r.Context(), id)
	if !ok {
		// Session is invalid or expired, clear the cookie
		h.Cookies.clearSessionCookie(w)
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          userPayload(session),
		"expires_at":    session.ExpiresAt,
	})
}

// Me returns the principal attached by RequireAuth.
// GET /api/me.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := PrincipalFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errAuthenticationRequired,
		})
		return
	}
	WriteJSON(w, http.StatusOK, userPayload(session))
}

func userPayload(s *domainauth.Session) map[string]any {
	return map[string]any{
		"id":           s.UserID,
		"email":        s.Email,
		"display_name": s.DisplayName,
	}
}

// failureURL builds FailurePath?error=<reason>. Only the reason is exposed.
func (h *AuthHandlers) failureURL(reason string) string {
	path := h.FailurePath
	if path == "" {
		path = "/login"
	}
	u := url.URL{Path: path}
	q := url.Values{}
	q.Set("error", reason)
	u.RawQuery = q.Encode()
	return u.String()
}
