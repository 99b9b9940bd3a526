package service

import (
	"errors"
	"fmt"
)

// AuthErrorKind classifies why a login step failed. Its string form is safe to
// expose to clients (it is used as the ?error= value on failure redirects).
type AuthErrorKind string

const (
	AuthInvalidState     AuthErrorKind = "invalid_state"
	AuthExchangeFailed   AuthErrorKind = "exchange_failed"
	AuthIdentityConflict AuthErrorKind = "identity_conflict"
	AuthUnauthorized     AuthErrorKind = "unauthorized"
	AuthSessionFailed    AuthErrorKind = "session_failed"
)

// ErrAuthUnavailable is returned when no identity provider could be configured.
var ErrAuthUnavailable = errors.New("authentication provider unavailable")

// AuthError is returned by the login flow. It keeps the underlying cause for
// logging while Kind stays the only thing shown to the user.
type AuthError struct {
	Kind AuthErrorKind
	err  error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}
	if e.err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As checks.
func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Reason returns the client-safe failure reason.
func (e *AuthError) Reason() string {
	if e == nil {
		return ""
	}
	return string(e.Kind)
}

func newAuthError(kind AuthErrorKind, err error) *AuthError {
	return &AuthError{Kind: kind, err: err}
}

// AuthErrorReason extracts the client-safe reason from err.
// Errors outside the auth taxonomy report "unauthorized".
func AuthErrorReason(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason()
	}
	return string(AuthUnauthorized)
}

// IsAuthErrorKind reports whether err is an AuthError of the given kind.
func IsAuthErrorKind(err error, kind AuthErrorKind) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == kind
}
