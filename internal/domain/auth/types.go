package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

const (
	// DefaultStateTTL bounds how long an issued authorization state stays redeemable.
	DefaultStateTTL = 5 * time.Minute
	// DefaultSessionTTL is the session validity window when none is configured.
	DefaultSessionTTL = 24 * time.Hour
)

// AuthorizationState is the anti-forgery token round-tripped through the provider redirect.
// Nonce is bound to the ID token the provider issues for this login attempt.
type AuthorizationState struct {
	Token          string    `json:"token"`
	CreatedAt      time.Time `json:"created_at"`
	RedirectTarget string    `json:"redirect_target"`
	Nonce          string    `json:"nonce"`
}

// Expired reports whether the state is older than ttl at now.
func (s AuthorizationState) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}

// ExternalIdentity is what an IdP reports about the user after a code exchange.
// Adapters map provider-specific claims into this shape.
type ExternalIdentity struct {
	Subject       string // provider-stable user identifier (OIDC "sub")
	Email         string
	DisplayName   string
	EmailVerified bool
}

// Identity is the local user record. ExternalID is nil for local-only accounts.
type Identity struct {
	ID          string    `json:"id"           db:"id"`
	ExternalID  *string   `json:"external_id"  db:"external_id"`
	Email       string    `json:"email"        db:"email"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Verified    bool      `json:"verified"     db:"verified"`
	CreatedAt   time.Time `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"   db:"updated_at"`
}

// HasExternalID reports whether the identity is linked to a provider account.
func (i Identity) HasExternalID() bool { return i.ExternalID != nil && *i.ExternalID != "" }

// Session is the server-side principal record we persist for an authenticated user.
// ID is an opaque session identifier carried in the session cookie.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// NormalizeEmail lowercases and trims an email for uniqueness comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
