package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/milestono/api/internal/domain/auth"
)

// BeginInput carries the values embedded in the provider authorization URL.
type BeginInput struct {
	State string
	Nonce string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	Nonce string
}

// AuthProvider builds authorization requests for an IdP and exchanges callback codes.
type AuthProvider interface {
	// AuthCodeURL returns the provider authorization URL carrying state and nonce.
	// It is a pure function of provider configuration and its input.
	AuthCodeURL(in BeginInput) string

	// Exchange trades an authorization code for the provider's view of the user.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.ExternalIdentity, error)
}

// StateStore issues and redeems single-use authorization states.
type StateStore interface {
	// Issue creates a fresh state bound to redirectTarget.
	Issue(ctx context.Context, redirectTarget string) (domainauth.AuthorizationState, error)

	// ValidateAndConsume atomically removes the state and reports whether it was live.
	// Absent, already consumed, and expired states all return false.
	ValidateAndConsume(ctx context.Context, token string) (domainauth.AuthorizationState, bool)

	// Sweep drops states older than the TTL and returns how many were removed.
	Sweep(ctx context.Context, now time.Time) int
}

// SessionStore persists and retrieves user sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// IdentityRepository owns local user records.
type IdentityRepository interface {
	// ResolveExternal finds the identity by external id, then by email (linking the
	// external id), and otherwise creates it. Runs as one atomic unit.
	ResolveExternal(ctx context.Context, ext domainauth.ExternalIdentity) (domainauth.Identity, error)

	// GetByID returns the identity with the given id.
	GetByID(ctx context.Context, id string) (domainauth.Identity, error)
}
