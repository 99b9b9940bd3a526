package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	domainauth "github.com/milestono/api/internal/domain/auth"
	apperrors "github.com/milestono/api/internal/errors"
	"github.com/milestono/api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider       = (*MockAuthProvider)(nil)
	_ ports.IdentityRepository = (*MemoryIdentityRepository)(nil)
)

// MockAuthProvider simulates an IdP for tests with deterministic URLs and identities.
type MockAuthProvider struct {
	AuthCodeURLFunc func(in ports.BeginInput) string
	ExchangeFunc    func(ctx context.Context, in ports.ExchangeInput) (domainauth.ExternalIdentity, error)

	// Deterministic values for predictable testing
	AuthURL     string
	DefaultUser domainauth.ExternalIdentity

	exchanges atomic.Int64
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL: "https://mock-idp/auth",
		DefaultUser: domainauth.ExternalIdentity{
			Subject:       "mock-sub-1",
			Email:         "mock.user@example.com",
			DisplayName:   "Mock User",
			EmailVerified: true,
		},
	}
}

func (m *MockAuthProvider) AuthCodeURL(in ports.BeginInput) string {
	if m.AuthCodeURLFunc != nil {
		return m.AuthCodeURLFunc(in)
	}

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	q := url.Values{}
	q.Set("state", in.State)
	q.Set("nonce", in.Nonce)
	return authURL + "?" + q.Encode()
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.ExternalIdentity, error) {
	m.exchanges.Add(1)
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	if in.Code == "" {
		return domainauth.ExternalIdentity{}, fmt.Errorf("missing code")
	}

	user := m.DefaultUser
	if user.Subject == "" {
		user = domainauth.ExternalIdentity{
			Subject:     "mock-sub-1",
			Email:       "mock.user@example.com",
			DisplayName: "Mock User",
		}
	}
	return user, nil
}

// Exchanges returns how many times Exchange was called.
func (m *MockAuthProvider) Exchanges() int { return int(m.exchanges.Load()) }

// MemoryIdentityRepository is an in-memory IdentityRepository for unit tests.
// It applies the same find, link, or create rules as the SQL repository.
type MemoryIdentityRepository struct {
	mu     sync.Mutex
	byID   map[string]*domainauth.Identity
	nextID int
	now    func() time.Time
}

// NewMemoryIdentityRepository creates an empty repository.
func NewMemoryIdentityRepository() *MemoryIdentityRepository {
	return &MemoryIdentityRepository{
		byID: make(map[string]*domainauth.Identity),
		now:  time.Now,
	}
}

// Seed inserts a local identity, optionally without an external id.
func (m *MemoryIdentityRepository) Seed(email, displayName string, externalID *string) domainauth.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(domainauth.NormalizeEmail(email), displayName, externalID, false)
}

func (m *MemoryIdentityRepository) ResolveExternal(_ context.Context, ext domainauth.ExternalIdentity) (domainauth.Identity, error) {
	if ext.Subject == "" {
		return domainauth.Identity{}, apperrors.Validation("external subject is required")
	}
	email := domainauth.NormalizeEmail(ext.Email)
	if email == "" {
		return domainauth.Identity{}, apperrors.Validation("email is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.byID {
		if id.ExternalID != nil && *id.ExternalID == ext.Subject {
			return *id, nil
		}
	}
	for _, id := range m.byID {
		if id.Email != email {
			continue
		}
		if id.HasExternalID() {
			return domainauth.Identity{}, apperrors.Conflictf("email %s is linked to another account", email)
		}
		sub := ext.Subject
		id.ExternalID = &sub
		id.Verified = id.Verified || ext.EmailVerified
		id.UpdatedAt = m.now()
		return *id, nil
	}

	sub := ext.Subject
	return m.insertLocked(email, ext.DisplayName, &sub, ext.EmailVerified), nil
}

func (m *MemoryIdentityRepository) GetByID(_ context.Context, id string) (domainauth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[id]
	if !ok {
		return domainauth.Identity{}, apperrors.NotFoundf("identity %s not found", id)
	}
	return *rec, nil
}

// Count returns the number of stored identities.
func (m *MemoryIdentityRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *MemoryIdentityRepository) insertLocked(email, name string, externalID *string, verified bool) domainauth.Identity {
	m.nextID++
	now := m.now()
	rec := &domainauth.Identity{
		ID:          fmt.Sprintf("identity-%d", m.nextID),
		ExternalID:  externalID,
		Email:       email,
		DisplayName: name,
		Verified:    verified,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.byID[rec.ID] = rec
	return *rec
}
