package memory

// Package memory provides process-local adapters used when no shared backend is configured.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/milestono/api/internal/domain/auth"
	"github.com/milestono/api/internal/util"
)

const (
	stateTokenBytes      = 32
	defaultSweepInterval = time.Minute
	maxIssueAttempts     = 3
)

// StateStoreOptions configures a StateStore. Zero values pick defaults.
type StateStoreOptions struct {
	TTL           time.Duration
	SweepInterval time.Duration // minimum gap between lazy sweeps on Issue
	Now           func() time.Time
}

// StateStore is a mutex-guarded map of authorization states.
// Entries are removed either on consume or once older than the TTL.
type StateStore struct {
	mu        sync.Mutex
	items     map[string]domainauth.AuthorizationState
	ttl       time.Duration
	sweepGap  time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewStateStore creates an empty in-memory state store.
func NewStateStore(opts StateStoreOptions) *StateStore {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = domainauth.DefaultStateTTL
	}
	gap := opts.SweepInterval
	if gap <= 0 {
		gap = defaultSweepInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &StateStore{
		items:    make(map[string]domainauth.AuthorizationState),
		ttl:      ttl,
		sweepGap: gap,
		now:      now,
	}
}

// Issue stores a fresh state for redirectTarget.
func (s *StateStore) Issue(_ context.Context, redirectTarget string) (domainauth.AuthorizationState, error) {
	nonce, err := util.RandomToken(stateTokenBytes)
	if err != nil {
		return domainauth.AuthorizationState{}, fmt.Errorf("generate nonce: %w", err)
	}

	for range maxIssueAttempts {
		token, tokErr := util.RandomToken(stateTokenBytes)
		if tokErr != nil {
			return domainauth.AuthorizationState{}, fmt.Errorf("generate state: %w", tokErr)
		}

		s.mu.Lock()
		now := s.now()
		if now.Sub(s.lastSweep) >= s.sweepGap {
			s.sweepLocked(now)
		}
		if _, taken := s.items[token]; taken {
			s.mu.Unlock()
			continue
		}
		st := domainauth.AuthorizationState{
			Token:          token,
			CreatedAt:      now,
			RedirectTarget: redirectTarget,
			Nonce:          nonce,
		}
		s.items[token] = st
		s.mu.Unlock()
		return st, nil
	}
	return domainauth.AuthorizationState{}, errors.New("generate state: token collision")
}

// ValidateAndConsume removes the state under the lock so exactly one caller can redeem it.
func (s *StateStore) ValidateAndConsume(_ context.Context, token string) (domainauth.AuthorizationState, bool) {
	if token == "" {
		return domainauth.AuthorizationState{}, false
	}

	s.mu.Lock()
	st, ok := s.items[token]
	if ok {
		delete(s.items, token)
	}
	now := s.now()
	s.mu.Unlock()

	if !ok || st.Expired(now, s.ttl) {
		return domainauth.AuthorizationState{}, false
	}
	return st, true
}

// Sweep removes every state older than the TTL at now.
func (s *StateStore) Sweep(_ context.Context, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(now)
}

// Len returns the number of states currently held, expired or not.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *StateStore) sweepLocked(now time.Time) int {
	s.lastSweep = now
	removed := 0
	for token, st := range s.items {
		if st.Expired(now, s.ttl) {
			delete(s.items, token)
			removed++
		}
	}
	return removed
}
