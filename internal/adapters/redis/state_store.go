package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/milestono/api/internal/domain/auth"
	"github.com/milestono/api/internal/util"
	"github.com/redis/go-redis/v9"
)

const (
	stateTokenBytes  = 32
	maxIssueAttempts = 3
)

// StateStoreOptions configures a Redis StateStore.
type StateStoreOptions struct {
	Prefix string        // key prefix, default "oauth_state:"
	TTL    time.Duration // default domainauth.DefaultStateTTL
	Now    func() time.Time
	Logger *slog.Logger
}

// StateStore keeps authorization states in Redis so any replica can redeem them.
// Consumption is a single GETDEL, which redis executes atomically.
type StateStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewStateStore creates a Redis-backed state store.
func NewStateStore(client redis.UniversalClient, opts StateStoreOptions) *StateStore {
	s := &StateStore{
		client: client,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		now:    opts.Now,
		logger: opts.Logger,
	}
	if s.prefix == "" {
		s.prefix = "oauth_state:"
	}
	if s.ttl <= 0 {
		s.ttl = domainauth.DefaultStateTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Issue writes a fresh state with SET NX so a colliding token never overwrites a live one.
func (s *StateStore) Issue(ctx context.Context, redirectTarget string) (domainauth.AuthorizationState, error) {
	nonce, err := util.RandomToken(stateTokenBytes)
	if err != nil {
		return domainauth.AuthorizationState{}, fmt.Errorf("generate nonce: %w", err)
	}

	for range maxIssueAttempts {
		token, tokErr := util.RandomToken(stateTokenBytes)
		if tokErr != nil {
			return domainauth.AuthorizationState{}, fmt.Errorf("generate state: %w", tokErr)
		}
		st := domainauth.AuthorizationState{
			Token:          token,
			CreatedAt:      s.now(),
			RedirectTarget: redirectTarget,
			Nonce:          nonce,
		}
		data, marshalErr := json.Marshal(st)
		if marshalErr != nil {
			return domainauth.AuthorizationState{}, fmt.Errorf("marshal state: %w", marshalErr)
		}
		ok, setErr := s.client.SetNX(ctx, s.prefix+token, data, s.ttl).Result()
		if setErr != nil {
			return domainauth.AuthorizationState{}, fmt.Errorf("redis setnx: %w", setErr)
		}
		if ok {
			return st, nil
		}
	}
	return domainauth.AuthorizationState{}, errors.New("generate state: token collision")
}

// ValidateAndConsume redeems the state. Backend failures are logged and reported as invalid.
func (s *StateStore) ValidateAndConsume(ctx context.Context, token string) (domainauth.AuthorizationState, bool) {
	if token == "" {
		return domainauth.AuthorizationState{}, false
	}

	data, err := s.client.GetDel(ctx, s.prefix+token).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "state store consume failed", "error", err)
		}
		return domainauth.AuthorizationState{}, false
	}

	var st domainauth.AuthorizationState
	if unmarshalErr := json.Unmarshal(data, &st); unmarshalErr != nil {
		s.logger.WarnContext(ctx, "state store entry corrupt", "error", unmarshalErr)
		return domainauth.AuthorizationState{}, false
	}
	if st.Expired(s.now(), s.ttl) {
		return domainauth.AuthorizationState{}, false
	}
	return st, true
}

// Sweep is a no-op: redis expires keys on its own.
func (s *StateStore) Sweep(context.Context, time.Time) int { return 0 }
