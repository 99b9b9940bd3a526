package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/milestono/api/config"
	"github.com/milestono/api/internal/adapters/devauth"
	"github.com/milestono/api/internal/adapters/memory"
	"github.com/milestono/api/internal/adapters/oidc"
	redisadapter "github.com/milestono/api/internal/adapters/redis"
	"github.com/milestono/api/internal/core"
	"github.com/milestono/api/internal/domain/component"
	"github.com/milestono/api/internal/ports"
	"github.com/redis/go-redis/v9"
)

// Component names reported by the registry.
const (
	ComponentSessionStore = "session-store"
	ComponentStateStore   = "state-store"
	ComponentAuthProvider = "auth-provider"
)

const (
	sessionKeyPrefix  = "session:"
	stateKeyPrefix    = "oauth_state:"
	discoveryTimeout  = 10 * time.Second
	defaultCallbackTo = "/auth/google/callback"
)

var errRedisUnavailable = errors.New("redis is enabled but not connected")

// AuthConfig contains the dependencies for the auth components.
type AuthConfig struct {
	Auth        config.AuthConfig
	Redis       config.RedisConfig
	RedisClient redis.UniversalClient
	HTTPClient  *http.Client // used for OIDC discovery; nil uses the provider default
	Now         func() time.Time
	Logger      *slog.Logger
}

// resolveSessionStore prefers redis when it is enabled and falls back to process memory.
func resolveSessionStore(ctx context.Context, reg *core.Registry, cfg AuthConfig) ports.SessionStore {
	memoryStore := func(context.Context) (ports.SessionStore, error) {
		return memory.NewSessionStore(cfg.Now), nil
	}

	spec := core.ComponentSpec[ports.SessionStore]{
		Name:    ComponentSessionStore,
		Kind:    component.KindStore,
		Primary: memoryStore,
	}
	if cfg.Redis.Enabled {
		spec.Primary = func(context.Context) (ports.SessionStore, error) {
			if cfg.RedisClient == nil {
				return nil, errRedisUnavailable
			}
			return redisadapter.NewSessionStoreWithPrefix(cfg.RedisClient, cfg.Redis.KeyPrefix+sessionKeyPrefix), nil
		}
		spec.Fallback = memoryStore
	}
	return core.Resolve(ctx, reg, spec).Value
}

// resolveStateStore follows AUTH_STATE_BACKEND, falling back to process memory
// when the redis backend cannot be reached.
func resolveStateStore(ctx context.Context, reg *core.Registry, cfg AuthConfig) ports.StateStore {
	memoryStore := func(context.Context) (ports.StateStore, error) {
		return memory.NewStateStore(memory.StateStoreOptions{
			TTL:           cfg.Auth.StateTTL,
			SweepInterval: cfg.Auth.StateSweepInterval,
			Now:           cfg.Now,
		}), nil
	}

	spec := core.ComponentSpec[ports.StateStore]{
		Name:    ComponentStateStore,
		Kind:    component.KindStore,
		Primary: memoryStore,
	}
	if cfg.Auth.StateBackend == config.StateBackendRedis {
		spec.Primary = func(context.Context) (ports.StateStore, error) {
			if cfg.RedisClient == nil {
				return nil, errRedisUnavailable
			}
			return redisadapter.NewStateStore(cfg.RedisClient, redisadapter.StateStoreOptions{
				Prefix: cfg.Redis.KeyPrefix + stateKeyPrefix,
				TTL:    cfg.Auth.StateTTL,
				Now:    cfg.Now,
				Logger: cfg.Logger,
			}), nil
		}
		spec.Fallback = memoryStore
	}
	return core.Resolve(ctx, reg, spec).Value
}

// resolveAuthProvider builds the provider for the configured mode. There is no
// fallback: a misconfigured provider resolves unavailable and login answers 503.
func resolveAuthProvider(ctx context.Context, reg *core.Registry, cfg AuthConfig) ports.AuthProvider {
	spec := core.ComponentSpec[ports.AuthProvider]{
		Name: ComponentAuthProvider,
		Kind: component.KindAuth,
		Primary: func(ctx context.Context) (ports.AuthProvider, error) {
			return buildAuthProvider(ctx, cfg)
		},
		Unavailable: func(string) ports.AuthProvider { return nil },
	}
	return core.Resolve(ctx, reg, spec).Value
}

//nolint:ireturn // the concrete provider depends on AUTH_MODE.
func buildAuthProvider(ctx context.Context, cfg AuthConfig) (ports.AuthProvider, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		return buildDevAuthProvider(cfg)
	case config.AuthModeOAuth:
		return buildOAuthProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

//nolint:ireturn // see buildAuthProvider.
func buildDevAuthProvider(cfg AuthConfig) (ports.AuthProvider, error) {
	if cfg.Logger != nil {
		cfg.Logger.Warn("AUTH_MODE=mock: every login signs in as the configured dev identity",
			"email", cfg.Auth.DevAuth.Email)
	}
	return devauth.NewProvider(devauth.Config{
		Subject:      cfg.Auth.DevAuth.Subject,
		Email:        cfg.Auth.DevAuth.Email,
		DisplayName:  cfg.Auth.DevAuth.DisplayName,
		CallbackPath: callbackPath(cfg.Auth.OAuth.RedirectURL),
	})
}

//nolint:ireturn // see buildAuthProvider.
func buildOAuthProvider(ctx context.Context, cfg AuthConfig) (ports.AuthProvider, error) {
	oauth := cfg.Auth.OAuth
	if err := oauth.Validate(); err != nil {
		return nil, fmt.Errorf("oauth configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	return oidc.NewProvider(ctx, oidc.ProviderConfig{
		Issuer:       oauth.Issuer,
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURL:  oauth.RedirectURL,
		Scopes:       oauth.Scopes,
		Prompt:       oauth.Prompt,
		HTTPClient:   cfg.HTTPClient,
	})
}

// callbackPath keeps only the path of the configured redirect URL so the dev
// provider sends the browser back to this server.
func callbackPath(redirectURL string) string {
	u, err := url.Parse(redirectURL)
	if err != nil || u.Path == "" {
		return defaultCallbackTo
	}
	return u.Path
}
