package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/milestono/api/config"
	httpx "github.com/milestono/api/internal/http"
	"github.com/milestono/api/internal/observability/metrics"
	"github.com/redis/go-redis/v9"
)

// HTTPHandlerConfig contains what the HTTP handler is built from.
type HTTPHandlerConfig struct {
	Config     *config.AppConfig
	Components *Components
	DB         *sql.DB
	Redis      redis.UniversalClient
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// BuildHTTPHandler assembles the router and its middleware.
// Order: Recover -> Logging -> Metrics -> Router.
func BuildHTTPHandler(cfg HTTPHandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	services := httpx.RouterServices{
		Cookies: httpx.CookiePolicy{
			Domain:   appCfg.HTTP.CookieDomain,
			Secure:   appCfg.HTTP.CookieSecure,
			SameSite: appCfg.HTTP.CookieSameSite.Mode(),
			MaxAge:   appCfg.Auth.SessionTTL,
		},
		FailurePath: appCfg.Auth.FailurePath,
		LoginRateLimit: httpx.RateLimitConfig{
			PerSecond:         appCfg.Auth.LoginRatePerSec,
			Burst:             appCfg.Auth.LoginBurst,
			TrustForwardedFor: appCfg.HTTP.TrustForwardedFor,
		},
		Health: &httpx.HealthHandlers{
			Database: dbProbe(cfg.DB),
			Redis:    redisProbe(cfg.Redis),
			TLS:      appCfg.HTTP.TLSEnabled(),
			Logger:   logger,
		},
		Logger: logger,
	}
	if cfg.Components != nil {
		services.Auth = cfg.Components.Auth
		services.RouteGroups = cfg.Components.RouteGroups
		services.Health.Components = cfg.Components.Registry
	}
	if cfg.Metrics != nil && appCfg.Observability.MetricsEnabled {
		services.Metrics = cfg.Metrics.Handler()
		services.MetricsPath = appCfg.Observability.MetricsPath
	}

	// Instrument wraps the mux directly so it sees the matched pattern.
	h := cfg.Metrics.Instrument(httpx.NewRouter(services))
	h = httpx.Logging(logger)(h)
	h = httpx.Recover(logger)(h)
	return h
}

func dbProbe(db *sql.DB) httpx.Probe {
	if db == nil {
		return nil
	}
	return db.PingContext
}

func redisProbe(client redis.UniversalClient) httpx.Probe {
	if client == nil {
		return nil
	}
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}

// NewHTTPServer creates the server with the configured timeouts.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	addr := cfg.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// startServer serves in the background and reports a failure on the returned channel.
// http.ErrServerClosed is not a failure.
func startServer(logger *slog.Logger, server *http.Server, cfg config.HTTPConfig) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		var err error
		if cfg.TLSEnabled() {
			logger.Info("starting HTTPS server", "addr", server.Addr)
			err = server.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			logger.Info("starting HTTP server", "addr", server.Addr)
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}
