package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/milestono/api/config"
	"github.com/milestono/api/internal/observability/metrics"
	"github.com/redis/go-redis/v9"
)

const shutdownWaitTimeout = 10 * time.Second

// StateSweeper is the part of the auth service the background sweeper drives.
type StateSweeper interface {
	SweepStates(ctx context.Context) int
}

// RunStateSweeper removes expired authorization states every interval until ctx is done.
func RunStateSweeper(ctx context.Context, sweeper StateSweeper, interval time.Duration, logger *slog.Logger) {
	if sweeper == nil || interval <= 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sweeper.SweepStates(ctx); n > 0 {
				logger.DebugContext(ctx, "swept expired authorization states", "removed", n)
			}
		}
	}
}

// Run connects infrastructure, resolves components and serves HTTP until
// SIGINT/SIGTERM, ctx cancellation or a server failure.
func Run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, redisClient, err := initInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeInfrastructure(ctx, db, redisClient, logger)

	if cfg.Postgres.RunMigrationsOnStart {
		if err = RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	var m *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		m = metrics.New()
	}

	comps := ResolveComponents(ctx, ComponentDeps{
		Config:  cfg,
		DB:      db,
		Redis:   redisClient,
		Metrics: m,
		Logger:  logger,
	})
	if !comps.Registry.Healthy() {
		logger.WarnContext(ctx, "starting with unavailable components", "components", comps.Registry.Status())
	}

	server := NewHTTPServer(cfg.HTTP, BuildHTTPHandler(HTTPHandlerConfig{
		Config:     cfg,
		Components: comps,
		DB:         db,
		Redis:      redisClient,
		Metrics:    m,
		Logger:     logger,
	}))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		RunStateSweeper(runCtx, comps.Auth, cfg.Auth.StateSweepInterval, logger)
	}()

	errCh := startServer(logger, server, cfg.HTTP)

	return waitForShutdown(shutdownConfig{
		ctx:         runCtx,
		cancel:      cancel,
		errCh:       errCh,
		server:      server,
		timeout:     cfg.HTTP.ShutdownTimeout,
		sweeperDone: sweeperDone,
		logger:      logger,
	})
}

// initInfrastructure connects the database (required) and redis (optional).
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel support flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	db, err := ConnectDB(ctx, DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}

	if !cfg.Redis.Enabled {
		return db, nil, nil
	}

	redisClient, err := ConnectRedis(ctx, DatabaseConfig{RedisConfig: cfg.Redis, Logger: logger})
	if err != nil {
		// Session and state stores fall back to process memory.
		logger.WarnContext(ctx, "redis unavailable, continuing without it", "error", err)
		return db, nil, nil
	}
	return db, redisClient, nil
}

func closeInfrastructure(ctx context.Context, db *sql.DB, redisClient redis.UniversalClient, logger *slog.Logger) {
	if redisClient != nil {
		if cerr := redisClient.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", cerr)
		}
	}
	if db != nil {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	server      serverShutdowner
	timeout     time.Duration
	sweeperDone <-chan struct{}
	logger      *slog.Logger
}

type serverShutdowner interface {
	Shutdown(ctx context.Context) error
}

// waitForShutdown waits for a shutdown signal, context cancellation or server error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down...")
		cfg.cancel()
		return gracefulStop(cfg)
	case <-cfg.ctx.Done():
		cfg.logger.Info("context cancelled, shutting down...")
		return gracefulStop(cfg)
	case err, ok := <-cfg.errCh:
		cfg.cancel()
		if !ok {
			// Server stopped without error.
			return gracefulStop(cfg)
		}
		cfg.logger.Error("server error", "error", err)
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop drains the HTTP server, then waits for the sweeper.
func gracefulStop(cfg shutdownConfig) error {
	timeout := cfg.timeout
	if timeout <= 0 {
		timeout = shutdownWaitTimeout
	}

	// The run context is already cancelled here; the drain gets its own budget.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cfg.ctx), timeout)
	defer cancel()

	var err error
	if cfg.server != nil {
		if cfg.logger != nil {
			cfg.logger.Info("shutting down HTTP server")
		}
		err = cfg.server.Shutdown(shutdownCtx)
		if err == nil && cfg.logger != nil {
			cfg.logger.Info("HTTP server stopped")
		}
	}

	waitForService(cfg.sweeperDone, "state sweeper", cfg.logger)
	return err
}

// waitForService waits for a background goroutine to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
