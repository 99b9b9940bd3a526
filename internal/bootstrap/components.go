package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/milestono/api/config"
	"github.com/milestono/api/internal/core"
	"github.com/milestono/api/internal/data"
	"github.com/milestono/api/internal/domain/component"
	"github.com/milestono/api/internal/domain/model"
	httpx "github.com/milestono/api/internal/http"
	"github.com/milestono/api/internal/observability/metrics"
	"github.com/milestono/api/internal/ports"
	"github.com/milestono/api/internal/service"
	"github.com/redis/go-redis/v9"
)

var errNoDatabase = errors.New("database not configured")

// schemaRepos lists models with a dedicated table and typed repository.
var schemaRepos = map[string]func(*sql.DB) core.RecordRepository{
	"verified_agents": func(db *sql.DB) core.RecordRepository { return data.NewVerifiedAgentRepo(db) },
}

// routeModules maps catalogued route groups to the model they expose.
var routeModules = map[string]string{
	"verified-agents": "verified_agents",
}

// ComponentDeps groups what component resolution may draw on. DB and Redis may be nil.
type ComponentDeps struct {
	Config     *config.AppConfig
	DB         *sql.DB
	Redis      redis.UniversalClient
	Metrics    *metrics.Metrics
	HTTPClient *http.Client
	Now        func() time.Time
	Logger     *slog.Logger
}

// Components holds every component resolved at startup.
type Components struct {
	Registry    *core.Registry
	Auth        *service.AuthService
	States      ports.StateStore
	Models      map[string]*service.RecordService
	RouteGroups []httpx.RouteGroup
}

// ResolveComponents builds every optional component. It never fails: each one
// ends up Available, Fallback or Unavailable, as recorded in the registry.
func ResolveComponents(ctx context.Context, deps ComponentDeps) *Components {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reg := core.NewRegistry(core.RegistryOptions{
		Logger:    logger,
		Now:       deps.Now,
		OnResolve: deps.Metrics.ObserveComponent,
	})

	authCfg := AuthConfig{
		Auth:        cfg.Auth,
		Redis:       cfg.Redis,
		RedisClient: deps.Redis,
		HTTPClient:  deps.HTTPClient,
		Now:         deps.Now,
		Logger:      logger,
	}
	sessions := resolveSessionStore(ctx, reg, authCfg)
	states := resolveStateStore(ctx, reg, authCfg)
	provider := resolveAuthProvider(ctx, reg, authCfg)

	var identities ports.IdentityRepository
	if deps.DB != nil {
		identities = data.NewIdentityRepo(deps.DB)
	}

	authOpts := service.AuthServiceOptions{
		Provider:   provider,
		States:     states,
		Sessions:   sessions,
		Identities: identities,
		SessionTTL: cfg.Auth.SessionTTL,
		Now:        deps.Now,
		Logger:     logger,
	}
	// A nil *Metrics must not become a non-nil interface.
	if deps.Metrics != nil {
		authOpts.Metrics = deps.Metrics
	}

	c := &Components{
		Registry: reg,
		Auth:     service.NewAuthService(authOpts),
		States:   states,
		Models:   make(map[string]*service.RecordService),
	}

	probe := data.NewSchemaProbe(deps.DB)
	for _, name := range cfg.Components.Models {
		c.resolveModel(ctx, deps.DB, probe, name)
	}
	for _, name := range cfg.Components.Routes {
		c.resolveRoutes(ctx, deps.DB, probe, name)
	}

	return c
}

func modelComponentName(name string) string { return "model/" + name }

func routesComponentName(name string) string { return "routes/" + name }

// resolveModel prefers the schema-backed repository when its table exists,
// then the shared document store.
func (c *Components) resolveModel(ctx context.Context, db *sql.DB, probe core.SchemaProbe, name string) *service.RecordService {
	if svc, ok := c.Models[name]; ok {
		return svc
	}

	res := core.Resolve(ctx, c.Registry, core.ComponentSpec[core.RecordRepository]{
		Name: modelComponentName(name),
		Kind: component.KindModel,
		Primary: func(ctx context.Context) (core.RecordRepository, error) {
			if !model.ValidCollectionName(name) {
				return nil, fmt.Errorf("invalid model name %q", name)
			}
			if db == nil {
				return nil, errNoDatabase
			}
			newRepo, ok := schemaRepos[name]
			if !ok {
				return nil, fmt.Errorf("no schema-backed repository for %q", name)
			}
			if err := requireTable(ctx, probe, name); err != nil {
				return nil, err
			}
			return newRepo(db), nil
		},
		Fallback: func(ctx context.Context) (core.RecordRepository, error) {
			if db == nil {
				return nil, errNoDatabase
			}
			repo, err := data.NewDocumentRepo(db, name)
			if err != nil {
				return nil, err
			}
			if err := requireTable(ctx, probe, data.DocumentsTable); err != nil {
				return nil, err
			}
			return repo, nil
		},
		Unavailable: func(reason string) core.RecordRepository {
			return core.UnavailableRecords{Model: name, Reason: reason}
		},
	})

	svc := service.NewRecordService(service.RecordServiceOptions{Model: name, Repo: res.Value})
	c.Models[name] = svc
	return svc
}

func requireTable(ctx context.Context, probe core.SchemaProbe, table string) error {
	exists, err := probe.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("table %s does not exist", table)
	}
	return nil
}

// resolveRoutes mounts a catalogued module when its model store resolved. Names
// without a module answer 501; catalogued modules whose store failed answer 503.
func (c *Components) resolveRoutes(ctx context.Context, db *sql.DB, probe core.SchemaProbe, name string) {
	modelName, catalogued := routeModules[name]
	valid := model.ValidCollectionName(model.ModelNameFromRoute(name))

	res := core.Resolve(ctx, c.Registry, core.ComponentSpec[http.Handler]{
		Name: routesComponentName(name),
		Kind: component.KindRoutes,
		Primary: func(ctx context.Context) (http.Handler, error) {
			if !catalogued {
				return nil, fmt.Errorf("no route module for %q", name)
			}
			svc := c.resolveModel(ctx, db, probe, modelName)
			if d, ok := c.Registry.Lookup(modelComponentName(modelName)); ok && d.State == component.StateUnavailable {
				return nil, fmt.Errorf("model %s unavailable: %s", modelName, d.Reason)
			}
			return httpx.RecordRoutes(name, svc, c.Auth), nil
		},
		Fallback: func(context.Context) (http.Handler, error) {
			if !valid {
				return nil, fmt.Errorf("invalid route group name %q", name)
			}
			if catalogued {
				return nil, errors.New("route module dependencies unavailable")
			}
			return httpx.FeatureUnavailable(name), nil
		},
		Unavailable: func(string) http.Handler {
			return httpx.ComponentUnavailable(name)
		},
	})

	// Invalid names stay recorded in the registry but cannot be mounted.
	if valid {
		c.RouteGroups = append(c.RouteGroups, httpx.RouteGroup{Name: name, Handler: res.Value})
	}
}
