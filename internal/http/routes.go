package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
)

// RouteGroup is a resolved API surface mounted at /api/<Name>.
type RouteGroup struct {
	Name    string
	Handler http.Handler
}

// RouterServices holds everything the HTTP router mounts.
type RouterServices struct {
	Auth           AuthServiceInterface
	Cookies        CookiePolicy
	FailurePath    string
	LoginRateLimit RateLimitConfig
	Health         *HealthHandlers
	RouteGroups    []RouteGroup
	Metrics        http.Handler // optional
	MetricsPath    string
	Logger         *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	registerHealthRoutes(mux, services.Health)
	registerAuthRoutes(mux, services)
	registerRouteGroups(mux, services.RouteGroups, services.Logger)

	if services.Metrics != nil {
		path := services.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, services.Metrics)
	}

	return mux
}

func registerHealthRoutes(mux *http.ServeMux, health *HealthHandlers) {
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	if health == nil {
		health = &HealthHandlers{}
	}
	for _, p := range []string{"/health", "/system/health"} {
		mux.HandleFunc("GET "+p, health.Health)
		mux.HandleFunc("HEAD "+p, health.Health)
	}
}

func registerAuthRoutes(mux *http.ServeMux, services RouterServices) {
	if services.Auth == nil {
		unavailable := ComponentUnavailable("auth")
		mux.Handle("/auth/", unavailable)
		mux.Handle("GET /api/me", RequireAuth(nil)(unavailable))
		return
	}

	h := &AuthHandlers{
		Svc:         services.Auth,
		Cookies:     services.Cookies,
		FailurePath: services.FailurePath,
		Logger:      services.Logger,
	}
	limit := RateLimitByIP(services.LoginRateLimit)

	mux.Handle("GET /auth/google", limit(http.HandlerFunc(h.Login)))
	mux.HandleFunc("GET /auth/google/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.Handle("GET /api/me", RequireAuth(services.Auth)(http.HandlerFunc(h.Me)))
}

func registerRouteGroups(mux *http.ServeMux, groups []RouteGroup, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		name := strings.Trim(g.Name, "/")
		if !routeGroupName.MatchString(name) || g.Handler == nil {
			logger.Warn("skipping invalid route group", "name", g.Name)
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		base := "/api/" + name
		mux.Handle(base, g.Handler)
		mux.Handle(base+"/", g.Handler)
	}
}

// routeGroupName keeps group names to a single literal path segment.
var routeGroupName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// errAuthenticationRequired is shared by handlers that reject anonymous requests.
var errAuthenticationRequired = errors.New("authentication required")
