package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/milestono/api/internal/domain/component"
	"golang.org/x/sync/errgroup"
)

const (
	healthResponse     = `{"status":"ok"}`
	defaultProbeBudget = 2 * time.Second

	probeConnected    = "connected"
	probeDisconnected = "disconnected"
	probeDisabled     = "disabled"
)

// Probe checks one backing dependency.
type Probe func(ctx context.Context) error

// ComponentStatus lists resolved components. Implemented by core.Registry.
type ComponentStatus interface {
	Status() []component.Descriptor
}

// HealthHandlers report dependency connectivity and component resolution.
type HealthHandlers struct {
	Database   Probe // required; nil reports disconnected
	Redis      Probe // nil when redis is not configured
	Components ComponentStatus
	TLS        bool
	Timeout    time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

type healthReport struct {
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Database   string                 `json:"database"`
	Redis      string                 `json:"redis"`
	TLS        bool                   `json:"tls"`
	Components []component.Descriptor `json:"components"`
}

// Health reports process, persistence and component health.
// GET|HEAD /health and /system/health. Database down answers 503; degraded components keep 200.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	report := h.check(r.Context())

	code := http.StatusOK
	if report.Database != probeConnected {
		code = http.StatusServiceUnavailable
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		return
	}
	WriteJSON(w, code, report)
}

func (h *HealthHandlers) check(ctx context.Context) healthReport {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultProbeBudget
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report := healthReport{
		Database:   probeDisconnected,
		Redis:      probeDisabled,
		TLS:        h.TLS,
		Components: []component.Descriptor{},
	}

	// Probe failures are recorded in the report, never returned, so one slow
	// dependency cannot cancel the other.
	var g errgroup.Group
	if h.Database != nil {
		g.Go(func() error {
			report.Database = h.runProbe(ctx, "database", h.Database)
			return nil
		})
	}
	if h.Redis != nil {
		g.Go(func() error {
			report.Redis = h.runProbe(ctx, "redis", h.Redis)
			return nil
		})
	}
	_ = g.Wait()

	if h.Components != nil {
		report.Components = h.Components.Status()
	}

	report.Status = "ok"
	if report.Database != probeConnected || report.Redis == probeDisconnected {
		report.Status = "degraded"
	}
	for _, d := range report.Components {
		if d.Degraded() {
			report.Status = "degraded"
			break
		}
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	report.Timestamp = now().UTC()
	return report
}

func (h *HealthHandlers) runProbe(ctx context.Context, name string, p Probe) string {
	if err := p(ctx); err != nil {
		logger := h.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(ctx, "health probe failed", "dependency", name, "error", err)
		return probeDisconnected
	}
	return probeConnected
}

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}
