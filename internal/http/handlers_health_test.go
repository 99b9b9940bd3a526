package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/milestono/api/internal/domain/component"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStatus []component.Descriptor

func (s staticStatus) Status() []component.Descriptor { return s }

func okProbe(context.Context) error   { return nil }
func downProbe(context.Context) error { return errors.New("connection refused") }

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth_AllHealthy(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	router := NewRouter(RouterServices{Health: &HealthHandlers{
		Database: okProbe,
		Redis:    okProbe,
		Components: staticStatus{
			{Name: "verified_agents", Kind: component.KindModel, State: component.StateAvailable},
		},
		Now: func() time.Time { return fixed },
	}})

	for _, path := range []string{"/health", "/system/health"} {
		rec := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)

		body := decodeHealth(t, rec)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "connected", body["database"])
		assert.Equal(t, "connected", body["redis"])
		assert.Equal(t, "2026-01-01T12:00:00Z", body["timestamp"])
		assert.Len(t, body["components"], 1)
	}
}

func TestHealth_DegradedComponentKeeps200(t *testing.T) {
	router := NewRouter(RouterServices{Health: &HealthHandlers{
		Database: okProbe,
		Components: staticStatus{
			{Name: "verified-agents", Kind: component.KindRoutes, State: component.StateFallback, Reason: "no route module"},
		},
	}})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeHealth(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "disabled", body["redis"])

	comps := body["components"].([]any)
	first := comps[0].(map[string]any)
	assert.Equal(t, "fallback", first["state"])
}

func TestHealth_DatabaseDownIs503(t *testing.T) {
	router := NewRouter(RouterServices{Health: &HealthHandlers{Database: downProbe, Redis: downProbe}})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeHealth(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "disconnected", body["database"])
	assert.Equal(t, "disconnected", body["redis"])
}

func TestHealth_ProbeTimeout(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	router := NewRouter(RouterServices{Health: &HealthHandlers{
		Database: okProbe,
		Redis:    slow,
		Timeout:  20 * time.Millisecond,
	}})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disconnected", decodeHealth(t, rec)["redis"])
}

func TestHealth_Head(t *testing.T) {
	router := NewRouter(RouterServices{Health: &HealthHandlers{Database: okProbe}})

	rec := serve(router, httptest.NewRequest(http.MethodHead, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	router := NewRouter(RouterServices{})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	// Without a database probe the full health check reports unavailable.
	rec = serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
