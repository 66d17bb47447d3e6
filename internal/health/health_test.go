package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyCheck(ctx context.Context) error { return nil }

func failingCheck(msg string) CheckFunc {
	return func(ctx context.Context) error { return errors.New(msg) }
}

func TestRegistryReadiness(t *testing.T) {
	t.Run("no checks is ready", func(t *testing.T) {
		r := NewRegistry("1.0.0")
		resp := r.Readiness(context.Background())
		assert.Equal(t, StatusHealthy, resp.Status)
		assert.Equal(t, "1.0.0", resp.Version)
		assert.NotEmpty(t, resp.Uptime)
	})

	t.Run("critical failure is unready", func(t *testing.T) {
		r := NewRegistry("1.0.0")
		r.Register("store", SeverityCritical, failingCheck("connection refused"))
		r.Register("cache", SeverityCritical, healthyCheck)

		resp := r.Readiness(context.Background())
		assert.Equal(t, StatusUnhealthy, resp.Status)
		assert.Equal(t, StatusUnhealthy, resp.Checks["store"].Status)
		assert.Equal(t, "connection refused", resp.Checks["store"].Message)
		assert.Equal(t, StatusHealthy, resp.Checks["cache"].Status)
	})

	t.Run("warning failures are skipped", func(t *testing.T) {
		r := NewRegistry("1.0.0")
		r.Register("store", SeverityCritical, healthyCheck)
		r.Register("queue", SeverityWarning, failingCheck("redis down"))

		resp := r.Readiness(context.Background())
		assert.Equal(t, StatusHealthy, resp.Status)
		assert.NotContains(t, resp.Checks, "queue")
	})
}

func TestRegistryHealth(t *testing.T) {
	t.Run("warning failure degrades", func(t *testing.T) {
		r := NewRegistry("1.0.0")
		r.Register("store", SeverityCritical, healthyCheck)
		r.Register("queue", SeverityWarning, failingCheck("redis down"))

		resp := r.Health(context.Background())
		assert.Equal(t, StatusDegraded, resp.Status)
		assert.Equal(t, StatusUnhealthy, resp.Checks["queue"].Status)
	})

	t.Run("critical failure wins over degraded", func(t *testing.T) {
		r := NewRegistry("1.0.0")
		r.Register("store", SeverityCritical, failingCheck("down"))
		r.Register("queue", SeverityWarning, failingCheck("down"))

		resp := r.Health(context.Background())
		assert.Equal(t, StatusUnhealthy, resp.Status)
	})
}

func TestRegistryLiveness(t *testing.T) {
	r := NewRegistry("2.0.0")
	r.Register("store", SeverityCritical, failingCheck("down"))

	// Liveness ignores dependency state.
	resp := r.Liveness(context.Background())
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestChecksReceiveDeadline(t *testing.T) {
	r := NewRegistry("1.0.0")
	r.Register("slow", SeverityCritical, func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		if !ok {
			return errors.New("no deadline")
		}
		if time.Until(deadline) > checkTimeout {
			return errors.New("deadline too far out")
		}
		return nil
	})

	resp := r.Readiness(context.Background())
	assert.Equal(t, StatusHealthy, resp.Status)
}

func TestHandler(t *testing.T) {
	probe := func(h http.HandlerFunc) (*httptest.ResponseRecorder, Response) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		h(rec, req)

		var resp Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return rec, resp
	}

	t.Run("liveness always 200", func(t *testing.T) {
		r := NewRegistry("1.0.0")
		r.Register("store", SeverityCritical, failingCheck("down"))
		h := NewHandler(r)

		rec, resp := probe(h.Liveness)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, StatusHealthy, resp.Status)
	})

	t.Run("readiness 503 when unhealthy", func(t *testing.T) {
		r := NewRegistry("1.0.0")
		r.Register("store", SeverityCritical, failingCheck("down"))
		h := NewHandler(r)

		rec, resp := probe(h.Readiness)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, StatusUnhealthy, resp.Status)
	})

	t.Run("readiness 200 when healthy", func(t *testing.T) {
		r := NewRegistry("1.0.0")
		r.Register("store", SeverityCritical, healthyCheck)
		h := NewHandler(r)

		rec, resp := probe(h.Readiness)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, StatusHealthy, resp.Status)
	})

	t.Run("full health reports warnings with 200", func(t *testing.T) {
		r := NewRegistry("1.0.0")
		r.Register("queue", SeverityWarning, failingCheck("redis down"))
		h := NewHandler(r)

		rec, resp := probe(h.Health)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, StatusDegraded, resp.Status)
		assert.Equal(t, "redis down", resp.Checks["queue"].Message)
	})
}
