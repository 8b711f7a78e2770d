package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pingOK(context.Context) error   { return nil }
func pingDown(context.Context) error { return errors.New("connection refused") }

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		deps   []dependency
		status string
		code   int
	}{
		{"all up", []dependency{{name: "postgres", required: true, ping: pingOK}, {name: "redis", ping: pingOK}}, "ok", http.StatusOK},
		{"optional down", []dependency{{name: "postgres", required: true, ping: pingOK}, {name: "redis", ping: pingDown}}, "degraded", http.StatusOK},
		{"required down", []dependency{{name: "postgres", required: true, ping: pingDown}, {name: "redis", ping: pingOK}}, "error", http.StatusServiceUnavailable},
		{"nothing to check", nil, "ok", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &HealthHandler{deps: tt.deps, env: "test", version: "v1"}
			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.code, rec.Code)
			resp := decode[ReadinessResponse](t, rec)
			assert.Equal(t, tt.status, resp.Status)
			assert.Len(t, resp.Dependencies, len(tt.deps))
		})
	}
}

func TestLiveness(t *testing.T) {
	h := NewHealthHandler(nil, nil, "test", "v1")
	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, LivenessResponse{Status: "ok", Version: "v1", Env: "test"}, decode[LivenessResponse](t, rec))
}
