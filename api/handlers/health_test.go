package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func TestHealthHandler_HandleHealth(t *testing.T) {
	handler := NewHealthHandler("1.2.3", zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthHandler_HandleHealthzIgnoresChecks(t *testing.T) {
	handler := NewHealthHandler("dev", nil)
	handler.RegisterCheck(NewCheck("database", func(ctx context.Context) error { return errors.New("down") }))

	w := httptest.NewRecorder()
	handler.HandleHealthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_HandleReady(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantState  string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantState:  "healthy",
		},
		{
			name: "all pass",
			checks: []HealthCheck{
				NewCheck("database", func(ctx context.Context) error { return nil }),
				NewCheck("redis", func(ctx context.Context) error { return nil }),
			},
			wantStatus: http.StatusOK,
			wantState:  "healthy",
		},
		{
			name: "one fails",
			checks: []HealthCheck{
				NewCheck("database", func(ctx context.Context) error { return nil }),
				NewCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") }),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler("dev", zap.NewNop())
			for _, c := range tt.checks {
				handler.RegisterCheck(c)
			}

			w := httptest.NewRecorder()
			handler.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.wantStatus, w.Code)

			var status HealthStatus
			require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
			assert.Equal(t, tt.wantState, status.Status)
			assert.Len(t, status.Checks, len(tt.checks))
			if tt.wantState == "unhealthy" {
				assert.Equal(t, "fail", status.Checks["redis"].Status)
				assert.Equal(t, "connection refused", status.Checks["redis"].Message)
			}
		})
	}
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	handler := NewHealthHandler("1.0.0", zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleVersion("1.0.0", "2024-01-01T00:00:00Z", "abc123")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", data["version"])
	assert.Equal(t, "abc123", data["git_commit"])
}

func TestActiveJobsCheck(t *testing.T) {
	active := 3
	check := ActiveJobsCheck(func() int { return active }, 4)
	assert.Equal(t, "jobs", check.Name())
	assert.NoError(t, check.Check(context.Background()))

	active = 4
	assert.ErrorContains(t, check.Check(context.Background()), "4 generation jobs in flight")

	unlimited := ActiveJobsCheck(func() int { return 1000 }, 0)
	assert.NoError(t, unlimited.Check(context.Background()))
}

func TestHealthHandler_ConcurrentReady(t *testing.T) {
	handler := NewHealthHandler("dev", zap.NewNop())
	for i := 0; i < 10; i++ {
		handler.RegisterCheck(NewCheck(string(rune('a'+i)), func(ctx context.Context) error { return nil }))
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			handler.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()
}
