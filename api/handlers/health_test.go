package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthHandler_HandleHealth(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.RegisterProbe(NewProbe("journal", func(context.Context) error { return errors.New("down") }))

	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	// 存活探针不执行就绪探针
	assert.Equal(t, http.StatusOK, w.Code)
	var rep ProbeReport
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rep))
	assert.Equal(t, "healthy", rep.Status)
	assert.False(t, rep.Timestamp.IsZero())
	assert.NotEmpty(t, rep.Uptime)
	assert.Empty(t, rep.Probes)
}

func TestHealthHandler_HandleReady(t *testing.T) {
	tests := []struct {
		name       string
		probes     map[string]error
		wantCode   int
		wantStatus string
	}{
		{name: "no probes", probes: nil, wantCode: http.StatusOK, wantStatus: "healthy"},
		{name: "all pass", probes: map[string]error{"monitor": nil, "journal": nil}, wantCode: http.StatusOK, wantStatus: "healthy"},
		{name: "one fails", probes: map[string]error{"monitor": errors.New("loop not started"), "journal": nil}, wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(nil)
			for name, err := range tt.probes {
				h.RegisterProbe(NewProbe(name, func(context.Context) error { return err }))
			}

			w := httptest.NewRecorder()
			h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			var rep ProbeReport
			require.NoError(t, json.NewDecoder(w.Body).Decode(&rep))
			assert.Equal(t, tt.wantStatus, rep.Status)
			require.Len(t, rep.Probes, len(tt.probes))
			for i, res := range rep.Probes {
				if i > 0 {
					assert.Less(t, rep.Probes[i-1].Name, res.Name)
				}
				if err := tt.probes[res.Name]; err != nil {
					assert.False(t, res.Passed)
					assert.Equal(t, err.Error(), res.Error)
				} else {
					assert.True(t, res.Passed)
				}
			}
		})
	}
}

func TestHealthHandler_ReadyPassesDeadline(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	var hadDeadline bool
	h.RegisterProbe(NewProbe("journal", func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	}))

	h.HandleReady(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.True(t, hadDeadline)
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	w := httptest.NewRecorder()
	h.HandleVersion("1.2.0", "2026-01-01", "abc123")(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	var info map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "1.2.0", info["version"])
	assert.Equal(t, "abc123", info["git_commit"])
}
