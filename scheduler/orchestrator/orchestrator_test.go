package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/monitorflow/config"
	"github.com/BaSui01/monitorflow/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testInput() types.AIWorkflowInput {
	action := types.NewAIAction("urgent_workflow", "clickup_urgent_task_triage", "urgent")
	action.AgentRole = "dev"
	return types.AIWorkflowInput{
		AIAction: action,
		DataItem: types.MonitoringData{
			ID:     "t-1",
			Type:   types.DataTypeClickUpTask,
			Source: "clickup",
			Data:   map[string]any{"name": "Fix login", "priority": "urgent"},
		},
		CheckResult: types.CheckResult{CheckpointName: "urgent", ShouldAct: true, Confidence: 0.9},
	}
}

func httpConfig(url string) config.OrchestratorConfig {
	cfg := config.DefaultOrchestratorConfig()
	cfg.Type = "http"
	cfg.BaseURL = url
	cfg.JWTSecret = "orchestrator-secret"
	cfg.RequestTimeout = 5 * time.Second
	return cfg
}

func TestNew(t *testing.T) {
	o, err := New(config.OrchestratorConfig{Type: "mock"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MockOrchestrator{}, o)

	o, err = New(httpConfig("http://orchestrator:8081"), zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &HTTPOrchestrator{}, o)

	_, err = New(config.OrchestratorConfig{Type: "temporal"}, nil)
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))

	_, err = New(config.OrchestratorConfig{Type: "http", BaseURL: "::nope"}, nil)
	assert.Error(t, err)
}

func TestHTTPOrchestrator_RunWorkflow(t *testing.T) {
	var got runRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/workflows/clickup_urgent_task_triage/runs", r.URL.Path)

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
			return []byte("orchestrator-secret"), nil
		}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer("monitorflow"), jwt.WithAudience("orchestrator"))
		if assert.NoError(t, err) {
			sub, _ := token.Claims.GetSubject()
			assert.Equal(t, "clickup_urgent_task_triage", sub)
		}

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"run_id":           "run-1",
			"success":          true,
			"output":           map[string]any{"analysis": "ok"},
			"actions_taken":    []string{"added_comment"},
			"approval_granted": false,
		})
	}))
	defer srv.Close()

	o, err := NewHTTPOrchestrator(httpConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	resp, err := o.RunWorkflow(context.Background(), "clickup_urgent_task_triage", testInput(), time.Minute)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "clickup_urgent_task_triage", resp.WorkflowName)
	assert.Equal(t, []string{"added_comment"}, resp.ActionsTaken)
	require.NotNil(t, resp.ApprovalGranted)
	assert.False(t, *resp.ApprovalGranted)

	// 超时被 request_timeout 截断
	assert.Equal(t, 5, got.TimeoutSeconds)
	assert.Equal(t, "t-1", got.Input.DataItem.ID)
}

func TestHTTPOrchestrator_Errors(t *testing.T) {
	status := atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	cfg := httpConfig(srv.URL)
	cfg.BreakerThreshold = 2
	o, err := NewHTTPOrchestrator(cfg, zap.NewNop())
	require.NoError(t, err)

	status.Store(http.StatusNotFound)
	_, err = o.RunWorkflow(context.Background(), "missing", testInput(), time.Second)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))

	status.Store(http.StatusBadGateway)
	for i := 0; i < 2; i++ {
		_, err = o.RunWorkflow(context.Background(), "wf", testInput(), time.Second)
		require.Error(t, err)
		assert.True(t, types.IsRetryable(err))
		assert.Contains(t, err.Error(), "boom")
	}

	_, err = o.RunWorkflow(context.Background(), "wf", testInput(), time.Second)
	assert.Equal(t, types.ErrCircuitOpen, types.GetErrorCode(err))
	assert.Equal(t, "open", o.BreakerState().String())
}

func TestHTTPOrchestrator_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	o, err := NewHTTPOrchestrator(httpConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	_, err = o.RunWorkflow(context.Background(), "slow", testInput(), 50*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, types.ErrTimeout, types.GetErrorCode(err))
}

func TestMockOrchestrator_Canned(t *testing.T) {
	m := NewMockOrchestrator(0)
	ctx := context.Background()

	tests := []struct {
		workflow string
		first    string
	}{
		{"clickup_urgent_task_triage", "analyzed_task_urgency"},
		{"clickup_overdue_task_escalation", "analyzed_overdue_reasons"},
		{"clickup_smart_assignment", "analyzed_task_requirements"},
		{"slack_bot_mention_response", "analyzed_request_type"},
		{"something_else", "processed_input"},
	}
	for _, tt := range tests {
		t.Run(tt.workflow, func(t *testing.T) {
			resp, err := m.RunWorkflow(ctx, tt.workflow, testInput(), time.Second)
			require.NoError(t, err)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.workflow, resp.WorkflowName)
			assert.Equal(t, tt.first, resp.ActionsTaken[0])
			assert.NotEmpty(t, resp.RunID)
			assert.Equal(t, "dev", resp.Metadata["agent_role"])
		})
	}
	assert.Equal(t, len(tests), m.Calls())

	in, ok := m.LastInput("clickup_urgent_task_triage")
	require.True(t, ok)
	assert.Equal(t, "t-1", in.DataItem.ID)
}

func TestMockOrchestrator_Failure(t *testing.T) {
	m := NewMockOrchestrator(0, "broken_workflow")
	_, err := m.RunWorkflow(context.Background(), "broken_workflow", testInput(), time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWorkflowFailed))
	assert.False(t, types.IsRetryable(err))
}

func TestMockOrchestrator_Latency(t *testing.T) {
	m := NewMockOrchestrator(time.Hour)
	_, err := m.RunWorkflow(context.Background(), "wf", testInput(), time.Second)
	assert.Equal(t, types.ErrTimeout, types.GetErrorCode(err))

	m = NewMockOrchestrator(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.RunWorkflow(ctx, "wf", testInput(), 0)
	assert.ErrorIs(t, err, context.Canceled)
}
