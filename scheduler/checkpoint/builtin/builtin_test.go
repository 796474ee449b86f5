package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/monitorflow/config"
	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"github.com/BaSui01/monitorflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testDeps() Deps {
	return Deps{Logger: zap.NewNop(), Now: func() time.Time { return fixedNow }}
}

func task(data map[string]any) types.MonitoringData {
	return types.MonitoringData{
		ID:        "clickup_" + data["id"].(string),
		Type:      types.DataTypeClickUpTask,
		Source:    "clickup",
		Data:      data,
		Timestamp: fixedNow,
	}
}

func TestRegister(t *testing.T) {
	reg := checkpoint.NewRegistry(nil)
	require.NoError(t, Register(reg, testDeps()))
	assert.Equal(t, []string{
		"clickup_urgent_task_cp",
		"clickup_overdue_task_cp",
		"clickup_smart_assignment_cp",
		"slack_bot_mention_cp",
		"email_alert_cp",
	}, reg.Names())

	// 重复注册报错
	assert.Error(t, Register(reg, testDeps()))

	points, err := reg.AllEnabled(config.MonitorConfig{
		Name: "all",
		CheckingPoints: []config.CheckpointEntry{
			{Type: "email_alert_cp"},
			{Type: "clickup_urgent_task_cp"},
			{Type: "slack_bot_mention_cp", Config: map[string]any{"bot_name": "helper"}},
			{Type: "clickup_overdue_task_cp"},
			{Type: "clickup_smart_assignment_cp"},
		},
	})
	require.NoError(t, err)
	require.Len(t, points, 5)
	assert.Equal(t, checkpoint.TypeEmailAlert, points[0].Type())
	assert.True(t, points[1].StopOnMatch())

	for _, p := range points {
		_, ok := p.(checkpoint.DataFetcher)
		assert.True(t, ok, p.Name())
	}
}

func TestRegister_InvalidEmailPattern(t *testing.T) {
	reg := checkpoint.NewRegistry(nil)
	require.NoError(t, Register(reg, testDeps()))

	_, err := reg.AllEnabled(config.MonitorConfig{CheckingPoints: []config.CheckpointEntry{
		{Type: "email_alert_cp", Config: map[string]any{"subject_patterns": []any{"("}}},
	}})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidInput))
}

func TestSourced_NoSourceConfigured(t *testing.T) {
	cp := NewUrgentTask(nil, testDeps())
	items, err := cp.FetchData(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestUrgentTask_FetchFiltersCandidates(t *testing.T) {
	soon := float64(fixedNow.Add(2 * time.Hour).UnixMilli())
	later := float64(fixedNow.Add(10 * 24 * time.Hour).UnixMilli())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tasks":[
			{"id":"1","name":"a","priority":{"priority":"urgent"}},
			{"id":"2","name":"b","priority":"low","due_date":` + jsonNum(later) + `},
			{"id":"3","name":"c","due_date":` + jsonNum(soon) + `}
		]}`))
	}))
	t.Cleanup(srv.Close)

	cp := NewUrgentTask(checkpoint.Params{"source_url": srv.URL}, testDeps())
	items, err := cp.FetchData(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "clickup_1", items[0].ID)
	assert.Equal(t, "clickup_3", items[1].ID)
}
