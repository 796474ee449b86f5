package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"github.com/BaSui01/monitorflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUrgentTask_Evaluate(t *testing.T) {
	cp := NewUrgentTask(checkpoint.Params{"assignee_email_domain": "corp.test"}, testDeps())
	ctx := context.Background()

	t.Run("completed task", func(t *testing.T) {
		r, err := cp.Evaluate(ctx, task(map[string]any{
			"id": "1", "priority": "urgent", "status": map[string]any{"status": "Done"},
		}))
		require.NoError(t, err)
		assert.Equal(t, types.ResultNoMatch, r.ResultType)
		assert.Equal(t, 1.0, r.Confidence)
	})

	t.Run("urgent priority due soon", func(t *testing.T) {
		item := task(map[string]any{
			"id":        "2",
			"name":      "checkout page",
			"priority":  map[string]any{"priority": "urgent"},
			"status":    map[string]any{"status": "in progress"},
			"due_date":  fixedNow.Add(2 * time.Hour).Format(time.RFC3339),
			"assignees": map[string]any{"77": map[string]any{"username": "kim"}},
		})
		r, err := cp.Evaluate(ctx, item)
		require.NoError(t, err)
		assert.Equal(t, types.ResultMatch, r.ResultType)
		assert.True(t, r.ShouldAct)
		assert.InDelta(t, 0.84, r.Confidence, 1e-9)
		assert.InDelta(t, 0.7, r.Context["urgency_score"].(float64), 1e-9)
		assert.Contains(t, r.Reason, "High priority: urgent")
		assert.Equal(t, "clickup_urgent_task_cp", r.CheckpointName)

		actions := cp.Actions(item, r)
		require.Len(t, actions, 3)
		assert.Equal(t, types.ActionStatusUpdate, actions[0].Type)
		assert.Equal(t, "2", actions[0].Params["entity_id"])
		assert.Equal(t, "#alerts", actions[1].Params["recipient"])
		assert.Equal(t, "user_77@corp.test", actions[2].Params["recipient"])

		ai := cp.AfterProcess(item, r)
		require.Len(t, ai, 1)
		assert.Equal(t, "high", ai[0].Parameters["urgency_level"])
		assert.Equal(t, "clickup_urgent_task_triage", ai[0].PromptTemplateID)
		assert.Equal(t, "checkout page", ai[0].PromptVariables["task_name"])
	})

	t.Run("not urgent", func(t *testing.T) {
		r, err := cp.Evaluate(ctx, task(map[string]any{"id": "3", "name": "tidy docs", "priority": "low"}))
		require.NoError(t, err)
		assert.Equal(t, types.ResultNoMatch, r.ResultType)
		assert.False(t, r.ShouldAct)
		assert.Contains(t, r.Reason, "score: 0.00")
		assert.Empty(t, cp.AfterProcess(task(map[string]any{"id": "3"}), r))
	})

	t.Run("keywords and tags", func(t *testing.T) {
		r, err := cp.Evaluate(ctx, task(map[string]any{
			"id":       "4",
			"name":     "production hotfix",
			"priority": "high",
			"tags":     []any{map[string]any{"name": "Critical"}},
		}))
		require.NoError(t, err)
		// 0.4 + 0.3*2/12 + 0.2
		assert.InDelta(t, 0.65, r.Context["urgency_score"].(float64), 1e-9)
		assert.Equal(t, []string{"critical"}, r.Context["urgent_tags"])
	})
}

func TestUrgentTask_Defaults(t *testing.T) {
	cp := NewUrgentTask(checkpoint.Params{"stop_on_match": false}, testDeps())
	assert.False(t, cp.StopOnMatch())
	assert.Equal(t, 8, cp.Priority())
	assert.True(t, cp.CanHandle(task(map[string]any{"id": "1"})))
	assert.False(t, cp.CanHandle(types.MonitoringData{Type: types.DataTypeSlackMessage}))
}

func TestOverdueTask_Evaluate(t *testing.T) {
	cp := NewOverdueTask(checkpoint.Params{
		"create_incident":       true,
		"incident_url":          "https://incidents.test/api",
		"assignee_email_domain": "corp.test",
	}, testDeps())
	ctx := context.Background()
	daysAgo := func(n int) string { return fixedNow.Add(-time.Duration(n) * 24 * time.Hour).Format(time.RFC3339) }

	t.Run("critical escalation", func(t *testing.T) {
		item := task(map[string]any{
			"id":        "10",
			"name":      "production migration",
			"priority":  "high",
			"due_date":  daysAgo(10),
			"assignees": []any{map[string]any{"id": 5.0, "email": "dev@corp.test"}},
		})
		r, err := cp.Evaluate(ctx, item)
		require.NoError(t, err)
		assert.Equal(t, types.ResultMatch, r.ResultType)
		assert.Equal(t, 10, r.Context["days_overdue"])
		assert.Equal(t, "director", r.Context["escalation_level"])
		assert.Equal(t, true, r.Context["is_critical_escalation"])

		actions := cp.Actions(item, r)
		require.Len(t, actions, 4)
		assert.Equal(t, "dev@corp.test", actions[1].Params["recipient"])
		assert.Contains(t, actions[1].Params["subject"], "[CRITICAL]")
		assert.Equal(t, "#project-leads", actions[2].Params["recipient"])
		assert.Equal(t, types.ActionAPICall, actions[3].Type)

		ai := cp.AfterProcess(item, r)
		require.Len(t, ai, 1)
		assert.Equal(t, criticalTimeoutSeconds, ai[0].TimeoutSeconds)
		assert.Equal(t, "clickup_overdue_task_cp_workflow", ai[0].WorkflowName)
	})

	t.Run("recently overdue", func(t *testing.T) {
		r, err := cp.Evaluate(ctx, task(map[string]any{"id": "11", "due_date": daysAgo(2)}))
		require.NoError(t, err)
		assert.True(t, r.ShouldAct)
		assert.Equal(t, "team_lead", r.Context["escalation_level"])
		assert.Equal(t, false, r.Context["is_critical_escalation"])
		assert.InDelta(t, 0.13, r.Confidence, 1e-9)
	})

	t.Run("not overdue", func(t *testing.T) {
		r, err := cp.Evaluate(ctx, task(map[string]any{"id": "12", "due_date": daysAgo(-3)}))
		require.NoError(t, err)
		assert.Equal(t, types.ResultNoMatch, r.ResultType)
		assert.Contains(t, r.Reason, "not overdue")
	})

	t.Run("no due date", func(t *testing.T) {
		r, err := cp.Evaluate(ctx, task(map[string]any{"id": "13"}))
		require.NoError(t, err)
		assert.Equal(t, "Task has no due date", r.Reason)
	})

	t.Run("completed", func(t *testing.T) {
		r, err := cp.Evaluate(ctx, task(map[string]any{"id": "14", "status": "closed", "due_date": daysAgo(30)}))
		require.NoError(t, err)
		assert.False(t, r.ShouldAct)
	})

	t.Run("invalid due date", func(t *testing.T) {
		_, err := cp.Evaluate(ctx, task(map[string]any{"id": "15", "due_date": "next tuesday"}))
		require.Error(t, err)
		assert.True(t, types.IsErrorCode(err, types.ErrEvaluation))
	})
}

func TestOverdueTask_CustomEscalation(t *testing.T) {
	cp := NewOverdueTask(checkpoint.Params{
		"escalation_levels": map[string]any{"2": "lead", "5": "vp"},
	}, testDeps())
	assert.Equal(t, "team_lead", cp.escalationLevel(1))
	assert.Equal(t, "lead", cp.escalationLevel(3))
	assert.Equal(t, "vp", cp.escalationLevel(6))

	yamlStyle := NewOverdueTask(checkpoint.Params{
		"escalation_levels": map[any]any{1: "a", 4: "b"},
	}, testDeps())
	assert.Equal(t, "b", yamlStyle.escalationLevel(4))
}

func TestParseDueDate(t *testing.T) {
	ms := fixedNow.UnixMilli()

	got, ok := parseDueDate(float64(ms))
	require.True(t, ok)
	assert.True(t, got.Equal(fixedNow))

	got, ok = parseDueDate(jsonNum(float64(ms)))
	require.True(t, ok)
	assert.True(t, got.Equal(fixedNow))

	_, ok = parseDueDate("")
	assert.False(t, ok)
	_, ok = parseDueDate(true)
	assert.False(t, ok)
}
