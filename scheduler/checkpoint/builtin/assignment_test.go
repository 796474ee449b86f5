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

func unassigned(id string, age time.Duration, extra map[string]any) types.MonitoringData {
	data := map[string]any{
		"id":           id,
		"priority":     map[string]any{"priority": "high"},
		"status":       map[string]any{"status": "open"},
		"date_created": fixedNow.Add(-age).Format(time.RFC3339),
		"assignees":    []any{},
	}
	for k, v := range extra {
		data[k] = v
	}
	return task(data)
}

func TestSmartAssignment_Evaluate_NoMatch(t *testing.T) {
	cp := NewSmartAssignment(checkpoint.Params{"require_tags": []any{"triaged"}}, testDeps())

	tests := []struct {
		name   string
		item   types.MonitoringData
		reason string
	}{
		{
			name:   "ignored status",
			item:   unassigned("1", 72*time.Hour, map[string]any{"status": "Closed"}),
			reason: "Task status 'closed' is ignored",
		},
		{
			name:   "already assigned",
			item:   unassigned("2", 72*time.Hour, map[string]any{"assignees": []any{"kim@corp.test"}}),
			reason: "Task is already assigned",
		},
		{
			name:   "priority below threshold",
			item:   unassigned("3", 72*time.Hour, map[string]any{"priority": "normal"}),
			reason: "Task priority 'normal' is below threshold",
		},
		{
			name:   "missing required tag",
			item:   unassigned("4", 72*time.Hour, nil),
			reason: "Missing required tags: triaged",
		},
		{
			name: "excluded tag",
			item: unassigned("5", 72*time.Hour, map[string]any{
				"tags": []any{map[string]any{"name": "Triaged"}, map[string]any{"name": "Blocked"}},
			}),
			reason: "Task has excluded tags: blocked",
		},
		{
			name:   "too young",
			item:   unassigned("6", 3*time.Hour, map[string]any{"tags": []any{"triaged"}}),
			reason: "Task is only 3.0 hours old",
		},
		{
			name: "missing creation date counts as new",
			item: task(map[string]any{
				"id": "7", "priority": "urgent", "tags": []any{"triaged"},
			}),
			reason: "Task is only 0.0 hours old",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := cp.Evaluate(context.Background(), tt.item)
			require.NoError(t, err)
			assert.Equal(t, types.ResultNoMatch, r.ResultType)
			assert.False(t, r.ShouldAct)
			assert.Contains(t, r.Reason, tt.reason)
			assert.Empty(t, cp.AfterProcess(tt.item, r))
		})
	}
}

func TestSmartAssignment_Evaluate_Match(t *testing.T) {
	cp := NewSmartAssignment(nil, testDeps())
	ctx := context.Background()

	t.Run("high priority single category", func(t *testing.T) {
		item := unassigned("10", 30*time.Hour, map[string]any{
			"name": "Fix checkout API timeout",
		})
		r, err := cp.Evaluate(ctx, item)
		require.NoError(t, err)
		assert.Equal(t, types.ResultMatch, r.ResultType)
		assert.True(t, r.ShouldAct)
		// 0.7 + 0.05 (>=24h) + 0.05 (单一分类)
		assert.InDelta(t, 0.8, r.Confidence, 1e-9)
		assert.Equal(t, "Unassigned high task (30.0 hours old) needs assignment", r.Reason)
		assert.Equal(t, []string{"backend"}, r.Context["task_categories"])
		assert.Equal(t, 4, r.Context["available_team_members"])
		assert.Equal(t, []string{"smart_assign", "notify_team"}, r.SuggestedActions)
	})

	t.Run("urgent multi category", func(t *testing.T) {
		item := unassigned("11", 50*time.Hour, map[string]any{
			"name":     "Server crash on react dashboard",
			"priority": "urgent",
		})
		r, err := cp.Evaluate(ctx, item)
		require.NoError(t, err)
		// 0.8 + 0.1 (>=48h)
		assert.InDelta(t, 0.9, r.Confidence, 1e-9)
		assert.Equal(t, []string{"backend", "frontend"}, r.Context["task_categories"])
		assert.Len(t, r.Context["confidence_factors"], 2)
	})

	t.Run("general category from millisecond timestamp", func(t *testing.T) {
		item := unassigned("12", 0, map[string]any{
			"name":         "Rename quarterly board",
			"date_created": float64(fixedNow.Add(-25 * time.Hour).UnixMilli()),
		})
		r, err := cp.Evaluate(ctx, item)
		require.NoError(t, err)
		assert.Equal(t, types.ResultMatch, r.ResultType)
		assert.Equal(t, []string{"general"}, r.Context["task_categories"])
		assert.InDelta(t, 25.0, r.Context["hours_unassigned"].(float64), 1e-9)
	})
}

func TestSmartAssignment_Actions(t *testing.T) {
	item := unassigned("20", 30*time.Hour, map[string]any{"name": "Deploy pipeline broken"})

	t.Run("defaults", func(t *testing.T) {
		cp := NewSmartAssignment(nil, testDeps())
		r, err := cp.Evaluate(context.Background(), item)
		require.NoError(t, err)

		actions := cp.Actions(item, r)
		require.Len(t, actions, 2)
		assert.Equal(t, types.ActionStatusUpdate, actions[0].Type)
		assert.Equal(t, "mark_needs_assignment", actions[0].Name)
		assert.Equal(t, "20", actions[0].Params["entity_id"])
		assert.Equal(t, []string{"needs_assignment"}, actions[0].Params["add_tags"])
		assert.Equal(t, types.ActionNotification, actions[1].Type)
		assert.Equal(t, "#team-leads", actions[1].Params["recipient"])
		assert.Equal(t, "Unassigned Task: Deploy pipeline broken", actions[1].Params["subject"])
		assert.Contains(t, actions[1].Params["message"], "30.0 hours")
	})

	t.Run("team lead notification disabled", func(t *testing.T) {
		cp := NewSmartAssignment(checkpoint.Params{"notify_team_lead": false}, testDeps())
		r, err := cp.Evaluate(context.Background(), item)
		require.NoError(t, err)
		actions := cp.Actions(item, r)
		require.Len(t, actions, 1)
		assert.Equal(t, types.ActionStatusUpdate, actions[0].Type)
	})
}

func TestSmartAssignment_AfterProcess(t *testing.T) {
	item := unassigned("30", 30*time.Hour, map[string]any{"name": "Write onboarding manual"})

	t.Run("approval required by default", func(t *testing.T) {
		cp := NewSmartAssignment(nil, testDeps())
		r, err := cp.Evaluate(context.Background(), item)
		require.NoError(t, err)

		ai := cp.AfterProcess(item, r)
		require.Len(t, ai, 1)
		assert.True(t, ai[0].ApprovalRequired)
		assert.Equal(t, "clickup_smart_assignment", ai[0].PromptTemplateID)
		assert.Equal(t, "dev", ai[0].AgentRole)
		assert.Equal(t, "dev_1", ai[0].Parameters["default_assignee"])
		assert.Equal(t, false, ai[0].Parameters["auto_assign"])
		assert.Equal(t, []string{"documentation"}, ai[0].Parameters["task_categories"])
		assert.Len(t, ai[0].Parameters["team_members"], 4)
		assert.Contains(t, ai[0].Parameters["assignment_rules"], "urgent_tasks")
	})

	t.Run("auto assign with custom team", func(t *testing.T) {
		cp := NewSmartAssignment(checkpoint.Params{
			"auto_assign":      true,
			"default_assignee": "dev_9",
			"team_members":     []any{map[string]any{"id": "dev_9", "skills": []any{"documentation"}}},
			"assignment_rules": map[string]any{"documentation_tasks": []any{"dev_9"}},
		}, testDeps())
		r, err := cp.Evaluate(context.Background(), item)
		require.NoError(t, err)
		assert.Equal(t, 1, r.Context["available_team_members"])

		ai := cp.AfterProcess(item, r)
		require.Len(t, ai, 1)
		assert.False(t, ai[0].ApprovalRequired)
		assert.Equal(t, "dev_9", ai[0].Parameters["default_assignee"])
		assert.Equal(t, map[string]any{"documentation_tasks": []any{"dev_9"}}, ai[0].Parameters["assignment_rules"])
	})
}

func TestSmartAssignment_Defaults(t *testing.T) {
	cp := NewSmartAssignment(nil, testDeps())
	assert.Equal(t, checkpoint.TypeClickUpSmartAssignment, cp.Type())
	assert.Equal(t, 6, cp.Priority())
	assert.False(t, cp.StopOnMatch())
	assert.True(t, cp.CanHandle(task(map[string]any{"id": "1"})))
	assert.False(t, cp.CanHandle(types.MonitoringData{Type: types.DataTypeSlackMessage}))
	require.NoError(t, cp.Validate())

	assert.True(t, cp.filter(unassigned("40", time.Hour, nil)))
	assert.False(t, cp.filter(unassigned("41", time.Hour, map[string]any{
		"assignees": map[string]any{"77": map[string]any{"username": "kim"}},
	})))
}
