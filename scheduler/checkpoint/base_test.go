package checkpoint

import (
	"testing"
	"time"

	"github.com/BaSui01/monitorflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBase_DefaultsAndOverrides(t *testing.T) {
	d := Defaults{
		Type:              TypeClickUpUrgentTask,
		Description:       "urgent tasks",
		Priority:          8,
		StopOnMatch:       true,
		AIWorkflowEnabled: true,
		AgentRole:         "dev",
	}

	b := NewBase(d, nil)
	assert.Equal(t, "clickup_urgent_task_cp", b.Name())
	assert.Equal(t, "1.0.0", b.Version())
	assert.Equal(t, 8, b.Priority())
	assert.True(t, b.StopOnMatch())
	assert.True(t, b.Enabled())
	assert.NoError(t, b.Validate())

	b = NewBase(d, Params{
		"name":          "urgent-eng",
		"priority":      3.0,
		"stop_on_match": false,
		"agent_role":    "sre",
		"enabled":       "false",
	})
	assert.Equal(t, "urgent-eng", b.Name())
	assert.Equal(t, 3, b.Priority())
	assert.False(t, b.StopOnMatch())
	assert.False(t, b.Enabled())
	assert.Equal(t, "sre", b.Summary()["agent_role"])
}

func TestBase_CanHandle(t *testing.T) {
	b := NewBase(Defaults{Type: TypeEmailAlert, Handles: []types.DataType{types.DataTypeEmailAlert}}, nil)

	assert.True(t, b.CanHandle(types.MonitoringData{Type: types.DataTypeEmailAlert}))
	assert.False(t, b.CanHandle(types.MonitoringData{Type: types.DataTypeSlackMessage}))

	generic := NewBase(Defaults{Type: TypeCustom}, nil)
	assert.True(t, generic.CanHandle(types.MonitoringData{Type: types.DataTypeWebhookEvent}))

	off := NewBase(Defaults{Type: TypeCustom}, Params{"enabled": false})
	assert.False(t, off.CanHandle(types.MonitoringData{Type: types.DataTypeWebhookEvent}))
}

func TestBase_AfterProcess(t *testing.T) {
	b := NewBase(Defaults{
		Type:              TypeClickUpOverdueTask,
		AIWorkflowEnabled: true,
		TimeoutSeconds:    900,
		PromptTemplateID:  "overdue",
	}, Params{"list_ids": []any{"l1"}})

	item := types.MonitoringData{
		ID:        "clickup_1",
		Type:      types.DataTypeClickUpTask,
		Source:    "clickup",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Data: map[string]any{
			"id":     "1",
			"name":   "fix prod",
			"status": map[string]any{"status": "open"},
			"tags":   []any{"backend"},
		},
	}

	assert.Empty(t, b.AfterProcess(item, b.Result(types.ResultNoMatch, false, 1, "no")))

	actions := b.AfterProcess(item, b.Result(types.ResultMatch, true, 0.9, "late"))
	require.Len(t, actions, 1)
	a := actions[0]
	assert.Equal(t, "clickup_overdue_task_cp_workflow", a.Name)
	assert.Equal(t, "clickup_overdue_task_cp_workflow", a.WorkflowName)
	assert.Equal(t, "clickup_overdue_task_cp", a.CheckpointName)
	assert.Equal(t, 900, a.TimeoutSeconds)
	assert.Equal(t, "overdue", a.PromptTemplateID)
	assert.NoError(t, a.Validate())

	assert.Equal(t, "fix prod", a.PromptVariables["task_name"])
	assert.Equal(t, "open", a.PromptVariables["task_status"])
	assert.Equal(t, []string{"backend"}, a.PromptVariables["task_tags"])
	assert.Equal(t, "late", a.PromptVariables["checking_point_reason"])
	assert.Equal(t, "2026-01-02T03:04:05Z", a.PromptVariables["data_timestamp"])

	disabled := NewBase(Defaults{Type: TypeCustom}, nil)
	assert.Empty(t, disabled.AfterProcess(item, disabled.Result(types.ResultMatch, true, 1, "x")))
}

func TestBase_Validate(t *testing.T) {
	b := NewBase(Defaults{Type: TypeCustom}, Params{"timeout_seconds": -1, "priority": 11})
	err := b.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout_seconds")
	assert.Contains(t, err.Error(), "priority")
}

func TestBase_ResultClampsConfidence(t *testing.T) {
	b := NewBase(Defaults{Type: TypeCustom}, nil)
	r := b.Result(types.ResultMatch, true, 1.7, "x")
	assert.Equal(t, 1.0, r.Confidence)
	assert.Equal(t, "custom_cp", r.CheckpointName)
	assert.Equal(t, "custom_cp", r.CheckpointType)
}
