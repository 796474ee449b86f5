package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMonitoringData(t *testing.T) {
	t.Parallel()

	item, err := NewMonitoringData("  task-1 ", DataTypeClickUpTask, " clickup ", nil)
	require.NoError(t, err)
	assert.Equal(t, "task-1", item.ID)
	assert.Equal(t, "clickup", item.Source)
	assert.NotNil(t, item.Data)
	assert.False(t, item.Timestamp.IsZero())

	_, err = NewMonitoringData("   ", DataTypeClickUpTask, "clickup", nil)
	require.Error(t, err)
	assert.Equal(t, ErrInvalidInput, GetErrorCode(err))

	_, err = NewMonitoringData("x", DataTypeEmailAlert, "", nil)
	require.Error(t, err)

	_, err = NewMonitoringData("x", DataType("pager"), "src", nil)
	require.Error(t, err)
}

func TestMonitoringData_Fields(t *testing.T) {
	t.Parallel()

	item := MonitoringData{
		ID: "1", Type: DataTypeClickUpTask, Source: "clickup",
		Data: map[string]any{
			"name":   "Fix prod",
			"status": map[string]any{"status": "open"},
			"tags":   []any{"urgent", 3, "p0"},
			"labels": []string{"a"},
			"points": 5,
		},
	}

	assert.Equal(t, "open", item.StringField("status.status"))
	assert.Equal(t, "5", item.StringField("points"))
	assert.Equal(t, "", item.StringField("missing.path"))
	assert.Equal(t, "", item.StringField("name.deeper"))
	assert.Equal(t, []string{"urgent", "p0"}, item.StringSliceField("tags"))
	assert.Equal(t, []string{"a"}, item.StringSliceField("labels"))
	assert.Nil(t, item.StringSliceField("name"))

	s := item.Summary()
	assert.Equal(t, "1", s["data_item_id"])
	assert.Equal(t, "clickup_task", s["data_item_type"])
}

func TestCheckResult_Helpers(t *testing.T) {
	t.Parallel()

	r := ErrorResult("cp", "custom_cp", assert.AnError)
	assert.Equal(t, ResultError, r.ResultType)
	assert.False(t, r.ShouldAct)
	assert.Zero(t, r.Confidence)
	assert.Contains(t, r.Reason, "Evaluation failed: ")
	assert.NoError(t, r.Validate())

	skip := SkipResult("cp", "custom_cp", "wrong type")
	assert.Equal(t, ResultSkip, skip.ResultType)

	var empty CheckResult
	empty.Backfill("name", "type")
	assert.Equal(t, "name", empty.CheckpointName)
	assert.Equal(t, "type", empty.CheckpointType)
	assert.False(t, empty.EvaluatedAt.IsZero())

	keep := CheckResult{CheckpointName: "own"}
	keep.Backfill("other", "t")
	assert.Equal(t, "own", keep.CheckpointName)

	assert.Error(t, CheckResult{Confidence: 1.2}.Validate())
	assert.Equal(t, 1.0, ClampConfidence(3))
	assert.Equal(t, 0.0, ClampConfidence(-1))
	assert.Equal(t, 0.4, ClampConfidence(0.4))
	assert.False(t, math.IsNaN(ClampConfidence(0.5)))
}

func TestAIAction_DefaultsAndValidate(t *testing.T) {
	t.Parallel()

	a := NewAIAction("triage", "urgent_task_workflow", "urgent")
	assert.Equal(t, DefaultAITimeoutSeconds, a.TimeoutSeconds)
	assert.Equal(t, DefaultAIRetryAttempts, a.RetryAttempts)
	assert.Equal(t, DefaultAIPriority, a.Priority)
	require.NoError(t, a.Validate())

	bad := a
	bad.Priority = 11
	bad.WorkflowName = " "
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "priority must be between 1 and 10")
	assert.Contains(t, err.Error(), "workflow_name cannot be empty")

	approval := a
	approval.ApprovalRequired = true
	approval.ApprovalTimeoutSeconds = 0
	assert.Error(t, approval.Validate())

	zero := AIAction{}
	assert.Equal(t, float64(DefaultAITimeoutSeconds), zero.Timeout().Seconds())
}

func TestAIWorkflowResult_Consistent(t *testing.T) {
	t.Parallel()

	assert.True(t, AIWorkflowResult{Success: true, ActionsTaken: []string{"x"}}.Consistent())
	assert.False(t, AIWorkflowResult{Success: true}.Consistent())
	assert.True(t, AIWorkflowResult{ErrorMessage: "boom"}.Consistent())
	assert.False(t, AIWorkflowResult{ErrorMessage: "boom", ApprovalGranted: true}.Consistent())
}
