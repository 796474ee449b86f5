package types

import "time"

// AIWorkflowInput AI 子执行输入
type AIWorkflowInput struct {
	AIAction         AIAction       `json:"ai_action"`
	DataItem         MonitoringData `json:"data_item"`
	CheckResult      CheckResult    `json:"check_result"`
	ExecutionContext map[string]any `json:"execution_context,omitempty"`
	DryRun           bool           `json:"dry_run"`
	DebugMode        bool           `json:"debug_mode"`
}

// AIWorkflowResult AI 子执行的最终记录
// success 时 ActionsTaken 非空；失败时 ErrorMessage 非空
type AIWorkflowResult struct {
	ExecutionID    string `json:"execution_id"`
	WorkflowName   string `json:"workflow_name"`
	ActionName     string `json:"action_name"`
	CheckpointName string `json:"checking_point_name"`
	ItemID         string `json:"item_id"`

	Success      bool           `json:"success"`
	Output       map[string]any `json:"output,omitempty"`
	ActionsTaken []string       `json:"actions_taken"`
	ErrorMessage string         `json:"error_message,omitempty"`
	ErrorDetails map[string]any `json:"error_details,omitempty"`
	DataSummary  map[string]any `json:"data_summary,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Attempts    int       `json:"attempts"`

	ApprovalRequired bool `json:"approval_required"`
	ApprovalGranted  bool `json:"approval_granted"`
}

// Consistent reports whether the result honours the success/failure invariants.
func (r AIWorkflowResult) Consistent() bool {
	if r.Success {
		return len(r.ActionsTaken) > 0 && r.ErrorMessage == ""
	}
	return r.ErrorMessage != "" && !r.ApprovalGranted
}
