package types

import (
	"fmt"
	"strings"
	"time"
)

// AIActionType AI 动作类型
type AIActionType string

const (
	AIActionWorkflowExecution AIActionType = "workflow_execution"
	AIActionTaskAssignment    AIActionType = "task_assignment"
	AIActionNotification      AIActionType = "notification"
	AIActionDataProcessing    AIActionType = "data_processing"
	AIActionEscalation        AIActionType = "escalation"
	AIActionCustom            AIActionType = "custom_action"
)

// AIAction 默认值
const (
	DefaultAITimeoutSeconds       = 600
	DefaultAIRetryAttempts        = 3
	DefaultAIRetryDelaySeconds    = 60
	DefaultAIPriority             = 5
	DefaultApprovalTimeoutSeconds = 3600
	MinAIPriority                 = 1
	MaxAIPriority                 = 10
)

// AIAction 声明式的延迟工作单元
// 由检查点的后处理钩子产生，由 AI 子执行消费，不可修改
type AIAction struct {
	Name           string       `json:"name"`
	Type           AIActionType `json:"type"`
	WorkflowName   string       `json:"workflow_name"`
	CheckpointName string       `json:"checking_point_name"`
	Description    string       `json:"description,omitempty"`

	TimeoutSeconds         int  `json:"timeout_seconds"`
	RetryAttempts          int  `json:"retry_attempts"`
	RetryDelaySeconds      int  `json:"retry_delay_seconds"`
	Priority               int  `json:"priority"`
	ApprovalRequired       bool `json:"approval_required"`
	ApprovalTimeoutSeconds int  `json:"approval_timeout_seconds"`

	Parameters       map[string]any `json:"parameters,omitempty"`
	PromptTemplateID string         `json:"prompt_template_id,omitempty"`
	PromptVariables  map[string]any `json:"prompt_variables,omitempty"`
	AgentRole        string         `json:"agent_role,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewAIAction 创建带默认执行参数的 AI 动作
func NewAIAction(name, workflowName, checkpointName string) AIAction {
	return AIAction{
		Name:                   strings.TrimSpace(name),
		Type:                   AIActionWorkflowExecution,
		WorkflowName:           strings.TrimSpace(workflowName),
		CheckpointName:         checkpointName,
		TimeoutSeconds:         DefaultAITimeoutSeconds,
		RetryAttempts:          DefaultAIRetryAttempts,
		RetryDelaySeconds:      DefaultAIRetryDelaySeconds,
		Priority:               DefaultAIPriority,
		ApprovalTimeoutSeconds: DefaultApprovalTimeoutSeconds,
		Parameters:             map[string]any{},
		PromptVariables:        map[string]any{},
		CreatedAt:              time.Now().UTC(),
	}
}

// Validate 校验 AI 动作
func (a AIAction) Validate() error {
	var errs []string
	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, "name cannot be empty")
	}
	if strings.TrimSpace(a.WorkflowName) == "" {
		errs = append(errs, "workflow_name cannot be empty")
	}
	if a.Priority < MinAIPriority || a.Priority > MaxAIPriority {
		errs = append(errs, fmt.Sprintf("priority must be between %d and %d", MinAIPriority, MaxAIPriority))
	}
	if a.TimeoutSeconds <= 0 {
		errs = append(errs, "timeout_seconds must be positive")
	}
	if a.RetryAttempts < 0 {
		errs = append(errs, "retry_attempts cannot be negative")
	}
	if a.RetryDelaySeconds < 0 {
		errs = append(errs, "retry_delay_seconds cannot be negative")
	}
	if a.ApprovalRequired && a.ApprovalTimeoutSeconds <= 0 {
		errs = append(errs, "approval_timeout_seconds must be positive when approval is required")
	}
	if len(errs) > 0 {
		return NewError(ErrInvalidInput, "invalid AI action: "+strings.Join(errs, "; "))
	}
	return nil
}

// Timeout 子执行超时时间
func (a AIAction) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return DefaultAITimeoutSeconds * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// RetryDelay 子执行内部重试的初始间隔
func (a AIAction) RetryDelay() time.Duration {
	return time.Duration(a.RetryDelaySeconds) * time.Second
}
