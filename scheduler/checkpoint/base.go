package checkpoint

import (
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/monitorflow/types"
)

// Defaults 检查点类型的默认属性，条目配置中的同名键可以覆盖
type Defaults struct {
	Name        string
	Type        Type
	Description string
	Version     string

	Priority    int
	StopOnMatch bool

	AIWorkflowEnabled      bool
	PromptTemplateID       string
	AgentRole              string
	TimeoutSeconds         int
	ApprovalRequired       bool
	ApprovalTimeoutSeconds int

	// Handles 为空表示接受任意数据类型
	Handles []types.DataType
}

// Base 检查点的通用属性与默认行为。
// 具体检查点嵌入 Base 并实现 Evaluate。
type Base struct {
	name        string
	typ         Type
	description string
	version     string

	enabled     bool
	priority    int
	stopOnMatch bool

	aiWorkflowEnabled      bool
	promptTemplateID       string
	agentRole              string
	timeoutSeconds         int
	approvalRequired       bool
	approvalTimeoutSeconds int

	handles []types.DataType
	params  Params
}

// NewBase 合并默认值与条目配置
func NewBase(d Defaults, params Params) Base {
	if params == nil {
		params = Params{}
	}
	if d.Version == "" {
		d.Version = "1.0.0"
	}
	if d.Priority == 0 {
		d.Priority = types.DefaultAIPriority
	}
	if d.TimeoutSeconds == 0 {
		d.TimeoutSeconds = types.DefaultAITimeoutSeconds
	}
	if d.ApprovalTimeoutSeconds == 0 {
		d.ApprovalTimeoutSeconds = types.DefaultApprovalTimeoutSeconds
	}
	if d.Name == "" {
		d.Name = string(d.Type)
	}

	return Base{
		name:                   params.String("name", d.Name),
		typ:                    d.Type,
		description:            params.String("description", d.Description),
		version:                d.Version,
		enabled:                params.Bool("enabled", true),
		priority:               params.Int("priority", d.Priority),
		stopOnMatch:            params.Bool("stop_on_match", d.StopOnMatch),
		aiWorkflowEnabled:      params.Bool("ai_workflow_enabled", d.AIWorkflowEnabled),
		promptTemplateID:       params.String("prompt_template_id", d.PromptTemplateID),
		agentRole:              params.String("agent_role", d.AgentRole),
		timeoutSeconds:         params.Int("timeout_seconds", d.TimeoutSeconds),
		approvalRequired:       params.Bool("approval_required", d.ApprovalRequired),
		approvalTimeoutSeconds: params.Int("approval_timeout_seconds", d.ApprovalTimeoutSeconds),
		handles:                d.Handles,
		params:                 params,
	}
}

func (b *Base) Name() string        { return b.name }
func (b *Base) Type() Type          { return b.typ }
func (b *Base) Description() string { return b.description }
func (b *Base) Version() string     { return b.version }
func (b *Base) Enabled() bool       { return b.enabled }
func (b *Base) Priority() int       { return b.priority }
func (b *Base) StopOnMatch() bool   { return b.stopOnMatch }
func (b *Base) Params() Params      { return b.params }

// AIWorkflowEnabled reports whether matches produce AI actions.
func (b *Base) AIWorkflowEnabled() bool { return b.aiWorkflowEnabled }

// CanHandle 默认按数据类型过滤
func (b *Base) CanHandle(item types.MonitoringData) bool {
	if !b.enabled {
		return false
	}
	if len(b.handles) == 0 {
		return true
	}
	for _, t := range b.handles {
		if t == item.Type {
			return true
		}
	}
	return false
}

// Actions 默认没有即时动作
func (b *Base) Actions(types.MonitoringData, types.CheckResult) []types.Action {
	return nil
}

// AfterProcess 默认在匹配时生成一个 {name}_workflow 动作
func (b *Base) AfterProcess(item types.MonitoringData, result types.CheckResult) []types.AIAction {
	if !b.aiWorkflowEnabled || !result.ShouldAct {
		return nil
	}
	return []types.AIAction{b.NewAIAction(item, result)}
}

// NewAIAction 按检查点属性构建 AI 动作
func (b *Base) NewAIAction(item types.MonitoringData, result types.CheckResult) types.AIAction {
	action := types.NewAIAction(b.name+"_workflow", string(b.typ)+"_workflow", b.name)
	action.Description = b.description
	action.TimeoutSeconds = b.timeoutSeconds
	action.Priority = b.priority
	action.PromptTemplateID = b.promptTemplateID
	action.AgentRole = b.agentRole
	action.ApprovalRequired = b.approvalRequired
	action.ApprovalTimeoutSeconds = b.approvalTimeoutSeconds
	action.Parameters = map[string]any{
		"data":   item.Data,
		"result": resultSummary(result),
		"config": map[string]any(b.params.Clone()),
	}
	action.PromptVariables = b.PromptVariables(item, result)
	return action
}

// PromptVariables 提示词模板变量，按数据类型补充来源相关字段
func (b *Base) PromptVariables(item types.MonitoringData, result types.CheckResult) map[string]any {
	vars := map[string]any{
		"checking_point_name":   b.name,
		"checking_point_type":   string(b.typ),
		"checking_point_reason": result.Reason,
		"confidence":            result.Confidence,
		"data":                  item.Data,
		"data_id":               item.ID,
		"data_source":           item.Source,
		"data_timestamp":        item.Timestamp.Format(time.RFC3339),
	}

	switch item.Type {
	case types.DataTypeClickUpTask:
		vars["task_id"] = item.StringField("id")
		vars["task_name"] = item.StringField("name")
		vars["task_description"] = item.StringField("description")
		vars["task_priority"] = item.StringField("priority")
		vars["task_status"] = item.StringField("status.status")
		vars["task_due_date"] = item.StringField("due_date")
		vars["task_tags"] = item.StringSliceField("tags")
		if v, ok := item.Field("assignees"); ok {
			vars["task_assignee"] = v
		}
	case types.DataTypeSlackMessage:
		vars["user_name"] = item.StringField("user")
		vars["channel"] = item.StringField("channel")
		vars["message_text"] = item.StringField("text")
		vars["thread_ts"] = item.StringField("thread_ts")
		vars["timestamp"] = item.StringField("ts")
	case types.DataTypeEmailAlert:
		vars["sender"] = item.StringField("sender")
		vars["subject"] = item.StringField("subject")
		vars["body"] = item.StringField("body")
		vars["priority"] = item.StringField("priority")
		vars["recipients"] = item.StringSliceField("recipients")
	}
	return vars
}

// Result 构造一个已回填标识字段的检查结果
func (b *Base) Result(rt types.ResultType, shouldAct bool, confidence float64, reason string) types.CheckResult {
	return types.CheckResult{
		CheckpointName: b.name,
		CheckpointType: string(b.typ),
		ResultType:     rt,
		ShouldAct:      shouldAct,
		Confidence:     types.ClampConfidence(confidence),
		Reason:         reason,
		Context:        map[string]any{},
		EvaluatedAt:    time.Now().UTC(),
	}
}

// Validate 校验通用属性
func (b *Base) Validate() error {
	var errs []string
	if strings.TrimSpace(b.name) == "" {
		errs = append(errs, "name cannot be empty")
	}
	if b.typ == "" {
		errs = append(errs, "type cannot be empty")
	}
	if b.timeoutSeconds <= 0 {
		errs = append(errs, "timeout_seconds must be positive")
	}
	if b.priority < types.MinAIPriority || b.priority > types.MaxAIPriority {
		errs = append(errs, fmt.Sprintf("priority must be between %d and %d", types.MinAIPriority, types.MaxAIPriority))
	}
	if len(errs) > 0 {
		return types.NewError(types.ErrInvalidInput,
			fmt.Sprintf("checking point %s: %s", b.name, strings.Join(errs, "; ")))
	}
	return nil
}

// Summary 检查点概要，用于 /v1/checkpoints 与 CLI 输出
func (b *Base) Summary() map[string]any {
	return map[string]any{
		"name":                b.name,
		"type":                string(b.typ),
		"description":         b.description,
		"version":             b.version,
		"enabled":             b.enabled,
		"priority":            b.priority,
		"stop_on_match":       b.stopOnMatch,
		"ai_workflow_enabled": b.aiWorkflowEnabled,
		"prompt_template_id":  b.promptTemplateID,
		"agent_role":          b.agentRole,
		"timeout_seconds":     b.timeoutSeconds,
		"approval_required":   b.approvalRequired,
	}
}

func resultSummary(r types.CheckResult) map[string]any {
	return map[string]any{
		"result_type": string(r.ResultType),
		"should_act":  r.ShouldAct,
		"reason":      r.Reason,
		"confidence":  r.Confidence,
		"context":     r.Context,
	}
}
