// Package checkpoint 定义检查点接口、通用基类以及按名称解析的注册表。
//
// 检查点在进程启动时通过显式注册表登记，循环开始后注册表只读。
// 实例的顺序即 MonitorConfig 中的声明顺序，stop_on_match 依赖该顺序。
package checkpoint

import (
	"context"

	"github.com/BaSui01/monitorflow/types"
)

// Type 检查点类型
type Type string

const (
	TypeClickUpUrgentTask      Type = "clickup_urgent_task_cp"
	TypeClickUpOverdueTask     Type = "clickup_overdue_task_cp"
	TypeClickUpUnassignedTask  Type = "clickup_unassigned_task_cp"
	TypeClickUpSmartAssignment Type = "clickup_smart_assignment_cp"
	TypeSlackBotMention        Type = "slack_bot_mention_cp"
	TypeSlackHelpRequest       Type = "slack_help_request_cp"
	TypeSlackVIPUser           Type = "slack_vip_user_cp"
	TypeEmailAlert             Type = "email_alert_cp"
	TypeCustom                 Type = "custom_cp"
)

// CheckingPoint 检查点：判断监控条目是否需要响应，并给出即时动作与 AI 动作
type CheckingPoint interface {
	Name() string
	Type() Type
	Enabled() bool
	StopOnMatch() bool

	// CanHandle 返回 false 表示常规跳过，不是错误
	CanHandle(item types.MonitoringData) bool
	Evaluate(ctx context.Context, item types.MonitoringData) (types.CheckResult, error)

	// Actions 只在 should_act 为 true 时调用
	Actions(item types.MonitoringData, result types.CheckResult) []types.Action
	AfterProcess(item types.MonitoringData, result types.CheckResult) []types.AIAction
}

// DataFetcher 可选能力：检查点自行拉取其关心的数据
type DataFetcher interface {
	FetchData(ctx context.Context) ([]types.MonitoringData, error)
}

// Validator is implemented by checking points that can verify their own configuration.
type Validator interface {
	Validate() error
}

// Constructor 按条目配置构造检查点实例
type Constructor func(params Params) (CheckingPoint, error)
