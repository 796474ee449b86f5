// =============================================================================
// 📦 测试数据工厂 - 监控条目与检查结果
// =============================================================================
// 提供预定义的监控条目、检查结果与 AI 动作，用于测试
// =============================================================================
package fixtures

import (
	"time"

	"github.com/BaSui01/monitorflow/types"
)

// FixedTime 固定的测试时间基准
var FixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================
// 📥 监控条目
// =============================================================================

// UrgentTask 返回一个 urgent 优先级的 ClickUp 任务
func UrgentTask(id string) types.MonitoringData {
	return types.MonitoringData{
		ID:     id,
		Type:   types.DataTypeClickUpTask,
		Source: "clickup",
		Data: map[string]any{
			"name":     "Fix login",
			"priority": "urgent",
			"status":   "open",
		},
		Timestamp: FixedTime,
	}
}

// OverdueTask 返回一个已过期 days 天的 ClickUp 任务
func OverdueTask(id string, days int) types.MonitoringData {
	due := FixedTime.Add(-time.Duration(days) * 24 * time.Hour)
	return types.MonitoringData{
		ID:     id,
		Type:   types.DataTypeClickUpTask,
		Source: "clickup",
		Data: map[string]any{
			"name":     "Quarterly report",
			"priority": "normal",
			"status":   "in progress",
			"due_date": due.Format(time.RFC3339),
		},
		Timestamp: FixedTime,
	}
}

// BotMention 返回一条提及机器人的 Slack 消息
func BotMention(id, botUserID string) types.MonitoringData {
	return types.MonitoringData{
		ID:     id,
		Type:   types.DataTypeSlackMessage,
		Source: "slack",
		Data: map[string]any{
			"text":    "<@" + botUserID + "> can you take a look?",
			"user":    "U123",
			"channel": "C42",
		},
		Timestamp: FixedTime,
	}
}

// CustomItem 返回一个只带 id 的自定义条目
func CustomItem(id string) types.MonitoringData {
	return types.MonitoringData{
		ID:        id,
		Type:      types.DataTypeCustom,
		Source:    "test",
		Data:      map[string]any{"id": id},
		Timestamp: FixedTime,
	}
}

// =============================================================================
// ✅ 检查结果
// =============================================================================

// MatchResult 返回需要执行动作的匹配结果
func MatchResult(checkpoint string) types.CheckResult {
	return types.CheckResult{
		CheckpointName: checkpoint,
		ResultType:     types.ResultMatch,
		ShouldAct:      true,
		Confidence:     0.9,
		Reason:         "priority is urgent",
		Context:        map[string]any{"days_overdue": 5},
		EvaluatedAt:    FixedTime,
	}
}

// NoMatchResult 返回未匹配结果
func NoMatchResult(checkpoint string) types.CheckResult {
	return types.CheckResult{
		CheckpointName: checkpoint,
		ResultType:     types.ResultNoMatch,
		Confidence:     1.0,
		Reason:         "no criteria met",
		EvaluatedAt:    FixedTime,
	}
}

// =============================================================================
// 🤖 AI 动作与结果
// =============================================================================

// TriageAction 返回一个短超时、可重试的 AI 动作
func TriageAction(workflow, checkpoint string) types.AIAction {
	a := types.NewAIAction("triage_urgent", workflow, checkpoint)
	a.RetryAttempts = 3
	a.RetryDelaySeconds = 1
	a.TimeoutSeconds = 5
	return a
}

// AIResult 返回一个满足成功/失败约束的 AI 子执行结果
func AIResult(executionID, checkpoint, itemID string, success bool, startedAt time.Time) types.AIWorkflowResult {
	r := types.AIWorkflowResult{
		ExecutionID:    executionID,
		WorkflowName:   checkpoint + "_workflow",
		ActionName:     checkpoint + "_action",
		CheckpointName: checkpoint,
		ItemID:         itemID,
		Success:        success,
		StartedAt:      startedAt,
		CompletedAt:    startedAt.Add(time.Second),
		DurationMs:     1000,
		Attempts:       1,
	}
	if success {
		r.ActionsTaken = []string{r.ActionName, "added_comment"}
		r.Output = map[string]any{"analysis": "ok"}
		r.ApprovalGranted = true
	} else {
		r.ErrorMessage = "boom"
		r.ErrorDetails = map[string]any{"code": "UPSTREAM_ERROR"}
	}
	return r
}
