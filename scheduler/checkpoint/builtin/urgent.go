package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"github.com/BaSui01/monitorflow/types"
)

var defaultUrgentKeywords = []string{
	"urgent", "critical", "emergency", "asap", "immediate", "priority",
	"production", "hotfix", "break", "down", "fail", "error",
}

// urgencyThreshold 判定为紧急任务的最低得分
const urgencyThreshold = 0.5

// UrgentTask 识别需要立即处理的 ClickUp 任务
type UrgentTask struct {
	checkpoint.Base
	sourced

	keywords       []string
	priorityLevels []string
	dueWithin      time.Duration
	requireDueDate bool
	notifyChannel  string
	notifyAssignee bool
	emailDomain    string
	createFollowUp bool
	now            func() time.Time
}

// NewUrgentTask 创建紧急任务检查点
func NewUrgentTask(p checkpoint.Params, deps Deps) *UrgentTask {
	deps = deps.withDefaults()
	cp := &UrgentTask{
		Base: checkpoint.NewBase(checkpoint.Defaults{
			Type:              checkpoint.TypeClickUpUrgentTask,
			Description:       "Detects urgent ClickUp tasks that need immediate attention",
			Priority:          8,
			StopOnMatch:       true,
			AIWorkflowEnabled: true,
			PromptTemplateID:  "clickup_urgent_task_triage",
			AgentRole:         "dev",
			TimeoutSeconds:    600,
			Handles:           []types.DataType{types.DataTypeClickUpTask},
		}, p),
		keywords:       lower(p.Strings("urgent_keywords", defaultUrgentKeywords)),
		priorityLevels: lower(p.Strings("priority_levels", []string{"urgent", "high"})),
		dueWithin:      time.Duration(p.Int("due_date_threshold_hours", 24)) * time.Hour,
		requireDueDate: p.Bool("require_due_date", false),
		notifyChannel:  p.String("notify_channel", "#alerts"),
		notifyAssignee: p.Bool("notify_assignee", true),
		emailDomain:    p.String("assignee_email_domain", ""),
		createFollowUp: p.Bool("create_follow_up", true),
		now:            deps.Now,
	}
	cp.source = NewHTTPSource(p, types.DataTypeClickUpTask, "clickup", deps)
	cp.filter = cp.candidate
	return cp
}

// candidate 拉取阶段的粗筛：高优先级或即将到期
func (c *UrgentTask) candidate(item types.MonitoringData) bool {
	if contains(c.priorityLevels, taskPriority(item)) {
		return true
	}
	due, ok := parseDueDate(mustField(item, "due_date"))
	return ok && !due.After(c.now().Add(c.dueWithin))
}

// Evaluate 按优先级、关键词、标签与到期时间计算紧急度
func (c *UrgentTask) Evaluate(_ context.Context, item types.MonitoringData) (types.CheckResult, error) {
	start := time.Now()

	if completedStatuses[taskStatus(item)] {
		return c.Result(types.ResultNoMatch, false, 1, "Task is already completed"), nil
	}

	score := 0.0
	var reasons []string

	priority := taskPriority(item)
	if contains(c.priorityLevels, priority) {
		score += 0.4
		reasons = append(reasons, "High priority: "+priority)
	}

	text := strings.ToLower(item.StringField("name") + " " + item.StringField("description"))
	keywordMatches := matchKeywords(text, c.keywords)
	if len(keywordMatches) > 0 && len(c.keywords) > 0 {
		score += 0.3 * float64(len(keywordMatches)) / float64(len(c.keywords))
		reasons = append(reasons, "Urgent keywords: "+strings.Join(keywordMatches, ", "))
	}

	var urgentTags []string
	for _, tag := range taskTags(item) {
		if contains(c.keywords, tag) {
			urgentTags = append(urgentTags, tag)
		}
	}
	if len(urgentTags) > 0 {
		score += 0.2
		reasons = append(reasons, "Urgent tags: "+strings.Join(urgentTags, ", "))
	}

	if due, ok := parseDueDate(mustField(item, "due_date")); ok {
		hours := due.Sub(c.now()).Hours()
		if hours <= c.dueWithin.Hours() {
			score += 0.3
			reasons = append(reasons, fmt.Sprintf("Due in %.1f hours", hours))
		}
	} else if c.requireDueDate {
		score -= 0.1
	}

	confidence := score * 1.2
	if confidence > 1 {
		confidence = 1
	}

	var result types.CheckResult
	if score >= urgencyThreshold {
		result = c.Result(types.ResultMatch, true, confidence,
			"Task identified as urgent: "+strings.Join(reasons, "; "))
		result.Context = map[string]any{
			"urgency_score":   score,
			"urgency_reasons": reasons,
			"task_priority":   priority,
			"keyword_matches": keywordMatches,
			"urgent_tags":     urgentTags,
		}
		result.SuggestedActions = []string{"triage_task", "notify_team"}
	} else {
		result = c.Result(types.ResultNoMatch, false, confidence,
			fmt.Sprintf("Task does not meet urgency criteria (score: %.2f)", score))
		result.Context = map[string]any{"urgency_score": score}
	}
	result.EvaluationDurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// Actions 打标签、通知频道、通知负责人
func (c *UrgentTask) Actions(item types.MonitoringData, result types.CheckResult) []types.Action {
	taskID := item.StringField("id")
	taskName := item.StringField("name")

	actions := []types.Action{{
		Type: types.ActionStatusUpdate,
		Name: "add_urgent_tag",
		Params: map[string]any{
			"system":     "clickup",
			"entity_id":  taskID,
			"new_status": taskStatus(item),
			"reason":     "Marked as urgent by automated monitoring",
			"add_tags":   []string{"urgent"},
		},
	}}

	if c.notifyChannel != "" {
		actions = append(actions, types.Action{
			Type: types.ActionNotification,
			Name: "notify_urgent_task",
			Params: map[string]any{
				"channel":   "slack",
				"recipient": c.notifyChannel,
				"subject":   "Urgent Task Detected: " + taskName,
				"message": fmt.Sprintf("Urgent task '%s' (ID: %s) requires immediate attention. Reason: %s",
					taskName, taskID, result.Reason),
			},
		})
	}

	if to := assigneeEmail(firstAssignee(item), c.emailDomain); c.notifyAssignee && to != "" {
		actions = append(actions, types.Action{
			Type: types.ActionNotification,
			Name: "notify_assignee",
			Params: map[string]any{
				"channel":   "email",
				"recipient": to,
				"subject":   "Urgent Task Assigned: " + taskName,
				"message":   fmt.Sprintf("You have been assigned an urgent task '%s' that requires immediate attention.", taskName),
			},
		})
	}
	return actions
}

// AfterProcess 在默认 AI 动作上附加分诊参数
func (c *UrgentTask) AfterProcess(item types.MonitoringData, result types.CheckResult) []types.AIAction {
	actions := c.Base.AfterProcess(item, result)
	for i := range actions {
		level := "medium"
		if result.Confidence >= 0.8 {
			level = "high"
		}
		actions[i].Parameters["urgency_level"] = level
		actions[i].Parameters["urgency_score"] = result.Context["urgency_score"]
		actions[i].Parameters["urgency_reasons"] = result.Context["urgency_reasons"]
		actions[i].Parameters["create_follow_up"] = c.createFollowUp
	}
	return actions
}

func mustField(item types.MonitoringData, path string) any {
	v, _ := item.Field(path)
	return v
}
