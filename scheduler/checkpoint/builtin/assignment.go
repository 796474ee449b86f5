package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"github.com/BaSui01/monitorflow/types"
)

// categoryKeywords 任务分类关键词，按声明顺序匹配
var categoryKeywords = []struct {
	name     string
	keywords []string
}{
	{"backend", []string{"api", "server", "database", "backend", "microservice", "service"}},
	{"frontend", []string{"ui", "frontend", "react", "vue", "css", "javascript", "interface"}},
	{"devops", []string{"deploy", "infrastructure", "ci/cd", "docker", "kubernetes", "devops"}},
	{"testing", []string{"test", "testing", "qa", "quality", "automation"}},
	{"documentation", []string{"doc", "documentation", "readme", "guide", "manual"}},
}

func defaultTeamMembers() []any {
	return []any{
		map[string]any{"id": "dev_1", "name": "Senior Developer", "skills": []any{"backend", "api", "database"}, "max_tasks": 5},
		map[string]any{"id": "dev_2", "name": "Frontend Developer", "skills": []any{"frontend", "ui", "react"}, "max_tasks": 6},
		map[string]any{"id": "dev_3", "name": "Full Stack Developer", "skills": []any{"backend", "frontend", "api"}, "max_tasks": 4},
		map[string]any{"id": "dev_4", "name": "DevOps Engineer", "skills": []any{"devops", "infrastructure", "deployment"}, "max_tasks": 7},
	}
}

func defaultAssignmentRules() map[string]any {
	return map[string]any{
		"backend_tasks":  []any{"dev_1", "dev_3"},
		"frontend_tasks": []any{"dev_2", "dev_3"},
		"devops_tasks":   []any{"dev_4"},
		"urgent_tasks":   []any{"dev_1", "dev_3"},
	}
}

// SmartAssignment 找出长时间未分配的高优先级 ClickUp 任务，交给 AI 推荐负责人
type SmartAssignment struct {
	checkpoint.Base
	sourced

	priorityThresholds []string
	ignoreStatuses     []string
	maxUnassignedAge   time.Duration
	requireTags        []string
	excludeTags        []string
	teamMembers        []any
	assignmentRules    map[string]any
	defaultAssignee    string
	autoAssign         bool
	notifyTeamLead     bool
	teamLeadChannel    string
	now                func() time.Time
}

// NewSmartAssignment 创建智能分配检查点
func NewSmartAssignment(p checkpoint.Params, deps Deps) *SmartAssignment {
	deps = deps.withDefaults()
	cp := &SmartAssignment{
		Base: checkpoint.NewBase(checkpoint.Defaults{
			Type:              checkpoint.TypeClickUpSmartAssignment,
			Description:       "Intelligently assigns unassigned high-priority tasks",
			Priority:          6,
			StopOnMatch:       false,
			AIWorkflowEnabled: true,
			PromptTemplateID:  "clickup_smart_assignment",
			AgentRole:         "dev",
			TimeoutSeconds:    600,
			ApprovalRequired:  true,
			Handles:           []types.DataType{types.DataTypeClickUpTask},
		}, p),
		priorityThresholds: lower(p.Strings("priority_thresholds", []string{"high", "urgent"})),
		ignoreStatuses:     lower(p.Strings("ignore_statuses", []string{"done", "completed", "closed"})),
		maxUnassignedAge:   time.Duration(p.Float("max_unassigned_age_hours", 24) * float64(time.Hour)),
		requireTags:        lower(p.Strings("require_tags", nil)),
		excludeTags:        lower(p.Strings("exclude_tags", []string{"blocked", "waiting"})),
		teamMembers:        defaultTeamMembers(),
		assignmentRules:    defaultAssignmentRules(),
		defaultAssignee:    p.String("default_assignee", "dev_1"),
		autoAssign:         p.Bool("auto_assign", false),
		notifyTeamLead:     p.Bool("notify_team_lead", true),
		teamLeadChannel:    p.String("team_lead_channel", "#team-leads"),
		now:                deps.Now,
	}
	if members, ok := p["team_members"].([]any); ok {
		cp.teamMembers = members
	}
	if rules := p.Map("assignment_rules"); rules != nil {
		cp.assignmentRules = rules
	}
	cp.source = NewHTTPSource(p, types.DataTypeClickUpTask, "clickup", deps)
	cp.filter = func(item types.MonitoringData) bool { return firstAssignee(item) == "" }
	return cp
}

// Evaluate 依次排除忽略状态、已分配、低优先级、标签不符与过新的任务
func (c *SmartAssignment) Evaluate(_ context.Context, item types.MonitoringData) (types.CheckResult, error) {
	start := time.Now()

	status := taskStatus(item)
	if contains(c.ignoreStatuses, status) {
		return c.Result(types.ResultNoMatch, false, 1, fmt.Sprintf("Task status '%s' is ignored", status)), nil
	}
	if firstAssignee(item) != "" {
		return c.Result(types.ResultNoMatch, false, 1, "Task is already assigned"), nil
	}

	priority := taskPriority(item)
	if !contains(c.priorityThresholds, priority) {
		return c.Result(types.ResultNoMatch, false, 1, fmt.Sprintf("Task priority '%s' is below threshold", priority)), nil
	}

	tags := taskTags(item)
	var missing []string
	for _, tag := range c.requireTags {
		if !contains(tags, tag) {
			missing = append(missing, tag)
		}
	}
	if len(missing) > 0 {
		return c.Result(types.ResultNoMatch, false, 1, "Missing required tags: "+strings.Join(missing, ", ")), nil
	}
	var excluded []string
	for _, tag := range c.excludeTags {
		if contains(tags, tag) {
			excluded = append(excluded, tag)
		}
	}
	if len(excluded) > 0 {
		return c.Result(types.ResultNoMatch, false, 1, "Task has excluded tags: "+strings.Join(excluded, ", ")), nil
	}

	// 创建时间缺失或无法解析时按 0 小时处理
	hours := 0.0
	if created, ok := parseDueDate(mustField(item, "date_created")); ok {
		hours = c.now().Sub(created).Hours()
	}
	if hours < c.maxUnassignedAge.Hours() {
		return c.Result(types.ResultNoMatch, false, 1,
			fmt.Sprintf("Task is only %.1f hours old (threshold: %g)", hours, c.maxUnassignedAge.Hours())), nil
	}

	categories := taskCategories(item)
	confidence, factors := assignmentConfidence(priority, hours, categories)

	result := c.Result(types.ResultMatch, true, confidence,
		fmt.Sprintf("Unassigned %s task (%.1f hours old) needs assignment", priority, hours))
	result.Context = map[string]any{
		"hours_unassigned":       hours,
		"task_priority":          priority,
		"task_categories":        categories,
		"confidence_factors":     factors,
		"available_team_members": len(c.teamMembers),
	}
	result.SuggestedActions = []string{"smart_assign", "notify_team"}
	result.EvaluationDurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// taskCategories 按名称与描述中的关键词归类，无命中时为 general
func taskCategories(item types.MonitoringData) []string {
	text := strings.ToLower(item.StringField("name") + " " + item.StringField("description"))
	var out []string
	for _, c := range categoryKeywords {
		if len(matchKeywords(text, c.keywords)) > 0 {
			out = append(out, c.name)
		}
	}
	if len(out) == 0 {
		out = []string{"general"}
	}
	return out
}

// assignmentConfidence urgent 0.8 / high 0.7 起步；未分配超过 48h +0.1，超过 24h +0.05；单一分类 +0.05
func assignmentConfidence(priority string, hours float64, categories []string) (float64, []string) {
	var factors []string
	confidence := 0.6
	switch priority {
	case "urgent":
		confidence = 0.8
		factors = append(factors, "Urgent priority")
	case "high":
		confidence = 0.7
		factors = append(factors, "High priority")
	}

	switch {
	case hours >= 48:
		confidence += 0.1
		factors = append(factors, fmt.Sprintf("Very old (%.0f hours)", hours))
	case hours >= 24:
		confidence += 0.05
		factors = append(factors, fmt.Sprintf("Old (%.0f hours)", hours))
	}

	if len(categories) == 1 {
		confidence += 0.05
		factors = append(factors, "Clear category: "+categories[0])
	}
	return min(confidence, 1), factors
}

// Actions 标记待分配并通知团队负责人
func (c *SmartAssignment) Actions(item types.MonitoringData, result types.CheckResult) []types.Action {
	taskID := item.StringField("id")
	taskName := item.StringField("name")

	actions := []types.Action{{
		Type: types.ActionStatusUpdate,
		Name: "mark_needs_assignment",
		Params: map[string]any{
			"system":     "clickup",
			"entity_id":  taskID,
			"new_status": taskStatus(item),
			"reason":     "Task marked as needing smart assignment",
			"add_tags":   []string{"needs_assignment"},
		},
	}}

	if c.notifyTeamLead && c.teamLeadChannel != "" {
		hours, _ := result.Context["hours_unassigned"].(float64)
		actions = append(actions, types.Action{
			Type: types.ActionNotification,
			Name: "notify_team_lead_assignment",
			Params: map[string]any{
				"channel":   "slack",
				"recipient": c.teamLeadChannel,
				"subject":   "Unassigned Task: " + taskName,
				"message": fmt.Sprintf("High-priority task '%s' (ID: %s) has been unassigned for %.1f hours and needs smart assignment.",
					taskName, taskID, hours),
			},
		})
	}
	return actions
}

// AfterProcess 附加团队与分配规则；auto_assign 时不需要审批
func (c *SmartAssignment) AfterProcess(item types.MonitoringData, result types.CheckResult) []types.AIAction {
	actions := c.Base.AfterProcess(item, result)
	for i := range actions {
		actions[i].Parameters["task_categories"] = result.Context["task_categories"]
		actions[i].Parameters["hours_unassigned"] = result.Context["hours_unassigned"]
		actions[i].Parameters["team_members"] = c.teamMembers
		actions[i].Parameters["assignment_rules"] = c.assignmentRules
		actions[i].Parameters["default_assignee"] = c.defaultAssignee
		actions[i].Parameters["auto_assign"] = c.autoAssign
		actions[i].ApprovalRequired = !c.autoAssign
	}
	return actions
}
