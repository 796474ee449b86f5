package builtin

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"github.com/BaSui01/monitorflow/types"
)

var defaultImpactKeywords = []string{
	"production", "customer", "release", "deadline", "milestone",
	"critical", "blocking", "security", "compliance",
}

// escalationStep 逾期天数阈值到升级对象的映射
type escalationStep struct {
	days  int
	level string
}

var defaultEscalation = []escalationStep{
	{1, "team_lead"},
	{3, "manager"},
	{7, "director"},
}

// criticalTimeoutSeconds 严重升级时 AI 分析的超时
const criticalTimeoutSeconds = 1200

// OverdueTask 识别逾期的 ClickUp 任务并触发升级
type OverdueTask struct {
	checkpoint.Base
	sourced

	overdueDays       int
	criticalDays      int
	ignoreCompleted   bool
	escalation        []escalationStep
	impactKeywords    []string
	notifyAssignee    bool
	notifyProjectLead bool
	projectLeadTarget string
	emailDomain       string
	createIncident    bool
	incidentURL       string
	now               func() time.Time
}

// NewOverdueTask 创建逾期任务检查点
func NewOverdueTask(p checkpoint.Params, deps Deps) *OverdueTask {
	deps = deps.withDefaults()
	cp := &OverdueTask{
		Base: checkpoint.NewBase(checkpoint.Defaults{
			Type:              checkpoint.TypeClickUpOverdueTask,
			Description:       "Detects overdue ClickUp tasks and triggers escalation",
			Priority:          7,
			AIWorkflowEnabled: true,
			PromptTemplateID:  "clickup_overdue_task_escalation",
			AgentRole:         "sre",
			TimeoutSeconds:    900,
			Handles:           []types.DataType{types.DataTypeClickUpTask},
		}, p),
		overdueDays:       p.Int("overdue_threshold_days", 1),
		criticalDays:      p.Int("critical_threshold_days", 7),
		ignoreCompleted:   p.Bool("ignore_completed", true),
		escalation:        parseEscalation(p["escalation_levels"]),
		impactKeywords:    lower(p.Strings("impact_keywords", defaultImpactKeywords)),
		notifyAssignee:    p.Bool("notify_assignee", true),
		notifyProjectLead: p.Bool("notify_project_lead", true),
		projectLeadTarget: p.String("project_lead_channel", "#project-leads"),
		emailDomain:       p.String("assignee_email_domain", ""),
		createIncident:    p.Bool("create_incident", false),
		incidentURL:       p.String("incident_url", ""),
		now:               deps.Now,
	}
	cp.source = NewHTTPSource(p, types.DataTypeClickUpTask, "clickup", deps)
	cp.filter = cp.candidate
	return cp
}

func (c *OverdueTask) candidate(item types.MonitoringData) bool {
	due, ok := parseDueDate(mustField(item, "due_date"))
	return ok && due.Before(c.now())
}

// Evaluate 计算逾期天数、影响分与升级级别
func (c *OverdueTask) Evaluate(_ context.Context, item types.MonitoringData) (types.CheckResult, error) {
	start := time.Now()

	if c.ignoreCompleted && completedStatuses[taskStatus(item)] {
		return c.Result(types.ResultNoMatch, false, 1, "Task is completed, ignoring overdue status"), nil
	}

	rawDue := mustField(item, "due_date")
	if rawDue == nil || rawDue == "" {
		return c.Result(types.ResultNoMatch, false, 1, "Task has no due date"), nil
	}
	due, ok := parseDueDate(rawDue)
	if !ok {
		return types.CheckResult{}, types.NewError(types.ErrEvaluation,
			fmt.Sprintf("invalid due date format: %v", rawDue)).WithCheckpoint(c.Name()).WithItem(item.ID)
	}

	days := daysBetween(due, c.now())
	if days < c.overdueDays {
		return c.Result(types.ResultNoMatch, false, 1,
			fmt.Sprintf("Task is not overdue (due in %d days)", abs(days))), nil
	}

	score := 0.0
	var factors []string
	switch {
	case days >= c.criticalDays:
		score += 0.5
		factors = append(factors, fmt.Sprintf("Critical: %d days overdue", days))
	case days >= 3:
		score += 0.3
		factors = append(factors, fmt.Sprintf("High: %d days overdue", days))
	default:
		score += 0.1
		factors = append(factors, fmt.Sprintf("Medium: %d days overdue", days))
	}

	priority := taskPriority(item)
	if priority == "urgent" || priority == "high" {
		score += 0.2
		factors = append(factors, "High priority: "+priority)
	}

	text := strings.ToLower(item.StringField("name") + " " + item.StringField("description"))
	found := matchKeywords(text, c.impactKeywords)
	if len(found) > 0 && len(c.impactKeywords) > 0 {
		score += 0.3 * float64(len(found)) / float64(len(c.impactKeywords))
		factors = append(factors, "Impact keywords: "+strings.Join(found, ", "))
	}

	level := c.escalationLevel(days)
	critical := days >= c.criticalDays || score >= 0.7

	confidence := score * 1.3
	if confidence > 1 {
		confidence = 1
	}

	result := c.Result(types.ResultMatch, true, confidence,
		fmt.Sprintf("Task is %d days overdue, impact score: %.2f", days, score))
	result.Context = map[string]any{
		"days_overdue":           days,
		"impact_score":           score,
		"impact_factors":         factors,
		"escalation_level":       level,
		"is_critical_escalation": critical,
		"task_priority":          priority,
		"impact_keywords_found":  found,
	}
	result.SuggestedActions = []string{"escalate_task", "notify_stakeholders"}
	result.EvaluationDurationMs = time.Since(start).Milliseconds()
	return result, nil
}

func (c *OverdueTask) escalationLevel(days int) string {
	level := "team_lead"
	for _, step := range c.escalation {
		if days >= step.days {
			level = step.level
		}
	}
	return level
}

// Actions 打逾期标签、通知负责人与项目负责人，严重时创建事件单
func (c *OverdueTask) Actions(item types.MonitoringData, result types.CheckResult) []types.Action {
	taskID := item.StringField("id")
	taskName := item.StringField("name")
	days, _ := result.Context["days_overdue"].(int)
	level, _ := result.Context["escalation_level"].(string)
	critical, _ := result.Context["is_critical_escalation"].(bool)

	actions := []types.Action{{
		Type: types.ActionStatusUpdate,
		Name: "add_overdue_tag",
		Params: map[string]any{
			"system":     "clickup",
			"entity_id":  taskID,
			"new_status": taskStatus(item),
			"reason":     fmt.Sprintf("Task marked as overdue (%d days)", days),
			"add_tags":   []string{"overdue"},
		},
	}}

	if to := assigneeEmail(firstAssignee(item), c.emailDomain); c.notifyAssignee && to != "" {
		urgency := "HIGH"
		if critical {
			urgency = "CRITICAL"
		}
		actions = append(actions, types.Action{
			Type: types.ActionNotification,
			Name: "notify_assignee_overdue",
			Params: map[string]any{
				"channel":   "email",
				"recipient": to,
				"subject":   fmt.Sprintf("[%s] Overdue Task: %s", urgency, taskName),
				"message": fmt.Sprintf("Your task '%s' is %d days overdue. Please provide an update on the status.",
					taskName, days),
			},
		})
	}

	if c.notifyProjectLead {
		actions = append(actions, types.Action{
			Type: types.ActionNotification,
			Name: "notify_project_lead",
			Params: map[string]any{
				"channel":   "slack",
				"recipient": c.projectLeadTarget,
				"subject":   "Task Escalation: " + taskName,
				"message": fmt.Sprintf("Task '%s' (ID: %s) is %d days overdue and has been escalated to %s.",
					taskName, taskID, days, level),
			},
		})
	}

	if critical && c.createIncident && c.incidentURL != "" {
		actions = append(actions, types.Action{
			Type: types.ActionAPICall,
			Name: "create_incident",
			Params: map[string]any{
				"url":    c.incidentURL,
				"method": "POST",
				"data": map[string]any{
					"title":            "Critical Overdue Task: " + taskName,
					"description":      fmt.Sprintf("Task '%s' is %d days overdue and requires immediate attention.", taskName, days),
					"severity":         "high",
					"task_id":          taskID,
					"escalation_level": level,
				},
			},
		})
	}
	return actions
}

// AfterProcess 附加升级参数，严重升级延长 AI 超时
func (c *OverdueTask) AfterProcess(item types.MonitoringData, result types.CheckResult) []types.AIAction {
	actions := c.Base.AfterProcess(item, result)
	critical, _ := result.Context["is_critical_escalation"].(bool)
	for i := range actions {
		for _, k := range []string{"days_overdue", "impact_score", "impact_factors", "escalation_level", "is_critical_escalation"} {
			actions[i].Parameters[k] = result.Context[k]
		}
		actions[i].Parameters["create_incident"] = c.createIncident
		if critical {
			actions[i].TimeoutSeconds = criticalTimeoutSeconds
		}
	}
	return actions
}

// parseEscalation 解析 {天数: 级别} 映射，YAML 可能给出 int 或 string 键
func parseEscalation(v any) []escalationStep {
	var steps []escalationStep
	add := func(k any, val any) {
		level, ok := val.(string)
		if !ok {
			return
		}
		var days int
		switch kk := k.(type) {
		case int:
			days = kk
		case float64:
			days = int(kk)
		case string:
			n, err := strconv.Atoi(kk)
			if err != nil {
				return
			}
			days = n
		default:
			return
		}
		steps = append(steps, escalationStep{days: days, level: level})
	}

	switch m := v.(type) {
	case map[string]any:
		for k, val := range m {
			add(k, val)
		}
	case map[any]any:
		for k, val := range m {
			add(k, val)
		}
	case map[int]string:
		for k, val := range m {
			add(k, val)
		}
	}
	if len(steps) == 0 {
		return defaultEscalation
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].days < steps[j].days })
	return steps
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
