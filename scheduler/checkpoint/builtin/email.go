package builtin

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"github.com/BaSui01/monitorflow/types"
)

var defaultAlertKeywords = []string{
	"alert", "critical", "error", "failure", "down", "offline", "emergency", "urgent",
	"immediate", "attention", "warning", "incident", "outage", "breach", "security", "threat",
}

var defaultUrgencyKeywords = []string{
	"critical", "emergency", "urgent", "immediate", "asap", "production", "down",
	"offline", "breach", "security", "outage", "severe", "major", "high priority",
}

var (
	criticalIndicators = []string{"critical", "emergency", "security", "breach", "production", "down"}
	highIndicators     = []string{"urgent", "immediate", "asap", "high priority", "severe", "major"}
)

// 紧急程度
const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyNormal   = "normal"
)

// EmailAlert 识别告警邮件
type EmailAlert struct {
	checkpoint.Base
	sourced

	alertKeywords   []string
	urgencyKeywords []string
	senderDomains   []string
	subjectPatterns []*regexp.Regexp
	autoTriage      bool
	createTicket    bool
	notifyTeam      bool
	channels        []string
}

// NewEmailAlert 创建邮件告警检查点，subject_patterns 编译失败时返回错误
func NewEmailAlert(p checkpoint.Params, deps Deps) (*EmailAlert, error) {
	deps = deps.withDefaults()
	cp := &EmailAlert{
		Base: checkpoint.NewBase(checkpoint.Defaults{
			Type:              checkpoint.TypeEmailAlert,
			Description:       "Detects email alerts and triggers appropriate response workflows",
			Priority:          8,
			AIWorkflowEnabled: true,
			PromptTemplateID:  "email_alert_response",
			AgentRole:         "support",
			TimeoutSeconds:    900,
			Handles:           []types.DataType{types.DataTypeEmailAlert},
		}, p),
		alertKeywords:   lower(p.Strings("alert_keywords", defaultAlertKeywords)),
		urgencyKeywords: lower(p.Strings("urgency_keywords", defaultUrgencyKeywords)),
		senderDomains:   lower(p.Strings("sender_domains", nil)),
		autoTriage:      p.Bool("auto_triage", true),
		createTicket:    p.Bool("create_ticket", true),
		notifyTeam:      p.Bool("notify_team", true),
		channels:        p.Strings("response_channels", nil),
	}
	for _, expr := range p.Strings("subject_patterns", nil) {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, types.WrapError(types.ErrInvalidInput, "invalid subject pattern "+expr, err)
		}
		cp.subjectPatterns = append(cp.subjectPatterns, re)
	}
	cp.source = NewHTTPSource(p, types.DataTypeEmailAlert, "email", deps)
	return cp, nil
}

// CanHandle 只处理带告警特征的邮件
func (c *EmailAlert) CanHandle(item types.MonitoringData) bool {
	if !c.Base.CanHandle(item) {
		return false
	}
	subject := strings.ToLower(item.StringField("subject"))
	body := strings.ToLower(item.StringField("body"))
	for _, kw := range c.alertKeywords {
		if strings.Contains(subject, kw) || strings.Contains(body, kw) {
			return true
		}
	}
	sender := strings.ToLower(item.StringField("sender"))
	for _, d := range c.senderDomains {
		if d != "" && strings.Contains(sender, d) {
			return true
		}
	}
	for _, re := range c.subjectPatterns {
		if re.MatchString(subject) {
			return true
		}
	}
	return false
}

// Evaluate 识别告警关键词、紧急程度与可信发件人
func (c *EmailAlert) Evaluate(_ context.Context, item types.MonitoringData) (types.CheckResult, error) {
	start := time.Now()
	subject := item.StringField("subject")
	body := item.StringField("body")
	sender := item.StringField("sender")
	subjectLower, bodyLower := strings.ToLower(subject), strings.ToLower(body)

	var alerts, urgency []string
	for _, kw := range c.alertKeywords {
		if strings.Contains(subjectLower, kw) || strings.Contains(bodyLower, kw) {
			alerts = append(alerts, kw)
		}
	}
	for _, kw := range c.urgencyKeywords {
		if strings.Contains(subjectLower, kw) || strings.Contains(bodyLower, kw) {
			urgency = append(urgency, kw)
		}
	}
	level := UrgencyNormal
	if len(urgency) > 0 {
		level = urgencyLevel(subjectLower, bodyLower, urgency)
	}

	domain := senderDomain(sender)
	trusted := domain != "" && contains(c.senderDomains, domain)

	if len(alerts) == 0 && !trusted {
		r := c.Result(types.ResultNoMatch, false, 0.9, "No alert indicators found in email")
		r.Context["subject"] = truncate(subject, 100)
		return r, nil
	}

	suggested := []string{"log_email_alert"}
	switch level {
	case UrgencyCritical:
		suggested = append(suggested, "immediate_triage", "escalate_team")
	case UrgencyHigh:
		suggested = append(suggested, "create_ticket", "notify_team")
	default:
		suggested = append(suggested, "triage_alert", "track_response")
	}

	r := c.Result(types.ResultMatch, true, alertConfidence(subjectLower, body, alerts, urgency, trusted),
		fmt.Sprintf("Email alert detected with %d keywords, urgency: %s", len(alerts), level))
	r.Context = map[string]any{
		"found_alert_keywords":   alerts,
		"found_urgency_keywords": urgency,
		"urgency_level":          level,
		"sender":                 sender,
		"sender_domain":          domain,
		"is_trusted_sender":      trusted,
		"subject":                subject,
		"email_length":           len(body),
		"requires_triage":        c.autoTriage,
	}
	r.SuggestedActions = suggested
	r.EvaluationDurationMs = time.Since(start).Milliseconds()
	return r, nil
}

// Actions 回复确认、通知团队，critical 时额外升级
func (c *EmailAlert) Actions(item types.MonitoringData, result types.CheckResult) []types.Action {
	sender := item.StringField("sender")
	subject := item.StringField("subject")
	level, _ := result.Context["urgency_level"].(string)

	var actions []types.Action
	if sender != "" {
		actions = append(actions, types.Action{
			Type:     types.ActionNotification,
			Name:     "acknowledge_alert",
			Priority: 8,
			Params: map[string]any{
				"channel":   "email",
				"recipient": sender,
				"subject":   "Re: " + subject,
				"message":   acknowledgement(level),
			},
		})
	}

	for _, ch := range c.channels {
		if !c.notifyTeam {
			break
		}
		actions = append(actions, types.Action{
			Type:     types.ActionNotification,
			Name:     "notify_team_alert",
			Priority: 7,
			Params: map[string]any{
				"channel":   "slack",
				"recipient": ch,
				"subject":   subject,
				"message":   fmt.Sprintf("Email alert received from %s: %s (urgency: %s)", sender, subject, level),
			},
		})
	}

	if level == UrgencyCritical {
		for _, ch := range c.channels {
			actions = append(actions, types.Action{
				Type:     types.ActionNotification,
				Name:     "escalate_critical_alert",
				Priority: 10,
				Params: map[string]any{
					"channel":   "slack",
					"recipient": ch,
					"message":   fmt.Sprintf("CRITICAL EMAIL ALERT: %s from %s", subject, sender),
				},
			})
		}
	}
	return actions
}

// AfterProcess 生成告警响应工作流
func (c *EmailAlert) AfterProcess(item types.MonitoringData, result types.CheckResult) []types.AIAction {
	actions := c.Base.AfterProcess(item, result)
	for i := range actions {
		actions[i].WorkflowName = "email_alert_response"
		actions[i].Parameters["email_context"] = map[string]any{
			"sender":            item.StringField("sender"),
			"subject":           item.StringField("subject"),
			"body":              item.StringField("body"),
			"urgency_level":     result.Context["urgency_level"],
			"alert_keywords":    result.Context["found_alert_keywords"],
			"urgency_keywords":  result.Context["found_urgency_keywords"],
			"is_trusted_sender": result.Context["is_trusted_sender"],
		}
		actions[i].Parameters["workflow_config"] = map[string]any{
			"auto_triage":       c.autoTriage,
			"create_ticket":     c.createTicket,
			"notify_team":       c.notifyTeam,
			"response_channels": c.channels,
		}
	}
	return actions
}

func urgencyLevel(subject, body string, found []string) string {
	for _, ind := range criticalIndicators {
		if strings.Contains(subject, ind) || strings.Contains(body, ind) {
			return UrgencyCritical
		}
	}
	for _, ind := range highIndicators {
		if strings.Contains(subject, ind) || strings.Contains(body, ind) {
			return UrgencyHigh
		}
	}
	if len(found) >= 2 {
		return UrgencyHigh
	}
	return UrgencyNormal
}

func alertConfidence(subjectLower, body string, alerts, urgency []string, trusted bool) float64 {
	conf := 0.6
	if trusted {
		conf += 0.2
	}
	for _, kw := range alerts {
		if strings.Contains(subjectLower, kw) {
			conf += 0.1
			break
		}
	}
	if len(urgency) > 0 {
		conf += 0.1
	}
	if len(alerts) >= 2 {
		conf += 0.1
	}
	switch {
	case len(body) > 200:
		conf += 0.1
	case len(body) < 50:
		conf -= 0.1
	}
	return types.ClampConfidence(conf)
}

func senderDomain(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(strings.Trim(addr[at+1:], "> "))
}

func acknowledgement(level string) string {
	switch level {
	case UrgencyCritical:
		return "Your critical alert has been received and escalated to the on-call team."
	case UrgencyHigh:
		return "Your alert has been received and a ticket is being created."
	default:
		return "Your alert has been received and will be triaged shortly."
	}
}
