package builtin

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"github.com/BaSui01/monitorflow/types"
)

var whitespace = regexp.MustCompile(`\s+`)

// BotMention 识别 Slack 消息中对机器人的提及
type BotMention struct {
	checkpoint.Base
	sourced

	botUserID string
	botName   string
	patterns  []string
	autoReply bool
	ignoreBot bool
}

// NewBotMention 创建机器人提及检查点
func NewBotMention(p checkpoint.Params, deps Deps) *BotMention {
	deps = deps.withDefaults()
	cp := &BotMention{
		Base: checkpoint.NewBase(checkpoint.Defaults{
			Type:              checkpoint.TypeSlackBotMention,
			Description:       "Responds to direct mentions of the bot in Slack",
			Priority:          6,
			AIWorkflowEnabled: true,
			PromptTemplateID:  "slack_bot_mention_response",
			AgentRole:         "support",
			TimeoutSeconds:    600,
			Handles:           []types.DataType{types.DataTypeSlackMessage},
		}, p),
		botUserID: p.String("bot_user_id", ""),
		botName:   p.String("bot_name", "bot"),
		patterns:  p.Strings("mention_patterns", nil),
		autoReply: p.Bool("auto_reply", true),
		ignoreBot: p.Bool("ignore_bots", true),
	}
	if len(cp.patterns) == 0 {
		if cp.botUserID != "" {
			cp.patterns = append(cp.patterns, "<@"+cp.botUserID+">")
		}
		cp.patterns = append(cp.patterns, "@"+cp.botName, cp.botName)
	}
	cp.source = NewHTTPSource(p, types.DataTypeSlackMessage, "slack", deps)
	return cp
}

// CanHandle 只处理包含提及模式的 Slack 消息
func (c *BotMention) CanHandle(item types.MonitoringData) bool {
	if !c.Base.CanHandle(item) {
		return false
	}
	return len(c.found(item.StringField("text"))) > 0
}

func (c *BotMention) found(text string) []string {
	text = strings.ToLower(text)
	var out []string
	for _, p := range c.patterns {
		if p != "" && strings.Contains(text, strings.ToLower(p)) {
			out = append(out, p)
		}
	}
	return out
}

// Evaluate 判断提及并估计置信度
func (c *BotMention) Evaluate(_ context.Context, item types.MonitoringData) (types.CheckResult, error) {
	start := time.Now()
	text := item.StringField("text")
	isBot := item.StringField("bot_id") != ""

	if c.ignoreBot && isBot {
		r := c.Result(types.ResultNoMatch, false, 1, "Ignoring bot message")
		r.Context["is_bot"] = true
		return r, nil
	}

	found := c.found(text)
	if len(found) == 0 {
		r := c.Result(types.ResultNoMatch, false, 0.9, "No bot mention found in message")
		r.Context["message_text"] = truncate(text, 100)
		return r, nil
	}

	r := c.Result(types.ResultMatch, true, mentionConfidence(item, found),
		"Bot mentioned with patterns: "+strings.Join(found, ", "))
	r.Context = map[string]any{
		"found_patterns": found,
		"command_text":   commandText(text, found),
		"channel":        item.StringField("channel"),
		"user":           item.StringField("user"),
		"is_bot":         isBot,
		"message_length": len(text),
	}
	r.SuggestedActions = []string{"respond_to_mention", "log_interaction"}
	r.EvaluationDurationMs = time.Since(start).Milliseconds()
	return r, nil
}

// Actions 在原线程回复确认消息
func (c *BotMention) Actions(item types.MonitoringData, _ types.CheckResult) []types.Action {
	if !c.autoReply {
		return nil
	}
	threadTS := item.StringField("thread_ts")
	if threadTS == "" {
		threadTS = item.StringField("ts")
	}
	return []types.Action{{
		Type:     types.ActionNotification,
		Name:     "acknowledge_mention",
		Priority: 7,
		Params: map[string]any{
			"channel":   "slack",
			"recipient": item.StringField("channel"),
			"thread_ts": threadTS,
			"message":   "Hi <@" + item.StringField("user") + ">! I've received your message and I'm processing it...",
		},
	}}
}

// AfterProcess 生成提及响应工作流
func (c *BotMention) AfterProcess(item types.MonitoringData, result types.CheckResult) []types.AIAction {
	actions := c.Base.AfterProcess(item, result)
	for i := range actions {
		actions[i].WorkflowName = "slack_bot_mention_response"
		actions[i].Parameters["slack_context"] = map[string]any{
			"channel":        item.StringField("channel"),
			"user":           item.StringField("user"),
			"thread_ts":      item.StringField("thread_ts"),
			"command_text":   result.Context["command_text"],
			"found_patterns": result.Context["found_patterns"],
		}
	}
	return actions
}

// Validate 至少需要一个提及模式
func (c *BotMention) Validate() error {
	if err := c.Base.Validate(); err != nil {
		return err
	}
	if c.botName == "" && c.botUserID == "" {
		return types.NewError(types.ErrInvalidInput, "either bot_name or bot_user_id must be configured")
	}
	return nil
}

func mentionConfidence(item types.MonitoringData, found []string) float64 {
	conf := 0.7
	direct, byID, nameOnly := false, false, false
	for _, p := range found {
		switch {
		case strings.HasPrefix(p, "<@"):
			byID = true
		case strings.HasPrefix(p, "@"):
			direct = true
		default:
			nameOnly = true
		}
	}
	if direct {
		conf += 0.2
	}
	if byID {
		conf += 0.1
	}
	if nameOnly {
		conf -= 0.1
	}
	if len(strings.TrimSpace(item.StringField("text"))) < 10 {
		conf -= 0.1
	}
	if strings.HasPrefix(item.StringField("channel"), "D") {
		conf += 0.1
	}
	return types.ClampConfidence(conf)
}

func commandText(text string, found []string) string {
	for _, p := range found {
		text = strings.ReplaceAll(text, p, "")
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
