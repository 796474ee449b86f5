package actions

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/BaSui01/monitorflow/config"
	"github.com/BaSui01/monitorflow/types"
)

// Mailer 发送邮件
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// SMTPMailer 基于 net/smtp 的 Mailer
type SMTPMailer struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer 创建 SMTP 发送器
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// Send 发送纯文本邮件，ctx 取消时立即返回
func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return invalid("email recipient is required")
	}
	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	msg := buildMessage(m.cfg.From, to, subject, body)

	done := make(chan error, 1)
	go func() { done <- m.send(addr, auth, m.cfg.From, to, msg) }()

	select {
	case err := <-done:
		if err != nil {
			return types.WrapError(types.ErrUpstream, "smtp send failed", err).WithRetryable(true)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.NewReplacer("\r", " ", "\n", " ").Replace(subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// NotificationExecutor 通知：slack / teams incoming webhook，email 走 SMTP
type NotificationExecutor struct {
	slackURL string
	teamsURL string
	mailer   Mailer
	http     *httpCaller
}

// NewNotificationExecutor 创建通知执行器
func NewNotificationExecutor(cfg config.ActionsConfig, caller *httpCaller, mailer Mailer) *NotificationExecutor {
	return &NotificationExecutor{
		slackURL: cfg.SlackWebhookURL,
		teamsURL: cfg.TeamsWebhookURL,
		mailer:   mailer,
		http:     caller,
	}
}

// Execute 参数: channel(slack|teams|email), recipient, subject, message, thread_ts, webhook_url
func (e *NotificationExecutor) Execute(ctx context.Context, params map[string]any) (types.ActionResult, error) {
	channel := stringParam(params, "channel", "")
	if channel == "" {
		channel = stringParam(params, "notification_type", "slack")
	}
	recipient := stringParam(params, "recipient", "")
	subject := stringParam(params, "subject", "")
	message := stringParam(params, "message", "")
	if message == "" {
		return types.ActionResult{}, invalid("notification message is required")
	}

	output := map[string]any{"channel": channel, "recipient": recipient}

	switch channel {
	case "slack":
		target := stringParam(params, "webhook_url", e.slackURL)
		if target == "" {
			return types.ActionResult{Output: output}, invalid("slack webhook url is not configured")
		}
		payload := map[string]any{"text": message}
		if recipient != "" {
			payload["channel"] = recipient
		}
		if ts := stringParam(params, "thread_ts", ""); ts != "" {
			payload["thread_ts"] = ts
		}
		return e.post(ctx, target, payload, output, "slack")

	case "teams":
		target := stringParam(params, "webhook_url", e.teamsURL)
		if target == "" {
			return types.ActionResult{Output: output}, invalid("teams webhook url is not configured")
		}
		text := message
		if subject != "" {
			text = "**" + subject + "**\n\n" + message
		}
		return e.post(ctx, target, map[string]any{"text": text}, output, "teams")

	case "email":
		if e.mailer == nil {
			return types.ActionResult{Output: output}, invalid("smtp is not configured")
		}
		if !strings.Contains(recipient, "@") {
			return types.ActionResult{Output: output}, invalid("invalid email recipient %q", recipient)
		}
		if err := e.mailer.Send(ctx, []string{recipient}, subject, message); err != nil {
			return types.ActionResult{Output: output}, err
		}
		return types.ActionResult{Success: true, Output: output}, nil
	}

	return types.ActionResult{Output: output}, invalid("unknown notification channel: %s", channel)
}

func (e *NotificationExecutor) post(ctx context.Context, target string, payload, output map[string]any, name string) (types.ActionResult, error) {
	body, err := jsonBody(payload)
	if err != nil {
		return types.ActionResult{Output: output}, err
	}
	resp, err := e.http.expectOK(ctx, request{Method: "POST", URL: target, Body: body}, name)
	if resp != nil {
		output["status_code"] = resp.Status
	}
	if err != nil {
		return types.ActionResult{Output: output}, err
	}
	return types.ActionResult{Success: true, StatusCode: resp.Status, Output: output}, nil
}

func stringParam(params map[string]any, key, def string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func stringsParam(params map[string]any, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

func mapParam(params map[string]any, key string) map[string]any {
	if m, ok := params[key].(map[string]any); ok {
		return m
	}
	return nil
}
