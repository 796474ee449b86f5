package types

import "time"

// ActionType 即时动作类型
type ActionType string

const (
	ActionNotification ActionType = "notification"
	ActionStatusUpdate ActionType = "status_update"
	ActionAPICall      ActionType = "api_call"
	ActionWebhook      ActionType = "webhook"
)

// Action 即时动作，检查点匹配后内联执行
type Action struct {
	Type           ActionType     `json:"type"`
	Name           string         `json:"name"`
	Params         map[string]any `json:"params"`
	Priority       int            `json:"priority,omitempty"`
	TimeoutSeconds int            `json:"timeout_seconds,omitempty"`
}

// Timeout returns the action's own timeout, or fallback when unset.
func (a Action) Timeout(fallback time.Duration) time.Duration {
	if a.TimeoutSeconds > 0 {
		return time.Duration(a.TimeoutSeconds) * time.Second
	}
	return fallback
}

// ActionResult 即时动作执行结果
type ActionResult struct {
	Success    bool           `json:"success"`
	Type       ActionType     `json:"type"`
	Name       string         `json:"name,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}
