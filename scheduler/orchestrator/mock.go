package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/monitorflow/types"
	"github.com/google/uuid"
)

// MockOrchestrator 本地模拟编排服务，按工作流名称返回固定结果
type MockOrchestrator struct {
	latency time.Duration
	fail    map[string]struct{}

	calls atomic.Int64
	mu    sync.Mutex
	last  map[string]types.AIWorkflowInput
}

// NewMockOrchestrator 创建模拟编排服务，failWorkflows 中的工作流总是失败
func NewMockOrchestrator(latency time.Duration, failWorkflows ...string) *MockOrchestrator {
	m := &MockOrchestrator{
		latency: latency,
		fail:    make(map[string]struct{}, len(failWorkflows)),
		last:    make(map[string]types.AIWorkflowInput),
	}
	for _, w := range failWorkflows {
		m.fail[w] = struct{}{}
	}
	return m
}

// RunWorkflow implements Orchestrator.
func (m *MockOrchestrator) RunWorkflow(ctx context.Context, workflowName string, input types.AIWorkflowInput, timeout time.Duration) (*Response, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.last[workflowName] = input
	m.mu.Unlock()

	if m.latency > 0 {
		if timeout > 0 && m.latency > timeout {
			return nil, types.NewError(types.ErrTimeout, fmt.Sprintf("workflow %s exceeded %s", workflowName, timeout)).WithRetryable(true)
		}
		timer := time.NewTimer(m.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if _, ok := m.fail[workflowName]; ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowFailed, workflowName)
	}

	resp := canned(workflowName, input)
	resp.RunID = uuid.NewString()
	resp.WorkflowName = workflowName
	resp.Success = true
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
	resp.Metadata["agent_role"] = input.AIAction.AgentRole
	resp.Metadata["dry_run"] = input.DryRun
	return resp, nil
}

// Calls 累计调用次数
func (m *MockOrchestrator) Calls() int {
	return int(m.calls.Load())
}

// LastInput 最近一次传给 workflowName 的输入
func (m *MockOrchestrator) LastInput(workflowName string) (types.AIWorkflowInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.last[workflowName]
	return in, ok
}

// canned 按工作流名称中的关键字选择模拟结果
func canned(workflowName string, input types.AIWorkflowInput) *Response {
	data := input.DataItem.Data
	name := stringOr(data["name"], "Unknown Task")
	lower := strings.ToLower(workflowName)

	switch {
	case strings.Contains(lower, "triage"):
		return &Response{
			ActionsTaken: []string{"analyzed_task_urgency", "recommended_assignment", "added_comment"},
			Output: map[string]any{
				"analysis":         fmt.Sprintf("Task '%s' with priority '%s' requires immediate attention", name, stringOr(data["priority"], "normal")),
				"recommendation":   "Assign to senior developer and create follow-up tasks",
				"estimated_effort": "4 hours",
				"risk_level":       "medium",
			},
			Metadata: map[string]any{"confidence": 0.85},
		}

	case strings.Contains(lower, "escalation"):
		days := 1
		if v, ok := input.CheckResult.Context["days_overdue"].(int); ok {
			days = v
		}
		level := "Team Lead"
		if days > 3 {
			level = "Management"
		}
		return &Response{
			ActionsTaken: []string{"analyzed_overdue_reasons", "created_incident_ticket", "notified_management"},
			Output: map[string]any{
				"analysis":          fmt.Sprintf("Task '%s' is %d days overdue", name, days),
				"impact_assessment": "Medium impact on project timeline",
				"escalation_level":  level,
				"recommended_actions": []string{
					"Reassign to experienced team member",
					"Break down into smaller subtasks",
					"Adjust timeline expectations",
				},
			},
			Metadata: map[string]any{"confidence": 0.92},
		}

	case strings.Contains(lower, "assignment"):
		return &Response{
			ActionsTaken: []string{"analyzed_task_requirements", "evaluated_team_workload", "made_assignment_recommendation"},
			Output: map[string]any{
				"analysis":              fmt.Sprintf("Task '%s' requires backend development skills", name),
				"recommended_assignee":  "senior_backend_dev",
				"assignment_reasoning":  "Has relevant experience and current availability",
				"alternative_assignees": []string{"backend_dev_2", "tech_lead"},
			},
			Metadata: map[string]any{"confidence": 0.88},
		}

	case strings.Contains(lower, "analysis"), strings.Contains(lower, "slack"):
		text := stringOr(data["text"], stringOr(data["message_text"], ""))
		if len(text) > 50 {
			text = text[:50] + "..."
		}
		return &Response{
			ActionsTaken: []string{"analyzed_request_type", "categorized_urgency", "provided_response"},
			Output: map[string]any{
				"analysis":           fmt.Sprintf("Request from %s: '%s'", stringOr(data["user_name"], "Unknown User"), text),
				"request_category":   "technical_support",
				"urgency_level":      "medium",
				"suggested_response": "I'll help you with that issue. Let me check the documentation...",
				"needs_escalation":   false,
			},
			Metadata: map[string]any{"confidence": 0.79},
		}
	}

	return &Response{
		ActionsTaken: []string{"processed_input", "generated_response"},
		Output: map[string]any{
			"analysis": fmt.Sprintf("Processed %s item %s", input.DataItem.Type, input.DataItem.ID),
			"status":   "completed",
		},
		Metadata: map[string]any{"confidence": 0.75},
	}
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}
