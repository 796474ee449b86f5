// Package orchestrator 提供 AI 工作流编排服务的客户端。
//
// 调度器只负责把 AIAction 交给编排服务执行，工作流本身（提示词渲染、
// 模型调用、审批）在编排服务内部完成。
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/monitorflow/config"
	"github.com/BaSui01/monitorflow/types"
	"go.uber.org/zap"
)

// ErrWorkflowFailed 工作流执行失败
var ErrWorkflowFailed = types.NewError(types.ErrUpstream, "workflow execution failed")

// Response 编排服务返回的工作流执行结果
type Response struct {
	RunID        string         `json:"run_id,omitempty"`
	WorkflowName string         `json:"workflow_name"`
	Success      bool           `json:"success"`
	Output       map[string]any `json:"output,omitempty"`
	ActionsTaken []string       `json:"actions_taken,omitempty"`
	Error        string         `json:"error,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`

	// 编排服务内部完成审批时回填；nil 表示未给出审批结论
	ApprovalGranted *bool `json:"approval_granted,omitempty"`
}

// Orchestrator 执行命名工作流
type Orchestrator interface {
	RunWorkflow(ctx context.Context, workflowName string, input types.AIWorkflowInput, timeout time.Duration) (*Response, error)
}

// New 按配置类型创建编排客户端
func New(cfg config.OrchestratorConfig, logger *zap.Logger) (Orchestrator, error) {
	switch cfg.Type {
	case "", "mock":
		return NewMockOrchestrator(cfg.MockLatency, cfg.MockFailWorkflows...), nil
	case "http":
		return NewHTTPOrchestrator(cfg, logger)
	default:
		return nil, types.NewError(types.ErrInvalidInput, fmt.Sprintf("unknown orchestrator type %q", cfg.Type))
	}
}
