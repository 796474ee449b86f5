package mocks

import (
	"context"
	"time"

	"github.com/BaSui01/monitorflow/scheduler/orchestrator"
	"github.com/BaSui01/monitorflow/types"
	"github.com/stretchr/testify/mock"
)

// OrchestratorMock 基于 testify/mock 的编排服务模拟
//
//	orch := new(mocks.OrchestratorMock)
//	orch.On("RunWorkflow", mock.Anything, "task_triage", mock.Anything, mock.Anything).
//	    Return(&orchestrator.Response{Success: true}, nil)
type OrchestratorMock struct {
	mock.Mock
}

// RunWorkflow implements orchestrator.Orchestrator.
func (m *OrchestratorMock) RunWorkflow(ctx context.Context, workflowName string, input types.AIWorkflowInput, timeout time.Duration) (*orchestrator.Response, error) {
	args := m.Called(ctx, workflowName, input, timeout)
	var resp *orchestrator.Response
	if v := args.Get(0); v != nil {
		resp = v.(*orchestrator.Response)
	}
	return resp, args.Error(1)
}
