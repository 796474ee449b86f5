// MockDispatcher / MockAIExecutor 分发阶段测试模拟实现。
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/monitorflow/types"
	"github.com/google/uuid"
)

// --- MockDispatcher ---

// MockDispatcher 记录即时动作，按动作名注入失败
type MockDispatcher struct {
	mu       sync.Mutex
	failures map[string]error
	panics   map[string]bool
	executed []types.Action
	log      *CallLog
}

// NewMockDispatcher 创建总是成功的分发器
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{
		failures: make(map[string]error),
		panics:   make(map[string]bool),
	}
}

// WithFailure 名为 name 的动作总是返回 err
func (m *MockDispatcher) WithFailure(name string, err error) *MockDispatcher {
	m.failures[name] = err
	return m
}

// WithPanic 名为 name 的动作 panic
func (m *MockDispatcher) WithPanic(name string) *MockDispatcher {
	m.panics[name] = true
	return m
}

// WithCallLog 把执行写入共享记录
func (m *MockDispatcher) WithCallLog(log *CallLog) *MockDispatcher {
	m.log = log
	return m
}

// Execute 记录动作并返回配置的结果
func (m *MockDispatcher) Execute(_ context.Context, action types.Action) (types.ActionResult, error) {
	m.mu.Lock()
	m.executed = append(m.executed, action)
	err := m.failures[action.Name]
	shouldPanic := m.panics[action.Name]
	m.mu.Unlock()
	m.log.Record("action:%s", action.Name)

	if shouldPanic {
		panic("mock dispatcher panic: " + action.Name)
	}
	if err != nil {
		return types.ActionResult{Type: action.Type, Name: action.Name, Error: err.Error()}, err
	}
	return types.ActionResult{Success: true, Type: action.Type, Name: action.Name, StatusCode: 200}, nil
}

// Executed 返回已执行动作的副本
func (m *MockDispatcher) Executed() []types.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Action, len(m.executed))
	copy(out, m.executed)
	return out
}

// Count 已执行动作数（含失败尝试）
func (m *MockDispatcher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.executed)
}

// --- MockAIExecutor ---

// MockAIExecutor 记录 AI 子执行，按工作流名注入失败
type MockAIExecutor struct {
	mu       sync.Mutex
	failures map[string]string
	delay    time.Duration
	results  []types.AIWorkflowResult
	log      *CallLog

	running    int
	maxRunning int
}

// NewMockAIExecutor 创建总是成功的 AI 执行器
func NewMockAIExecutor() *MockAIExecutor {
	return &MockAIExecutor{failures: make(map[string]string)}
}

// WithFailure 工作流 workflow 总是以 msg 失败
func (m *MockAIExecutor) WithFailure(workflow, msg string) *MockAIExecutor {
	m.failures[workflow] = msg
	return m
}

// WithDelay 每次执行前等待 d
func (m *MockAIExecutor) WithDelay(d time.Duration) *MockAIExecutor {
	m.delay = d
	return m
}

// WithCallLog 把执行写入共享记录
func (m *MockAIExecutor) WithCallLog(log *CallLog) *MockAIExecutor {
	m.log = log
	return m
}

// Execute 返回满足成功/失败约束的结果
func (m *MockAIExecutor) Execute(ctx context.Context, action types.AIAction, item types.MonitoringData, result types.CheckResult) types.AIWorkflowResult {
	m.mu.Lock()
	m.running++
	m.maxRunning = max(m.maxRunning, m.running)
	msg, fail := m.failures[action.WorkflowName]
	m.mu.Unlock()
	m.log.Record("ai:%s", action.Name)

	defer func() {
		m.mu.Lock()
		m.running--
		m.mu.Unlock()
	}()

	if m.delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(m.delay):
		}
	}

	now := time.Now().UTC()
	res := types.AIWorkflowResult{
		ExecutionID:      uuid.NewString(),
		WorkflowName:     action.WorkflowName,
		ActionName:       action.Name,
		CheckpointName:   result.CheckpointName,
		ItemID:           item.ID,
		StartedAt:        now,
		CompletedAt:      now,
		Attempts:         1,
		ApprovalRequired: action.ApprovalRequired,
		ActionsTaken:     []string{},
	}
	if fail {
		res.ErrorMessage = msg
	} else {
		res.Success = true
		res.ActionsTaken = []string{action.Name}
		res.ApprovalGranted = !action.ApprovalRequired
	}

	m.mu.Lock()
	m.results = append(m.results, res)
	m.mu.Unlock()
	return res
}

// Results 返回全部结果副本
func (m *MockAIExecutor) Results() []types.AIWorkflowResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.AIWorkflowResult, len(m.results))
	copy(out, m.results)
	return out
}

// MaxConcurrent 观察到的最大并发执行数
func (m *MockAIExecutor) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxRunning
}
