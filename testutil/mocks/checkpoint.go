// MockCheckingPoint 检查点测试模拟实现。
//
// 支持固定评估结果、错误与 panic 注入，并记录每个钩子的调用。
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"github.com/BaSui01/monitorflow/types"
)

// --- CallLog ---

// CallLog 跨多个 mock 共享的有序调用记录，用于断言执行顺序
type CallLog struct {
	mu      sync.Mutex
	entries []string
}

// NewCallLog 创建调用记录
func NewCallLog() *CallLog {
	return &CallLog{}
}

// Record 追加一条记录
func (l *CallLog) Record(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

// Entries 返回记录副本
func (l *CallLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// --- MockCheckingPoint ---

// MockCheckingPoint 是 checkpoint.CheckingPoint 的模拟实现
type MockCheckingPoint struct {
	mu sync.Mutex

	name        string
	typ         checkpoint.Type
	enabled     bool
	stopOnMatch bool

	canHandle func(item types.MonitoringData) bool
	evaluate  func(ctx context.Context, item types.MonitoringData) (types.CheckResult, error)
	actions   []types.Action
	aiActions []types.AIAction
	panicOn   string
	log       *CallLog

	evaluateCalls     int
	actionsCalls      int
	afterProcessCalls int
}

// NewMockCheckingPoint 创建默认全部匹配、不产生动作的检查点
func NewMockCheckingPoint(name string) *MockCheckingPoint {
	return &MockCheckingPoint{
		name:      name,
		typ:       checkpoint.TypeCustom,
		enabled:   true,
		canHandle: func(types.MonitoringData) bool { return true },
	}
}

// WithType 设置检查点类型
func (m *MockCheckingPoint) WithType(t checkpoint.Type) *MockCheckingPoint {
	m.typ = t
	return m
}

// WithEnabled 设置是否启用
func (m *MockCheckingPoint) WithEnabled(on bool) *MockCheckingPoint {
	m.enabled = on
	return m
}

// WithStopOnMatch 设置 stop_on_match
func (m *MockCheckingPoint) WithStopOnMatch(on bool) *MockCheckingPoint {
	m.stopOnMatch = on
	return m
}

// WithCanHandle 设置条目过滤函数
func (m *MockCheckingPoint) WithCanHandle(fn func(item types.MonitoringData) bool) *MockCheckingPoint {
	m.canHandle = fn
	return m
}

// WithResult 固定返回评估结果
func (m *MockCheckingPoint) WithResult(result types.CheckResult) *MockCheckingPoint {
	m.evaluate = func(context.Context, types.MonitoringData) (types.CheckResult, error) {
		return result, nil
	}
	return m
}

// WithMatch 固定返回 should_act=true 的匹配结果
func (m *MockCheckingPoint) WithMatch(confidence float64) *MockCheckingPoint {
	return m.WithResult(types.CheckResult{
		ResultType: types.ResultMatch,
		ShouldAct:  true,
		Confidence: confidence,
		Reason:     m.name + " matched",
	})
}

// WithNoMatch 固定返回不匹配结果
func (m *MockCheckingPoint) WithNoMatch() *MockCheckingPoint {
	return m.WithResult(types.CheckResult{ResultType: types.ResultNoMatch, Reason: "no match"})
}

// WithError 评估总是返回 err
func (m *MockCheckingPoint) WithError(err error) *MockCheckingPoint {
	m.evaluate = func(context.Context, types.MonitoringData) (types.CheckResult, error) {
		return types.CheckResult{}, err
	}
	return m
}

// WithEvaluateFunc 设置自定义评估函数
func (m *MockCheckingPoint) WithEvaluateFunc(fn func(ctx context.Context, item types.MonitoringData) (types.CheckResult, error)) *MockCheckingPoint {
	m.evaluate = fn
	return m
}

// WithActions 设置匹配后返回的即时动作
func (m *MockCheckingPoint) WithActions(actions ...types.Action) *MockCheckingPoint {
	m.actions = actions
	return m
}

// WithAIActions 设置匹配后返回的 AI 动作
func (m *MockCheckingPoint) WithAIActions(actions ...types.AIAction) *MockCheckingPoint {
	m.aiActions = actions
	return m
}

// WithPanicOn 在指定钩子中 panic：evaluate、actions 或 after_process
func (m *MockCheckingPoint) WithPanicOn(hook string) *MockCheckingPoint {
	m.panicOn = hook
	return m
}

// WithCallLog 把钩子调用写入共享记录
func (m *MockCheckingPoint) WithCallLog(log *CallLog) *MockCheckingPoint {
	m.log = log
	return m
}

// --- CheckingPoint 接口实现 ---

// Name 返回检查点名称
func (m *MockCheckingPoint) Name() string { return m.name }

// Type 返回检查点类型
func (m *MockCheckingPoint) Type() checkpoint.Type { return m.typ }

// Enabled 返回是否启用
func (m *MockCheckingPoint) Enabled() bool { return m.enabled }

// StopOnMatch 返回 stop_on_match
func (m *MockCheckingPoint) StopOnMatch() bool { return m.stopOnMatch }

// CanHandle 委托给过滤函数
func (m *MockCheckingPoint) CanHandle(item types.MonitoringData) bool {
	return m.canHandle(item)
}

// Evaluate 返回配置的结果，未配置时为不匹配
func (m *MockCheckingPoint) Evaluate(ctx context.Context, item types.MonitoringData) (types.CheckResult, error) {
	m.mu.Lock()
	m.evaluateCalls++
	m.mu.Unlock()
	m.log.Record("evaluate:%s:%s", m.name, item.ID)

	if m.panicOn == "evaluate" {
		panic("mock evaluate panic: " + m.name)
	}
	if m.evaluate == nil {
		return types.CheckResult{ResultType: types.ResultNoMatch}, nil
	}
	return m.evaluate(ctx, item)
}

// Actions 返回配置的即时动作
func (m *MockCheckingPoint) Actions(item types.MonitoringData, _ types.CheckResult) []types.Action {
	m.mu.Lock()
	m.actionsCalls++
	m.mu.Unlock()
	m.log.Record("actions:%s:%s", m.name, item.ID)

	if m.panicOn == "actions" {
		panic("mock actions panic: " + m.name)
	}
	return m.actions
}

// AfterProcess 返回配置的 AI 动作
func (m *MockCheckingPoint) AfterProcess(item types.MonitoringData, _ types.CheckResult) []types.AIAction {
	m.mu.Lock()
	m.afterProcessCalls++
	m.mu.Unlock()
	m.log.Record("after_process:%s:%s", m.name, item.ID)

	if m.panicOn == "after_process" {
		panic("mock after_process panic: " + m.name)
	}
	return m.aiActions
}

// --- 调用统计 ---

// EvaluateCalls 返回 Evaluate 调用次数
func (m *MockCheckingPoint) EvaluateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evaluateCalls
}

// ActionsCalls 返回 Actions 调用次数
func (m *MockCheckingPoint) ActionsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actionsCalls
}

// AfterProcessCalls 返回 AfterProcess 调用次数
func (m *MockCheckingPoint) AfterProcessCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.afterProcessCalls
}

// Constructor 返回总是构造出 m 的构造函数，便于注册到 Registry
func (m *MockCheckingPoint) Constructor() checkpoint.Constructor {
	return func(checkpoint.Params) (checkpoint.CheckingPoint, error) {
		return m, nil
	}
}

// --- MockFetchingCheckingPoint ---

// MockFetchingCheckingPoint 带数据拉取能力的检查点
type MockFetchingCheckingPoint struct {
	*MockCheckingPoint

	fetch      func(ctx context.Context) ([]types.MonitoringData, error)
	fetchCalls int
}

// NewMockFetchingCheckingPoint 创建拉取固定条目的检查点
func NewMockFetchingCheckingPoint(name string, items ...types.MonitoringData) *MockFetchingCheckingPoint {
	return &MockFetchingCheckingPoint{
		MockCheckingPoint: NewMockCheckingPoint(name),
		fetch: func(context.Context) ([]types.MonitoringData, error) {
			return items, nil
		},
	}
}

// WithFetchError 拉取总是返回 err
func (m *MockFetchingCheckingPoint) WithFetchError(err error) *MockFetchingCheckingPoint {
	m.fetch = func(context.Context) ([]types.MonitoringData, error) { return nil, err }
	return m
}

// WithFetchFunc 设置自定义拉取函数
func (m *MockFetchingCheckingPoint) WithFetchFunc(fn func(ctx context.Context) ([]types.MonitoringData, error)) *MockFetchingCheckingPoint {
	m.fetch = fn
	return m
}

// FetchData implements checkpoint.DataFetcher.
func (m *MockFetchingCheckingPoint) FetchData(ctx context.Context) ([]types.MonitoringData, error) {
	m.mu.Lock()
	m.fetchCalls++
	m.mu.Unlock()
	m.log.Record("fetch:%s", m.name)
	return m.fetch(ctx)
}

// FetchCalls 返回 FetchData 调用次数
func (m *MockFetchingCheckingPoint) FetchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

// Constructor 返回总是构造出 m 的构造函数
func (m *MockFetchingCheckingPoint) Constructor() checkpoint.Constructor {
	return func(checkpoint.Params) (checkpoint.CheckingPoint, error) {
		return m, nil
	}
}
