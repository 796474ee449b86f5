// Package monitor 实现监控循环：拉取数据、按检查点顺序评估每个条目、
// 执行即时动作与 AI 子执行，然后休眠到下一次循环。
//
// 每个外部交互都经过 step.Runner，带超时、重试与可选的步骤日志重放。
// 除初始化失败外，所有错误都被限制在数据源、检查点或单个动作范围内。
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/monitorflow/config"
	"github.com/BaSui01/monitorflow/internal/events"
	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"github.com/BaSui01/monitorflow/scheduler/retry"
	"github.com/BaSui01/monitorflow/scheduler/step"
	"github.com/BaSui01/monitorflow/scheduler/store"
	"github.com/BaSui01/monitorflow/types"
	"go.uber.org/zap"
)

// 步骤名
const (
	StepFetch    = "fetch"
	StepEvaluate = "evaluate"
	StepAct      = "act"
)

// 未配置时使用的步骤超时
const (
	DefaultFetchTimeout      = 5 * time.Minute
	DefaultEvaluationTimeout = 30 * time.Second
	DefaultActionTimeout     = 10 * time.Minute
)

const (
	maxErrorBackoff = 60 * time.Second
	persistTimeout  = 5 * time.Second
)

// ActionDispatcher 执行即时动作
type ActionDispatcher interface {
	Execute(ctx context.Context, action types.Action) (types.ActionResult, error)
}

// AIExecutor 运行 AI 子执行，失败体现在结果中
type AIExecutor interface {
	Execute(ctx context.Context, action types.AIAction, item types.MonitoringData, result types.CheckResult) types.AIWorkflowResult
}

// Recorder 循环指标
type Recorder interface {
	RecordCycle(status string, duration time.Duration, items int)
	RecordFetch(source, status string, items int, duration time.Duration)
	RecordEvaluation(checkpoint, result string, duration time.Duration)
	RecordError(class, checkpoint string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCycle(string, time.Duration, int)         {}
func (nopRecorder) RecordFetch(string, string, int, time.Duration) {}
func (nopRecorder) RecordEvaluation(string, string, time.Duration) {}
func (nopRecorder) RecordError(string, string)                     {}

// Runtime 监控循环依赖的全部组件，由调用方组装后注入 New
type Runtime struct {
	Registry   *checkpoint.Registry
	Runner     *step.Runner
	Actions    ActionDispatcher
	AI         AIExecutor
	Store      store.Store
	Publisher  events.Publisher
	Recorder   Recorder
	Logger     *zap.Logger
	Steps      config.StepsConfig
	JournalTTL time.Duration
	// Sleep 循环间隔等待，测试中可替换
	Sleep retry.SleepFunc
}

// State 循环状态
type State string

const (
	StateIdle        State = "idle"
	StateStarting    State = "starting"
	StateFetching    State = "fetching"
	StateDispatching State = "dispatching"
	StateSleeping    State = "sleeping"
	StateStopped     State = "stopped"
)

// Status 循环状态快照
type Status struct {
	Monitor     string       `json:"monitor"`
	State       State        `json:"state"`
	Started     bool         `json:"started"`
	Cycles      int64        `json:"cycles"`
	FailedCount int64        `json:"failed_cycles"`
	LastCycle   *CycleReport `json:"last_cycle,omitempty"`
	NextCycleAt *time.Time   `json:"next_cycle_at,omitempty"`
}

// CheckpointInfo 已解析检查点的描述
type CheckpointInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	StopOnMatch bool   `json:"stop_on_match"`
	Fetches     bool   `json:"fetches_data"`
}

type policies struct {
	fetch, evaluate, act                      retry.Policy
	fetchTimeout, evaluateTimeout, actTimeout time.Duration
}

// Monitor 监控循环
type Monitor struct {
	cfg      config.MonitorConfig
	points   []checkpoint.CheckingPoint
	runner   *step.Runner
	actions  ActionDispatcher
	ai       AIExecutor
	store    store.Store
	events   events.Publisher
	recorder Recorder
	logger   *zap.Logger
	policies policies
	ttl      time.Duration
	sleep    retry.SleepFunc

	mu     sync.RWMutex
	status Status
}

// New 校验配置并按声明顺序解析检查点。
// 返回的错误都是 FATAL 级别，调用方应终止进程。
func New(cfg config.MonitorConfig, rt Runtime) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fatalError("invalid monitor config", err)
	}
	if rt.Registry == nil {
		return nil, fatalError("checking point registry is required", nil)
	}
	if rt.Actions == nil {
		return nil, fatalError("action dispatcher is required", nil)
	}
	if rt.AI == nil {
		return nil, fatalError("ai executor is required", nil)
	}

	logger := rt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "monitor"), zap.String("monitor", cfg.Name))

	points, err := rt.Registry.AllEnabled(cfg)
	if err != nil {
		return nil, fatalError("resolve checking points", err)
	}

	pol, err := buildPolicies(rt.Steps)
	if err != nil {
		return nil, fatalError("invalid step retry config", err)
	}

	m := &Monitor{
		cfg:      cfg,
		points:   points,
		runner:   rt.Runner,
		actions:  rt.Actions,
		ai:       rt.AI,
		store:    rt.Store,
		events:   rt.Publisher,
		recorder: rt.Recorder,
		logger:   logger,
		policies: pol,
		ttl:      rt.JournalTTL,
		sleep:    rt.Sleep,
		status:   Status{Monitor: cfg.Name, State: StateIdle},
	}
	if m.runner == nil {
		m.runner = step.NewRunner(logger)
	}
	if m.events == nil {
		m.events = events.Nop{}
	}
	if m.recorder == nil {
		m.recorder = nopRecorder{}
	}
	if m.sleep == nil {
		m.sleep = retry.Sleep
	}

	logger.Info("monitor initialized",
		zap.Int("checking_points", len(points)),
		zap.Duration("interval", cfg.Interval()),
		zap.Int("max_concurrent_ai_actions", cfg.AIConcurrency()))
	return m, nil
}

func buildPolicies(c config.StepsConfig) (policies, error) {
	var (
		p   policies
		err error
	)
	if p.fetch, err = retry.FromConfig(c.Default, retry.DefaultPolicy()); err != nil {
		return p, err
	}
	if p.evaluate, err = retry.FromConfig(c.Evaluation, retry.EvaluationPolicy()); err != nil {
		return p, err
	}
	if p.act, err = retry.FromConfig(c.Action, retry.ActionPolicy()); err != nil {
		return p, err
	}
	p.fetchTimeout = orDefault(c.FetchTimeout, DefaultFetchTimeout)
	p.evaluateTimeout = orDefault(c.EvaluationTimeout, DefaultEvaluationTimeout)
	p.actTimeout = orDefault(c.ActionTimeout, DefaultActionTimeout)
	return p, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Name 监控名称
func (m *Monitor) Name() string {
	return m.cfg.Name
}

// Checkpoints 按评估顺序返回已解析的检查点
func (m *Monitor) Checkpoints() []CheckpointInfo {
	out := make([]CheckpointInfo, 0, len(m.points))
	for _, cp := range m.points {
		_, fetches := cp.(checkpoint.DataFetcher)
		out = append(out, CheckpointInfo{
			Name:        cp.Name(),
			Type:        string(cp.Type()),
			StopOnMatch: cp.StopOnMatch(),
			Fetches:     fetches,
		})
	}
	return out
}

// Status 返回状态快照
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.status
	if s.LastCycle != nil {
		last := *s.LastCycle
		s.LastCycle = &last
	}
	if s.NextCycleAt != nil {
		next := *s.NextCycleAt
		s.NextCycleAt = &next
	}
	return s
}

// Started 循环是否已进入运行状态
func (m *Monitor) Started() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Started
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.status.State = s
	if s != StateSleeping {
		m.status.NextCycleAt = nil
	}
	m.mu.Unlock()
}

func (m *Monitor) finishCycle(report CycleReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Cycles++
	if !report.Success {
		m.status.FailedCount++
	}
	m.status.LastCycle = &report
}

func (m *Monitor) sleepUntil(ctx context.Context, d time.Duration) error {
	next := time.Now().Add(d)
	m.mu.Lock()
	m.status.State = StateSleeping
	m.status.NextCycleAt = &next
	m.mu.Unlock()
	return m.sleep(ctx, d)
}

func (m *Monitor) publish(ctx context.Context, typ events.Type, data map[string]any) {
	e := events.Event{Type: typ, Data: data}
	e.CycleID, _ = types.CycleID(ctx)
	e.ItemID, _ = types.ItemID(ctx)
	e.Checkpoint, _ = types.Checkpoint(ctx)
	m.events.Publish(e)
}
