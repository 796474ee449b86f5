// Package actions 执行检查点匹配后的即时动作：通知、状态更新、API 调用与 webhook。
//
// Dispatcher 按动作类型路由，每种类型独立限流，出站 HTTP 按目标主机熔断。
// 动作可能被 Step Runner 重试，执行器须容忍至少一次投递。
package actions

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/BaSui01/monitorflow/config"
	"github.com/BaSui01/monitorflow/internal/circuitbreaker"
	"github.com/BaSui01/monitorflow/internal/httpx"
	"github.com/BaSui01/monitorflow/scheduler/retry"
	"github.com/BaSui01/monitorflow/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Executor 单一动作类型的执行器
type Executor interface {
	Execute(ctx context.Context, params map[string]any) (types.ActionResult, error)
}

// ExecutorFunc 函数适配器
type ExecutorFunc func(ctx context.Context, params map[string]any) (types.ActionResult, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, params map[string]any) (types.ActionResult, error) {
	return f(ctx, params)
}

// Recorder 动作与熔断指标
type Recorder interface {
	RecordAction(actionType, status string, duration time.Duration)
	SetBreakerState(name string, state int)
}

type nopRecorder struct{}

func (nopRecorder) RecordAction(string, string, time.Duration) {}
func (nopRecorder) SetBreakerState(string, int)                {}

// Dispatcher 按类型路由即时动作
type Dispatcher struct {
	executors map[types.ActionType]Executor
	limiters  map[types.ActionType]*rate.Limiter
	breakers  *circuitbreaker.Group
	recorder  Recorder
	logger    *zap.Logger

	cfg    config.ActionsConfig
	mailer Mailer
}

// Option 配置 Dispatcher
type Option func(*Dispatcher)

// WithExecutor 替换或新增某类型的执行器
func WithExecutor(t types.ActionType, e Executor) Option {
	return func(d *Dispatcher) { d.executors[t] = e }
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithMailer 替换邮件发送实现
func WithMailer(m Mailer) Option {
	return func(d *Dispatcher) { d.mailer = m }
}

// NewDispatcher 创建 Dispatcher 并装配内置执行器
func NewDispatcher(cfg config.ActionsConfig, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		executors: make(map[types.ActionType]Executor),
		limiters:  make(map[types.ActionType]*rate.Limiter),
		recorder:  nopRecorder{},
		logger:    logger.With(zap.String("component", "actions")),
		cfg:       cfg,
	}

	// 先应用选项以拿到 recorder 与 mailer
	for _, opt := range opts {
		opt(d)
	}

	d.breakers = circuitbreaker.NewGroup(circuitbreaker.Config{
		Threshold:    cfg.BreakerThreshold,
		ResetTimeout: cfg.BreakerTimeout,
		OnStateChange: func(name string, _, to circuitbreaker.State) {
			d.recorder.SetBreakerState(name, int(to))
		},
	}, d.logger)

	caller := &httpCaller{
		client:   httpx.NewClient(cfg.HTTPTimeout),
		breakers: d.breakers,
	}
	if d.mailer == nil && cfg.SMTP.Host != "" {
		d.mailer = NewSMTPMailer(cfg.SMTP)
	}

	builtin := map[types.ActionType]Executor{
		types.ActionNotification: NewNotificationExecutor(cfg, caller, d.mailer),
		types.ActionStatusUpdate: NewStatusUpdateExecutor(cfg, caller),
		types.ActionAPICall:      NewAPICallExecutor(caller),
		types.ActionWebhook:      NewWebhookExecutor(cfg.WebhookSecret, caller),
	}
	for t, e := range builtin {
		if _, overridden := d.executors[t]; !overridden {
			d.executors[t] = e
		}
	}

	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	for t := range d.executors {
		d.limiters[t] = rate.NewLimiter(limit, burst)
	}
	return d
}

// Types 已注册的动作类型
func (d *Dispatcher) Types() []types.ActionType {
	out := make([]types.ActionType, 0, len(d.executors))
	for t := range d.executors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BreakerStates 各目标主机的熔断状态
func (d *Dispatcher) BreakerStates() map[string]string {
	out := make(map[string]string)
	for name, s := range d.breakers.States() {
		out[name] = s.String()
	}
	return out
}

// Execute 执行单个动作。
// 未知类型返回失败结果与不可重试错误；参数错误、资源不存在与熔断打开同样不重试。
func (d *Dispatcher) Execute(ctx context.Context, action types.Action) (types.ActionResult, error) {
	start := time.Now()

	exec, ok := d.executors[action.Type]
	if !ok {
		msg := fmt.Sprintf("unknown action type: %s", action.Type)
		d.recorder.RecordAction(string(action.Type), "unknown", time.Since(start))
		d.logger.Warn("unknown action type",
			zap.String("type", string(action.Type)),
			zap.String("action", action.Name))
		return types.ActionResult{Success: false, Type: action.Type, Name: action.Name, Error: msg},
			retry.Permanent(types.NewError(types.ErrInvalidInput, msg))
	}

	if err := d.limiters[action.Type].Wait(ctx); err != nil {
		return types.ActionResult{Type: action.Type, Name: action.Name, Error: err.Error()},
			fmt.Errorf("rate limiter: %w", err)
	}

	params := action.Params
	if params == nil {
		params = map[string]any{}
	}
	result, err := exec.Execute(ctx, params)

	result.Type = action.Type
	result.Name = action.Name
	result.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Success = false
		if result.Error == "" {
			result.Error = err.Error()
		}
	}
	d.recorder.RecordAction(string(action.Type), statusLabel(result.Success), time.Since(start))

	fields := []zap.Field{
		zap.String("type", string(action.Type)),
		zap.String("action", action.Name),
		zap.Bool("success", result.Success),
		zap.Int64("duration_ms", result.DurationMs),
	}
	if err != nil {
		d.logger.Warn("action failed", append(fields, zap.Error(err))...)
		return result, classify(err)
	}
	if !result.Success {
		d.logger.Warn("action reported failure", append(fields, zap.String("error", result.Error))...)
		failure := types.NewError(types.ErrDispatch, result.Error)
		if result.StatusCode >= 400 && result.StatusCode < 500 && result.StatusCode != 429 {
			return result, retry.Permanent(failure)
		}
		return result, failure
	}
	d.logger.Debug("action executed", fields...)
	return result, nil
}

// classify 将不会因重试而成功的错误标记为永久错误
func classify(err error) error {
	switch types.GetErrorCode(err) {
	case types.ErrInvalidInput, types.ErrNotFound, types.ErrCircuitOpen:
		return retry.Permanent(err)
	}
	return err
}

func statusLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}

func invalid(format string, args ...any) error {
	return types.NewError(types.ErrInvalidInput, fmt.Sprintf(format, args...))
}
