// Package step 实现步骤执行器：每个外部交互（拉取、评估、动作）都作为一个
// 有超时、有重试、可按步骤键重放的步骤运行。
package step

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/monitorflow/scheduler/journal"
	"github.com/BaSui01/monitorflow/scheduler/retry"
	"github.com/BaSui01/monitorflow/types"
)

const instrumentationName = "github.com/BaSui01/monitorflow/scheduler/step"

// Step 描述一次步骤调用
type Step struct {
	// Name 步骤名，如 fetch、evaluate、act
	Name string
	// Timeout 单次尝试的超时，<= 0 表示不限制
	Timeout time.Duration
	// Policy 重试策略
	Policy retry.Policy
	// Key 确定性步骤键，为空时不做重放
	Key string
	// TTL 成功结果在日志中的保留时间
	TTL time.Duration
}

// Func 步骤函数，ctx 携带单次尝试的超时
type Func func(ctx context.Context) (any, error)

// Result 步骤结果
type Result struct {
	Value    any
	Raw      json.RawMessage
	Attempts int
	Duration time.Duration
	Replayed bool
}

// Recorder 步骤指标记录器
type Recorder interface {
	RecordStep(step, status string, attempts int, duration time.Duration)
	RecordStepReplay(step string)
}

// PanicError 步骤函数中的 panic
type PanicError struct {
	Step  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in step %s: %v", e.Step, e.Value)
}

// Runner 步骤执行器，可被多个 goroutine 共享
type Runner struct {
	logger   *zap.Logger
	journal  journal.Journal
	recorder Recorder
	tracer   trace.Tracer
	sleep    retry.SleepFunc
}

// Option 执行器选项
type Option func(*Runner)

// WithJournal 启用按步骤键重放
func WithJournal(j journal.Journal) Option {
	return func(r *Runner) { r.journal = j }
}

// WithRecorder 设置指标记录器
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithTracer 设置 tracer，默认使用全局 TracerProvider
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithSleep 替换重试等待实现
func WithSleep(fn retry.SleepFunc) Option {
	return func(r *Runner) { r.sleep = fn }
}

// NewRunner 创建步骤执行器
func NewRunner(logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		logger: logger.With(zap.String("component", "step_runner")),
		sleep:  retry.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(instrumentationName)
	}
	return r
}

// Journal 返回配置的步骤日志，未配置时为 nil
func (r *Runner) Journal() journal.Journal {
	return r.journal
}

// Run 执行步骤
// 每次尝试在 Timeout 内完成，失败后按 Policy 退避重试，调用次数不超过 MaximumAttempts
// 最终失败时返回以步骤名包装的最后一个错误
func (r *Runner) Run(ctx context.Context, s Step, fn Func) (*Result, error) {
	fields := append(LogFields(ctx), zap.String("step", s.Name))
	if s.Key != "" {
		fields = append(fields, zap.String("key", shortKey(s.Key)))
	}
	log := r.logger.With(fields...)

	if res, ok := r.replay(ctx, s, log); ok {
		return res, nil
	}

	ctx, span := r.tracer.Start(ctx, "step."+s.Name, trace.WithAttributes(spanAttributes(ctx, s)...))
	defer span.End()

	log.Debug("step started",
		zap.Duration("timeout", s.Timeout),
		zap.Int("max_attempts", s.Policy.MaximumAttempts),
	)

	start := time.Now()
	retryer := retry.NewRetryer(s.Policy, log, retry.WithSleep(r.sleep),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("step attempt failed",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
		}),
	)
	value, attempts, err := retryer.DoWithAttempts(ctx, func(ctx context.Context, _ int) (any, error) {
		return r.attempt(ctx, s, fn)
	})
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Int("step.attempts", attempts))
	res := &Result{Value: value, Attempts: attempts, Duration: elapsed}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("step failed",
			zap.Int("attempts", attempts),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		r.record(s.Name, "failed", attempts, elapsed)
		return res, fmt.Errorf("step %s: %w", s.Name, err)
	}

	span.SetStatus(codes.Ok, "")
	log.Debug("step completed",
		zap.Int("attempts", attempts),
		zap.Duration("duration", elapsed),
	)
	r.record(s.Name, "success", attempts, elapsed)
	r.commit(ctx, s, res, log)
	return res, nil
}

// attempt 单次尝试：fn 在独立 goroutine 中运行，超时后立即返回
// fn 忽略 ctx 时其 goroutine 会在后台结束，结果被丢弃
func (r *Runner) attempt(ctx context.Context, s Step, fn Func) (any, error) {
	actx := ctx
	cancel := func() {}
	if s.Timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, s.Timeout)
	}
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: &PanicError{Step: s.Name, Value: rec, Stack: debug.Stack()}}
			}
		}()
		v, err := fn(actx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-actx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.WrapError(types.ErrTimeout,
			fmt.Sprintf("step %s timed out after %s", s.Name, s.Timeout),
			context.DeadlineExceeded).WithRetryable(true)
	}
}

// replay 命中日志时直接返回记录的结果
func (r *Runner) replay(ctx context.Context, s Step, log *zap.Logger) (*Result, bool) {
	if s.Key == "" || r.journal == nil {
		return nil, false
	}
	entry, err := r.journal.Lookup(ctx, s.Key)
	if err != nil {
		if !errors.Is(err, journal.ErrNotFound) {
			log.Warn("journal lookup failed, executing step", zap.Error(err))
		}
		return nil, false
	}

	log.Info("step replayed from journal",
		zap.Time("completed_at", entry.CompletedAt),
		zap.Int("attempts", entry.Attempts),
	)
	if r.recorder != nil {
		r.recorder.RecordStepReplay(s.Name)
	}
	return &Result{
		Raw:      entry.Result,
		Attempts: entry.Attempts,
		Replayed: true,
	}, true
}

// commit 记录成功步骤，失败只记日志
func (r *Runner) commit(ctx context.Context, s Step, res *Result, log *zap.Logger) {
	if s.Key == "" || r.journal == nil {
		return
	}
	raw, err := json.Marshal(res.Value)
	if err != nil {
		log.Warn("step result is not serializable, skipping journal", zap.Error(err))
		return
	}
	res.Raw = raw
	entry := journal.Entry{
		Key:      s.Key,
		StepName: s.Name,
		Status:   journal.StatusCompleted,
		Result:   raw,
		Attempts: res.Attempts,
	}
	// 步骤已完成，记录不应被调用方的取消打断
	if err := r.journal.Record(context.WithoutCancel(ctx), entry, s.TTL); err != nil {
		log.Warn("journal record failed", zap.Error(err))
	}
}

func (r *Runner) record(step, status string, attempts int, d time.Duration) {
	if r.recorder != nil {
		r.recorder.RecordStep(step, status, attempts, d)
	}
}

// LogFields 把 context 中的关联标识转换为 zap 字段
func LogFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)
	if v, ok := types.TraceID(ctx); ok {
		fields = append(fields, zap.String("trace_id", v))
	}
	if v, ok := types.CycleID(ctx); ok {
		fields = append(fields, zap.String("cycle_id", v))
	}
	if v, ok := types.ItemID(ctx); ok {
		fields = append(fields, zap.String("item_id", v))
	}
	if v, ok := types.Checkpoint(ctx); ok {
		fields = append(fields, zap.String("checking_point", v))
	}
	return fields
}

func spanAttributes(ctx context.Context, s Step) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("step.name", s.Name),
		attribute.Int64("step.timeout_ms", s.Timeout.Milliseconds()),
	}
	for k, v := range types.Correlation(ctx) {
		attrs = append(attrs, attribute.String("monitorflow."+k, v))
	}
	return attrs
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
