// Package aiexec 以隔离的子执行方式运行 AI 动作。
//
// 每个 AIAction 拥有独立的截止时间与重试策略，失败被完整记录在
// AIWorkflowResult 中，永远不会向调用方返回错误。
package aiexec

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/BaSui01/monitorflow/internal/events"
	"github.com/BaSui01/monitorflow/scheduler/orchestrator"
	"github.com/BaSui01/monitorflow/scheduler/retry"
	"github.com/BaSui01/monitorflow/scheduler/store"
	"github.com/BaSui01/monitorflow/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const persistTimeout = 5 * time.Second

// Recorder AI 子执行指标
type Recorder interface {
	RecordAIExecution(workflow, status string, duration time.Duration, attempts int)
}

type nopRecorder struct{}

func (nopRecorder) RecordAIExecution(string, string, time.Duration, int) {}

// Executor AI 子执行器，可被多个 goroutine 共享
type Executor struct {
	orchestrator orchestrator.Orchestrator
	store        store.Store
	publisher    events.Publisher
	recorder     Recorder
	logger       *zap.Logger
	sleep        retry.SleepFunc
	now          func() time.Time
	dryRun       bool
	debugMode    bool
}

// Option 配置 Executor
type Option func(*Executor)

// WithStore 持久化每个结果
func WithStore(s store.Store) Option {
	return func(e *Executor) { e.store = s }
}

// WithPublisher 发布 ai_execution_completed 事件
func WithPublisher(p events.Publisher) Option {
	return func(e *Executor) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(e *Executor) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithSleep 替换重试等待实现
func WithSleep(fn retry.SleepFunc) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithDryRun 以 dry-run 模式调用工作流
func WithDryRun(on bool) Option {
	return func(e *Executor) { e.dryRun = on }
}

// WithDebug 在输入中打开 debug_mode
func WithDebug(on bool) Option {
	return func(e *Executor) { e.debugMode = on }
}

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New 创建 AI 子执行器
func New(orch orchestrator.Orchestrator, logger *zap.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		orchestrator: orch,
		publisher:    events.Nop{},
		recorder:     nopRecorder{},
		logger:       logger.With(zap.String("component", "ai_executor")),
		sleep:        retry.Sleep,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute 运行单个 AI 动作，结果总满足 AIWorkflowResult.Consistent
func (e *Executor) Execute(ctx context.Context, action types.AIAction, item types.MonitoringData, check types.CheckResult) (res types.AIWorkflowResult) {
	started := e.now()
	res = types.AIWorkflowResult{
		ExecutionID:      uuid.NewString(),
		WorkflowName:     action.WorkflowName,
		ActionName:       action.Name,
		CheckpointName:   action.CheckpointName,
		ItemID:           item.ID,
		StartedAt:        started,
		ApprovalRequired: action.ApprovalRequired,
		ActionsTaken:     []string{},
		DataSummary: map[string]any{
			"item_id":    item.ID,
			"item_type":  string(item.Type),
			"source":     item.Source,
			"confidence": check.Confidence,
			"reason":     check.Reason,
		},
	}
	if res.CheckpointName == "" {
		res.CheckpointName = check.CheckpointName
	}

	log := e.logger.With(
		zap.String("execution_id", res.ExecutionID),
		zap.String("workflow", action.WorkflowName),
		zap.String("action", action.Name),
		zap.String("item_id", item.ID),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("ai execution panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			fail(&res, types.NewError(types.ErrFatal, fmt.Sprintf("panic: %v", r)), nil)
		}
		e.finish(ctx, &res, log)
	}()

	if err := action.Validate(); err != nil {
		fail(&res, err, nil)
		return res
	}
	if e.orchestrator == nil {
		fail(&res, types.NewError(types.ErrInvalidInput, "no orchestrator configured"), nil)
		return res
	}

	timeout := action.Timeout()
	childCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	input := types.AIWorkflowInput{
		AIAction:         action,
		DataItem:         item,
		CheckResult:      check,
		ExecutionContext: executionContext(ctx, res.ExecutionID),
		DryRun:           e.dryRun,
		DebugMode:        e.debugMode,
	}

	var last *orchestrator.Response
	retryer := retry.NewRetryer(
		retry.AIPolicy(action.RetryAttempts, action.RetryDelay()),
		log,
		retry.WithSleep(e.sleep),
	)
	_, attempts, err := retryer.DoWithAttempts(childCtx, func(ctx context.Context, _ int) (any, error) {
		remaining := timeout
		if dl, ok := ctx.Deadline(); ok {
			remaining = time.Until(dl)
		}
		resp, err := e.orchestrator.RunWorkflow(ctx, action.WorkflowName, input, remaining)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, types.NewError(types.ErrUpstream, "orchestrator returned an empty response")
		}
		last = resp
		if !resp.Success {
			msg := resp.Error
			if msg == "" {
				msg = "workflow reported failure"
			}
			// 工作流自身判定失败，重试不会改变结论
			return nil, retry.Permanent(fmt.Errorf("%w: %s", orchestrator.ErrWorkflowFailed, msg))
		}
		return resp, nil
	})
	res.Attempts = attempts

	if err != nil {
		if errors.Is(childCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = types.WrapError(types.ErrTimeout, fmt.Sprintf("workflow %s timed out after %s", action.WorkflowName, timeout), err)
		}
		fail(&res, err, last)
		return res
	}

	res.Success = true
	res.Output = last.Output
	res.ActionsTaken = mergeActions(action.Name, last.ActionsTaken)
	res.ApprovalGranted = !action.ApprovalRequired
	if last.ApprovalGranted != nil {
		res.ApprovalGranted = *last.ApprovalGranted
	}
	if last.RunID != "" {
		res.DataSummary["run_id"] = last.RunID
	}
	return res
}

// finish 补全耗时，然后记录、持久化与发布
func (e *Executor) finish(ctx context.Context, res *types.AIWorkflowResult, log *zap.Logger) {
	res.CompletedAt = e.now()
	res.DurationMs = res.CompletedAt.Sub(res.StartedAt).Milliseconds()
	duration := res.CompletedAt.Sub(res.StartedAt)

	status := "success"
	if !res.Success {
		status = "failed"
	}
	e.recorder.RecordAIExecution(res.WorkflowName, status, duration, res.Attempts)

	if res.Success {
		log.Info("ai execution completed",
			zap.Int("attempts", res.Attempts),
			zap.Int64("duration_ms", res.DurationMs),
			zap.Strings("actions_taken", res.ActionsTaken))
	} else {
		log.Warn("ai execution failed",
			zap.Int("attempts", res.Attempts),
			zap.Int64("duration_ms", res.DurationMs),
			zap.String("error", res.ErrorMessage))
	}

	if e.store != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		if err := e.store.SaveAIResult(pctx, *res); err != nil {
			log.Warn("failed to persist ai result", zap.Error(err))
		}
		cancel()
	}

	cycleID, _ := types.CycleID(ctx)
	e.publisher.Publish(events.Event{
		Type:       events.AIExecutionCompleted,
		CycleID:    cycleID,
		ItemID:     res.ItemID,
		Checkpoint: res.CheckpointName,
		Data: map[string]any{
			"execution_id": res.ExecutionID,
			"workflow":     res.WorkflowName,
			"action":       res.ActionName,
			"success":      res.Success,
			"attempts":     res.Attempts,
			"duration_ms":  res.DurationMs,
			"error":        res.ErrorMessage,
		},
	})
}

// fail 将结果标记为失败，错误消息保证非空
func fail(res *types.AIWorkflowResult, err error, resp *orchestrator.Response) {
	res.Success = false
	res.ApprovalGranted = false
	res.ErrorMessage = err.Error()
	if res.ErrorMessage == "" {
		res.ErrorMessage = "ai execution failed"
	}
	details := map[string]any{"retryable": types.IsRetryable(err)}
	if code := types.GetErrorCode(err); code != "" {
		details["code"] = string(code)
	}
	if resp != nil {
		if resp.RunID != "" {
			details["run_id"] = resp.RunID
		}
		if len(resp.ActionsTaken) > 0 {
			details["partial_actions"] = resp.ActionsTaken
		}
		if len(resp.Output) > 0 {
			res.Output = resp.Output
		}
	}
	res.ErrorDetails = details
}

// mergeActions 动作名在首位，其后是编排服务报告的动作，去重
func mergeActions(first string, reported []string) []string {
	out := make([]string, 0, len(reported)+1)
	out = append(out, first)
	seen := map[string]bool{first: true}
	for _, a := range reported {
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func executionContext(ctx context.Context, executionID string) map[string]any {
	out := map[string]any{"execution_id": executionID}
	for k, v := range types.Correlation(ctx) {
		out[k] = v
	}
	return out
}
