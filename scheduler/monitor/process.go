package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/BaSui01/monitorflow/internal/events"
	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"github.com/BaSui01/monitorflow/scheduler/journal"
	"github.com/BaSui01/monitorflow/scheduler/step"
	"github.com/BaSui01/monitorflow/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProcessItem 按声明顺序让条目经过每个检查点。
// 每个检查点的失败都被限制在该检查点内；stop_on_match 的检查点命中后不再评估后续检查点。
func (m *Monitor) ProcessItem(ctx context.Context, item types.MonitoringData) ItemReport {
	ctx = types.WithItemID(ctx, item.ID)
	report := ItemReport{ItemID: item.ID, Points: make([]PointReport, 0, len(m.points))}

	m.logger.Debug("processing item", append(step.LogFields(ctx),
		zap.String("item_type", string(item.Type)),
		zap.String("source", item.Source))...)

	for _, cp := range m.points {
		if ctx.Err() != nil {
			break
		}
		pr := m.processPoint(ctx, cp, item)
		report.Points = append(report.Points, pr)
		if pr.Stopped {
			m.logger.Debug("stop_on_match, skipping remaining checking points",
				append(step.LogFields(ctx), zap.String("stopping_checking_point", cp.Name()))...)
			break
		}
	}
	return report
}

// processPoint 处理单个检查点，panic 与错误都在这里收敛
func (m *Monitor) processPoint(ctx context.Context, cp checkpoint.CheckingPoint, item types.MonitoringData) (pr PointReport) {
	name := cp.Name()
	ctx = types.WithCheckpoint(ctx, name)
	pr = PointReport{Checkpoint: name, Outcome: OutcomeSuccess}
	log := m.logger.With(step.LogFields(ctx)...)

	defer func() {
		if r := recover(); r != nil {
			err := dispatchError(name, item.ID, fmt.Sprintf("panic: %v", r), nil)
			log.Error("checking point panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			m.recorder.RecordError(string(types.ErrDispatch), name)
			pr.Outcome = OutcomeError
			pr.Errors = append(pr.Errors, err)
		}
	}()

	if !cp.CanHandle(item) {
		pr.Outcome = OutcomeSkip
		return pr
	}

	result := m.evaluate(ctx, cp, item, log)
	pr.Result = &result
	if result.ResultType == types.ResultError {
		pr.Outcome = OutcomeError
		pr.Errors = append(pr.Errors, evaluationError(name, item.ID, fmt.Errorf("%s", result.ErrorMessage)))
	}

	log.Info("checking point evaluated",
		zap.String("result_type", string(result.ResultType)),
		zap.Bool("should_act", result.ShouldAct),
		zap.Float64("confidence", result.Confidence))

	if !result.ShouldAct {
		return pr
	}

	m.publish(ctx, events.CheckpointMatched, map[string]any{
		"result_type": string(result.ResultType),
		"confidence":  result.Confidence,
		"reason":      result.Reason,
	})

	for i, action := range cp.Actions(item, result) {
		ar, err := m.act(ctx, cp, item, i, action, log)
		pr.Actions = append(pr.Actions, ar)
		if err != nil {
			pr.Outcome = OutcomeError
			pr.Errors = append(pr.Errors, err)
		}
	}

	aiResults, errs := m.runAIActions(ctx, cp, item, result, log)
	pr.AIResults = aiResults
	if len(errs) > 0 {
		pr.Outcome = OutcomeError
		pr.Errors = append(pr.Errors, errs...)
	}

	pr.Stopped = cp.StopOnMatch()
	return pr
}

// evaluate 评估失败或 panic 转换为 ERROR 结果，不触发任何动作
func (m *Monitor) evaluate(ctx context.Context, cp checkpoint.CheckingPoint, item types.MonitoringData, log *zap.Logger) types.CheckResult {
	name, typ := cp.Name(), string(cp.Type())
	start := time.Now()

	result, _, err := step.Do(ctx, m.runner, step.Step{
		Name:    StepEvaluate,
		Timeout: m.policies.evaluateTimeout,
		Policy:  m.policies.evaluate,
	}, func(ctx context.Context) (types.CheckResult, error) {
		return cp.Evaluate(ctx, item)
	})
	elapsed := time.Since(start)

	if err == nil {
		err = result.Validate()
	}
	if err != nil {
		log.Warn("evaluation failed", zap.Error(err))
		m.recorder.RecordError(string(types.ErrEvaluation), name)
		result = types.ErrorResult(name, typ, err)
	}
	result.Backfill(name, typ)
	result.EvaluationDurationMs = elapsed.Milliseconds()
	m.recorder.RecordEvaluation(name, string(result.ResultType), elapsed)
	return result
}

// act 以步骤方式执行单个即时动作，失败只放弃该动作
func (m *Monitor) act(ctx context.Context, cp checkpoint.CheckingPoint, item types.MonitoringData, index int, action types.Action, log *zap.Logger) (ar ActionReport, err error) {
	ar = ActionReport{Name: action.Name, Type: action.Type}
	log = log.With(zap.String("action_type", string(action.Type)), zap.String("action", action.Name))

	defer func() {
		if r := recover(); r != nil {
			err = dispatchError(cp.Name(), item.ID, fmt.Sprintf("panic in action %s: %v", action.Name, r), nil)
			ar.Result = types.ActionResult{Type: action.Type, Name: action.Name, Error: err.Error()}
			ar.Error = err.Error()
			log.Error("action panicked", zap.Any("panic", r))
			m.recorder.RecordError(string(types.ErrDispatch), cp.Name())
		}
	}()

	key := actionKey(ctx, cp.Name(), item, index, action)

	result, res, runErr := step.Do(ctx, m.runner, step.Step{
		Name:    StepAct,
		Timeout: action.Timeout(m.policies.actTimeout),
		Policy:  m.policies.act,
		Key:     key,
		TTL:     m.ttl,
	}, func(ctx context.Context) (types.ActionResult, error) {
		return m.actions.Execute(ctx, action)
	})
	if res != nil {
		ar.Attempts = res.Attempts
		ar.Replayed = res.Replayed
	}

	if runErr != nil {
		err = dispatchError(cp.Name(), item.ID, "action "+action.Name+" abandoned", runErr)
		ar.Result = types.ActionResult{Type: action.Type, Name: action.Name, Error: runErr.Error()}
		ar.Error = err.Error()
		log.Error("action failed", zap.Int("attempts", ar.Attempts), zap.Error(runErr))
		m.recorder.RecordError(string(types.ErrDispatch), cp.Name())
		m.publish(ctx, events.ActionExecuted, map[string]any{
			"type": string(action.Type), "action": action.Name, "success": false, "error": runErr.Error(),
		})
		return ar, err
	}

	ar.Result = result
	log.Info("immediate action executed",
		zap.Int("attempts", ar.Attempts),
		zap.Bool("replayed", ar.Replayed),
		zap.Bool("success", result.Success))
	m.publish(ctx, events.ActionExecuted, map[string]any{
		"type": string(action.Type), "action": action.Name, "success": result.Success, "replayed": ar.Replayed,
	})
	return ar, nil
}

// actionKey 即时动作的步骤键，作用域为一个循环。
// 同一循环内重放已完成的动作；下一个循环重新命中时动作照常执行。
// ctx 中没有 cycle_id 或 params 无法序列化时返回空键，不使用步骤日志。
func actionKey(ctx context.Context, checkpointName string, item types.MonitoringData, index int, action types.Action) string {
	cycleID, ok := types.CycleID(ctx)
	if !ok {
		return ""
	}
	key, err := journal.StepKey(cycleID, checkpointName, item.ID, item.Source,
		index, string(action.Type), action.Name, action.Params)
	if err != nil {
		return ""
	}
	return key
}

// runAIActions 校验并运行检查点产生的 AI 动作，并发数受 max_concurrent_ai_actions 限制。
// 全部子执行结束后才返回。
func (m *Monitor) runAIActions(ctx context.Context, cp checkpoint.CheckingPoint, item types.MonitoringData, result types.CheckResult, log *zap.Logger) ([]types.AIWorkflowResult, []error) {
	aiActions := cp.AfterProcess(item, result)
	if len(aiActions) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		errs    []error
		results = make([]*types.AIWorkflowResult, len(aiActions))
	)
	addErr := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		m.recorder.RecordError(string(types.ErrDispatch), cp.Name())
	}

	g := new(errgroup.Group)
	g.SetLimit(m.cfg.AIConcurrency())

	for i, action := range aiActions {
		alog := log.With(zap.String("ai_action", action.Name), zap.String("workflow", action.WorkflowName))
		if err := action.Validate(); err != nil {
			alog.Warn("invalid ai action, skipping", zap.Error(err))
			addErr(dispatchError(cp.Name(), item.ID, "invalid ai action "+action.Name, err))
			continue
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					alog.Error("ai execution panicked", zap.Any("panic", r))
					addErr(dispatchError(cp.Name(), item.ID, fmt.Sprintf("panic in ai action %s: %v", action.Name, r), nil))
				}
			}()
			res := m.ai.Execute(ctx, action, item, result)
			results[i] = &res
			if !res.Success {
				// 子执行已自行重试，这里只记录
				alog.Warn("ai execution failed",
					zap.String("execution_id", res.ExecutionID),
					zap.String("error", res.ErrorMessage))
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]types.AIWorkflowResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, errs
}
