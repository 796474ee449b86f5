package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/BaSui01/monitorflow/internal/events"
	"github.com/BaSui01/monitorflow/scheduler/journal"
	"github.com/BaSui01/monitorflow/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CycleErrorBackoff 循环失败后的等待时间：min(60s, interval/4)
func CycleErrorBackoff(interval time.Duration) time.Duration {
	return min(maxErrorBackoff, interval/4)
}

// Run 运行监控循环直到 ctx 被取消。
// 循环失败只缩短下一次等待，取消时在当前步骤结束后返回 nil。
func (m *Monitor) Run(ctx context.Context) error {
	if !m.cfg.Enabled {
		m.logger.Warn("monitor disabled, loop not started")
		return nil
	}

	m.mu.Lock()
	m.status.State = StateStarting
	m.status.Started = true
	m.mu.Unlock()
	defer m.setState(StateStopped)

	interval := m.cfg.Interval()
	m.logger.Info("monitoring loop started",
		zap.Duration("interval", interval),
		zap.Int("checking_points", len(m.points)))

	for {
		report, err := m.RunCycle(ctx)
		if ctx.Err() != nil {
			m.logger.Info("monitoring loop stopped", zap.Int64("cycles", m.Status().Cycles))
			return nil
		}
		if types.IsFatal(err) {
			return err
		}

		wait := interval
		if err != nil {
			wait = CycleErrorBackoff(interval)
			m.logger.Error("cycle failed",
				zap.String("cycle_id", report.CycleID),
				zap.Duration("backoff", wait),
				zap.Error(err))
		}

		if err := m.sleepUntil(ctx, wait); err != nil {
			m.logger.Info("monitoring loop stopped", zap.Int64("cycles", m.Status().Cycles))
			return nil
		}
	}
}

// RunOnce 只运行一次循环
func (m *Monitor) RunOnce(ctx context.Context) (CycleReport, error) {
	m.mu.Lock()
	m.status.Started = true
	m.mu.Unlock()
	defer m.setState(StateIdle)
	return m.RunCycle(ctx)
}

// RunCycle 执行一次完整的拉取与分发，返回的错误属于 CYCLE 级别
// 上一个循环未正常结束（进程崩溃或被取消）时沿用它的 cycle_id，已完成的动作从步骤日志重放。
func (m *Monitor) RunCycle(ctx context.Context) (report CycleReport, err error) {
	parent := ctx
	report = CycleReport{StartedAt: time.Now().UTC()}
	report.CycleID, report.Resumed = m.beginCycle(ctx)
	ctx = types.WithCycleID(ctx, report.CycleID)
	if m.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.CycleTimeout)
		defer cancel()
	}
	log := m.logger.With(zap.String("cycle_id", report.CycleID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("cycle panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = cycleError(fmt.Sprintf("panic: %v", r), nil)
		}
		m.completeCycle(ctx, &report, err, log)
		if parent.Err() == nil {
			m.endCycle(ctx, log)
		}
	}()

	if report.Resumed {
		log.Info("resuming interrupted cycle")
	}
	log.Info("cycle started")
	m.publish(ctx, events.CycleStarted, nil)

	m.setState(StateFetching)
	fetched, err := m.Fetch(ctx)
	report.ItemsFetched = len(fetched.Items)
	report.SourceErrors = len(fetched.SourceErrors)
	if err != nil {
		return report, err
	}

	m.setState(StateDispatching)
	for _, item := range fetched.Items {
		if cerr := ctx.Err(); cerr != nil {
			return report, cycleError("dispatch stage interrupted", cerr)
		}
		report.add(m.ProcessItem(ctx, item))
	}
	if cerr := ctx.Err(); cerr != nil {
		return report, cycleError("dispatch stage interrupted", cerr)
	}
	return report, nil
}

// openCycleKey 未结束循环的日志键
func (m *Monitor) openCycleKey() string {
	key, _ := journal.StepKey("open_cycle", m.cfg.Name)
	return key
}

// beginCycle 返回本次循环的 ID；日志中存在未结束的循环时复用其 ID
func (m *Monitor) beginCycle(ctx context.Context) (string, bool) {
	j := m.runner.Journal()
	if j == nil {
		return uuid.NewString(), false
	}
	key := m.openCycleKey()
	if entry, err := j.Lookup(ctx, key); err == nil {
		var id string
		if json.Unmarshal(entry.Result, &id) == nil && id != "" {
			return id, true
		}
	}

	id := uuid.NewString()
	raw, _ := json.Marshal(id)
	if err := j.Record(ctx, journal.Entry{Key: key, StepName: "cycle", Result: raw}, m.ttl); err != nil {
		m.logger.Warn("failed to record open cycle", zap.String("cycle_id", id), zap.Error(err))
	}
	return id, false
}

// endCycle 循环结束后清除标记，下一个循环使用新的 ID
func (m *Monitor) endCycle(ctx context.Context, log *zap.Logger) {
	j := m.runner.Journal()
	if j == nil {
		return
	}
	if err := j.Forget(context.WithoutCancel(ctx), m.openCycleKey()); err != nil && !errors.Is(err, journal.ErrNotFound) {
		log.Warn("failed to clear open cycle", zap.Error(err))
	}
}

// completeCycle 汇总、记录并持久化循环结果
func (m *Monitor) completeCycle(ctx context.Context, report *CycleReport, err error, log *zap.Logger) {
	report.CompletedAt = time.Now().UTC()
	report.DurationMs = report.CompletedAt.Sub(report.StartedAt).Milliseconds()
	report.Success = err == nil
	if err != nil {
		report.Error = err.Error()
	}
	duration := report.CompletedAt.Sub(report.StartedAt)

	fields := []zap.Field{
		zap.Int("items_fetched", report.ItemsFetched),
		zap.Int("items_processed", report.ItemsProcessed),
		zap.Int("matches", report.Matches),
		zap.Int("actions_executed", report.ActionsExecuted),
		zap.Int("actions_failed", report.ActionsFailed),
		zap.Int("ai_executed", report.AIExecuted),
		zap.Int("ai_failed", report.AIFailed),
		zap.Int("source_errors", report.SourceErrors),
		zap.Int64("duration_ms", report.DurationMs),
	}
	data := map[string]any{
		"items_fetched":   report.ItemsFetched,
		"items_processed": report.ItemsProcessed,
		"matches":         report.Matches,
		"duration_ms":     report.DurationMs,
	}

	if err != nil {
		m.recorder.RecordCycle("failed", duration, report.ItemsProcessed)
		m.recorder.RecordError(string(types.ErrCycle), "")
		data["error"] = report.Error
		m.publish(ctx, events.CycleFailed, data)
	} else {
		m.recorder.RecordCycle("success", duration, report.ItemsProcessed)
		log.Info("cycle completed", fields...)
		m.publish(ctx, events.CycleCompleted, data)
	}

	m.finishCycle(*report)

	if m.store != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		if serr := m.store.SaveCycle(pctx, report.summary(m.cfg.Name)); serr != nil {
			log.Warn("failed to persist cycle summary", zap.Error(serr))
		}
	}
}
