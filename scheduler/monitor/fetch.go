package monitor

import (
	"context"
	"time"

	"github.com/BaSui01/monitorflow/internal/events"
	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"github.com/BaSui01/monitorflow/scheduler/step"
	"github.com/BaSui01/monitorflow/types"
	"go.uber.org/zap"
)

// Fetch 依次从每个具备拉取能力的检查点获取数据。
// 单个数据源失败只记录并跳过；只有循环 context 结束时才返回错误。
func (m *Monitor) Fetch(ctx context.Context) (FetchReport, error) {
	report := FetchReport{Items: []types.MonitoringData{}}

	for _, cp := range m.points {
		fetcher, ok := cp.(checkpoint.DataFetcher)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, cycleError("fetch stage interrupted", err)
		}

		source := cp.Name()
		sctx := types.WithCheckpoint(ctx, source)
		start := time.Now()

		items, _, err := step.Do(sctx, m.runner, step.Step{
			Name:    StepFetch,
			Timeout: m.policies.fetchTimeout,
			Policy:  m.policies.fetch,
		}, func(ctx context.Context) ([]types.MonitoringData, error) {
			return fetcher.FetchData(ctx)
		})
		elapsed := time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				return report, cycleError("fetch stage interrupted", ctx.Err())
			}
			sfe := sourceFetchError(source, err)
			report.SourceErrors = append(report.SourceErrors, sfe)
			report.Sources = append(report.Sources, SourceReport{Source: source, Duration: elapsed, Error: err.Error()})
			m.recorder.RecordFetch(source, "failed", 0, elapsed)
			m.recorder.RecordError(string(types.ErrSourceFetch), source)
			m.logger.Warn("source fetch failed, skipping",
				append(step.LogFields(sctx), zap.String("source", source), zap.Error(err))...)
			m.publish(sctx, events.SourceFailed, map[string]any{"source": source, "error": err.Error()})
			continue
		}

		valid := items[:0:0]
		for _, item := range items {
			if verr := item.Validate(); verr != nil {
				m.logger.Warn("dropping invalid monitoring item",
					zap.String("source", source), zap.String("item_id", item.ID), zap.Error(verr))
				continue
			}
			valid = append(valid, item)
		}

		report.Items = append(report.Items, valid...)
		report.Sources = append(report.Sources, SourceReport{Source: source, Items: len(valid), Duration: elapsed})
		m.recorder.RecordFetch(source, "success", len(valid), elapsed)
		m.logger.Debug("source fetched",
			zap.String("source", source), zap.Int("items", len(valid)), zap.Duration("duration", elapsed))
	}

	return report, nil
}
