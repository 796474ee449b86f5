package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LoopInstruments 以 OTel 指标记录监控循环，与 Prometheus Collector 并行使用。
// 签名与 monitor.Recorder 一致。
type LoopInstruments struct {
	cycles      metric.Int64Counter
	cycleTime   metric.Float64Histogram
	items       metric.Int64Counter
	evaluations metric.Int64Counter
	errors      metric.Int64Counter
}

// NewLoopInstruments 从 meter 创建循环指标；meter 为 nil 时使用全局 MeterProvider
func NewLoopInstruments(meter metric.Meter) (*LoopInstruments, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}
	var (
		li  LoopInstruments
		err error
	)
	if li.cycles, err = meter.Int64Counter("monitorflow.cycles",
		metric.WithDescription("Completed monitoring cycles")); err != nil {
		return nil, fmt.Errorf("create cycles counter: %w", err)
	}
	if li.cycleTime, err = meter.Float64Histogram("monitorflow.cycle.duration",
		metric.WithDescription("Monitoring cycle duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create cycle histogram: %w", err)
	}
	if li.items, err = meter.Int64Counter("monitorflow.items.fetched",
		metric.WithDescription("Items fetched per source")); err != nil {
		return nil, fmt.Errorf("create items counter: %w", err)
	}
	if li.evaluations, err = meter.Int64Counter("monitorflow.evaluations",
		metric.WithDescription("Checking point evaluations")); err != nil {
		return nil, fmt.Errorf("create evaluations counter: %w", err)
	}
	if li.errors, err = meter.Int64Counter("monitorflow.errors",
		metric.WithDescription("Contained loop errors by class")); err != nil {
		return nil, fmt.Errorf("create errors counter: %w", err)
	}
	return &li, nil
}

// 指标记录不应受调用方取消影响
var bg = context.Background()

func (li *LoopInstruments) RecordCycle(status string, duration time.Duration, items int) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	li.cycles.Add(bg, 1, attrs)
	li.cycleTime.Record(bg, duration.Seconds(), attrs)
}

func (li *LoopInstruments) RecordFetch(source, status string, items int, _ time.Duration) {
	li.items.Add(bg, int64(items), metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	))
}

func (li *LoopInstruments) RecordEvaluation(checkpoint, result string, _ time.Duration) {
	li.evaluations.Add(bg, 1, metric.WithAttributes(
		attribute.String("checking_point", checkpoint),
		attribute.String("result", result),
	))
}

func (li *LoopInstruments) RecordError(class, checkpoint string) {
	li.errors.Add(bg, 1, metric.WithAttributes(
		attribute.String("class", class),
		attribute.String("checking_point", checkpoint),
	))
}
