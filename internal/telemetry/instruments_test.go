package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", agg)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestLoopInstruments_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	li, err := NewLoopInstruments(mp.Meter(InstrumentationName))
	require.NoError(t, err)

	li.RecordCycle("success", 2*time.Second, 3)
	li.RecordCycle("failed", time.Second, 0)
	li.RecordFetch("tasks", "success", 3, time.Second)
	li.RecordFetch("alerts", "success", 4, time.Second)
	li.RecordEvaluation("overdue", "MATCH", time.Millisecond)
	li.RecordError("DISPATCH", "overdue")

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["monitorflow.cycles"]))
	assert.Equal(t, int64(7), sumOf(t, got["monitorflow.items.fetched"]))
	assert.Equal(t, int64(1), sumOf(t, got["monitorflow.evaluations"]))
	assert.Equal(t, int64(1), sumOf(t, got["monitorflow.errors"]))

	hist, ok := got["monitorflow.cycle.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}

func TestNewLoopInstruments_GlobalMeter(t *testing.T) {
	li, err := NewLoopInstruments(nil)
	require.NoError(t, err)
	assert.NotPanics(t, func() { li.RecordCycle("success", time.Second, 1) })
}
