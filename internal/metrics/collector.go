// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 监控循环指标
	cyclesTotal    *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	cycleItems     prometheus.Histogram
	lastCycleStamp prometheus.Gauge

	// 数据拉取指标
	fetchTotal    *prometheus.CounterVec
	fetchItems    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	// 检查点评估与分发
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	dispatchErrors     *prometheus.CounterVec

	// 即时动作与 AI 子执行
	actionsTotal       *prometheus.CounterVec
	actionDuration     *prometheus.HistogramVec
	aiExecutionsTotal  *prometheus.CounterVec
	aiExecutionSeconds *prometheus.HistogramVec
	aiAttempts         *prometheus.HistogramVec

	// 步骤指标
	stepsTotal    *prometheus.CounterVec
	stepAttempts  *prometheus.HistogramVec
	stepDuration  *prometheus.HistogramVec
	stepReplays   *prometheus.CounterVec
	breakerStates *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，指标注册到 prometheus 默认注册表
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 监控循环
	c.cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of monitoring cycles",
		},
		[]string{"status"}, // success, failed
	)

	c.cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Monitoring cycle duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
	)

	c.cycleItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_items",
			Help:      "Number of monitoring items processed per cycle",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	c.lastCycleStamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last completed cycle",
		},
	)

	// 数据拉取
	c.fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Total number of source fetches",
		},
		[]string{"source", "status"},
	)

	c.fetchItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_items_total",
			Help:      "Total number of items fetched",
		},
		[]string{"source"},
	)

	c.fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Source fetch duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
		[]string{"source"},
	)

	// 评估与分发
	c.evaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of checking point evaluations",
		},
		[]string{"checking_point", "result"},
	)

	c.evaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Checking point evaluation duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"checking_point"},
	)

	c.dispatchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of contained loop errors by class",
		},
		[]string{"class", "checking_point"},
	)

	// 即时动作
	c.actionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Total number of immediate actions executed",
		},
		[]string{"type", "status"},
	)

	c.actionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Immediate action duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// AI 子执行
	c.aiExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_executions_total",
			Help:      "Total number of AI sub-executions",
		},
		[]string{"workflow", "status"},
	)

	c.aiExecutionSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_execution_duration_seconds",
			Help:      "AI sub-execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"workflow"},
	)

	c.aiAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_execution_attempts",
			Help:      "Attempts used per AI sub-execution",
			Buckets:   []float64{1, 2, 3, 5, 8},
		},
		[]string{"workflow"},
	)

	// 步骤
	c.stepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total number of step runs",
		},
		[]string{"step", "status"},
	)

	c.stepAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_attempts",
			Help:      "Attempts used per step run",
			Buckets:   []float64{1, 2, 3, 5, 8},
		},
		[]string{"step"},
	)

	c.stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step duration in seconds, including retries",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	c.stepReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_replays_total",
			Help:      "Total number of steps answered from the journal",
		},
		[]string{"step"},
	)

	c.breakerStates = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
		[]string{"breaker"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🔁 监控循环指标记录
// =============================================================================

// RecordCycle 记录一次监控循环
func (c *Collector) RecordCycle(status string, duration time.Duration, items int) {
	c.cyclesTotal.WithLabelValues(status).Inc()
	c.cycleDuration.Observe(duration.Seconds())
	c.cycleItems.Observe(float64(items))
	c.lastCycleStamp.SetToCurrentTime()
}

// RecordFetch 记录一次数据源拉取
func (c *Collector) RecordFetch(source, status string, items int, duration time.Duration) {
	c.fetchTotal.WithLabelValues(source, status).Inc()
	c.fetchItems.WithLabelValues(source).Add(float64(items))
	c.fetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordEvaluation 记录一次检查点评估
func (c *Collector) RecordEvaluation(checkpoint, result string, duration time.Duration) {
	c.evaluationsTotal.WithLabelValues(checkpoint, result).Inc()
	c.evaluationDuration.WithLabelValues(checkpoint).Observe(duration.Seconds())
}

// RecordError 记录被隔离的循环错误
func (c *Collector) RecordError(class, checkpoint string) {
	c.dispatchErrors.WithLabelValues(class, checkpoint).Inc()
}

// RecordAction 记录一次即时动作
func (c *Collector) RecordAction(actionType, status string, duration time.Duration) {
	c.actionsTotal.WithLabelValues(actionType, status).Inc()
	c.actionDuration.WithLabelValues(actionType).Observe(duration.Seconds())
}

// RecordAIExecution 记录一次 AI 子执行
func (c *Collector) RecordAIExecution(workflow, status string, duration time.Duration, attempts int) {
	c.aiExecutionsTotal.WithLabelValues(workflow, status).Inc()
	c.aiExecutionSeconds.WithLabelValues(workflow).Observe(duration.Seconds())
	c.aiAttempts.WithLabelValues(workflow).Observe(float64(attempts))
}

// =============================================================================
// 🧱 步骤与熔断指标记录
// =============================================================================

// RecordStep 记录一次步骤执行
func (c *Collector) RecordStep(step, status string, attempts int, duration time.Duration) {
	c.stepsTotal.WithLabelValues(step, status).Inc()
	c.stepAttempts.WithLabelValues(step).Observe(float64(attempts))
	c.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordStepReplay 记录一次日志重放
func (c *Collector) RecordStepReplay(step string) {
	c.stepReplays.WithLabelValues(step).Inc()
}

// SetBreakerState 记录熔断器状态
func (c *Collector) SetBreakerState(name string, state int) {
	c.breakerStates.WithLabelValues(name).Set(float64(state))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// StatusLabel 将布尔结果转换为 success/failed 标签
func StatusLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}
