package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 🏥 存活与就绪探针
// =============================================================================

// readyTimeout 一次就绪探测的整体超时
const readyTimeout = 5 * time.Second

// Probe 就绪探针：循环是否启动、步骤日志与审计库是否可达
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

// ProbeReport /health 与 /ready 的响应体
type ProbeReport struct {
	Status    string        `json:"status"` // healthy | unhealthy
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Probes    []ProbeResult `json:"probes,omitempty"`
}

// ProbeResult 单个探针的结果
type ProbeResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// HealthHandler 探针处理器，探针并发执行
type HealthHandler struct {
	logger  *zap.Logger
	started time.Time

	mu     sync.RWMutex
	probes []Probe
}

// NewHealthHandler 创建探针处理器
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:  logger.With(zap.String("component", "health")),
		started: time.Now(),
	}
}

// RegisterProbe 注册就绪探针
func (h *HealthHandler) RegisterProbe(p Probe) {
	h.mu.Lock()
	h.probes = append(h.probes, p)
	h.mu.Unlock()
}

// HandleHealth 存活探针，不执行就绪检查
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, h.report(nil))
}

// HandleReady 就绪探针，任一失败返回 503
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	h.mu.RLock()
	probes := append([]Probe(nil), h.probes...)
	h.mu.RUnlock()

	results := make([]ProbeResult, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			results[i] = h.run(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	rep := h.report(results)
	code := http.StatusOK
	if rep.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, rep)
}

func (h *HealthHandler) run(ctx context.Context, p Probe) ProbeResult {
	start := time.Now()
	err := p.Check(ctx)
	res := ProbeResult{Name: p.Name(), Passed: err == nil, Latency: time.Since(start).String()}
	if err != nil {
		res.Error = err.Error()
		h.logger.Warn("readiness probe failed", zap.String("probe", res.Name), zap.Error(err))
	}
	return res
}

func (h *HealthHandler) report(results []ProbeResult) ProbeReport {
	rep := ProbeReport{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Probes:    results,
	}
	for _, r := range results {
		if !r.Passed {
			rep.Status = "unhealthy"
			break
		}
	}
	return rep
}

// HandleVersion 构建信息
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	info := map[string]string{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, r, info)
	}
}

// ProbeFunc 以函数实现的探针
type ProbeFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewProbe 创建函数探针
func NewProbe(name string, fn func(ctx context.Context) error) *ProbeFunc {
	return &ProbeFunc{name: name, fn: fn}
}

func (p *ProbeFunc) Name() string                    { return p.name }
func (p *ProbeFunc) Check(ctx context.Context) error { return p.fn(ctx) }
