package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/BaSui01/monitorflow/api"
	"github.com/BaSui01/monitorflow/scheduler/monitor"
	"github.com/BaSui01/monitorflow/scheduler/store"
	"github.com/BaSui01/monitorflow/types"
	"go.uber.org/zap"
)

// LoopView 监控循环的只读视图
type LoopView interface {
	Status() monitor.Status
	Checkpoints() []monitor.CheckpointInfo
}

// Catalog 检查点注册表
type Catalog interface {
	Names() []string
}

// MonitorHandler /v1 下的监控查询处理器
type MonitorHandler struct {
	loop    LoopView
	catalog Catalog
	store   store.Store
	logger  *zap.Logger
}

// NewMonitorHandler 创建监控查询处理器。st 为 nil 时历史查询返回 404。
func NewMonitorHandler(loop LoopView, catalog Catalog, st store.Store, logger *zap.Logger) *MonitorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonitorHandler{
		loop:    loop,
		catalog: catalog,
		store:   st,
		logger:  logger.With(zap.String("component", "monitor_api")),
	}
}

// HandleStatus GET /v1/status
func (h *MonitorHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.loop.Status())
}

// HandleCheckpoints GET /v1/checkpoints
func (h *MonitorHandler) HandleCheckpoints(w http.ResponseWriter, r *http.Request) {
	resp := api.CheckpointsResponse{
		Registered: []string{},
		Enabled:    h.loop.Checkpoints(),
	}
	if h.catalog != nil {
		resp.Registered = h.catalog.Names()
	}
	WriteSuccess(w, r, resp)
}

// HandleCycles GET /v1/cycles?limit=N
func (h *MonitorHandler) HandleCycles(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteErrorMessage(w, r, types.ErrNotFound, "audit store is not configured", h.logger)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	cycles, serr := h.store.RecentCycles(r.Context(), limit)
	if serr != nil {
		WriteError(w, r, types.WrapError(types.ErrUpstream, "list cycles", serr), h.logger)
		return
	}
	WriteSuccess(w, r, api.CyclesResponse{Cycles: cycles, Count: len(cycles)})
}

// HandleAIResults GET /v1/ai-results
// 查询参数: checking_point, item_id, cycle_id, success, since (RFC3339), limit
func (h *MonitorHandler) HandleAIResults(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteErrorMessage(w, r, types.ErrNotFound, "audit store is not configured", h.logger)
		return
	}
	filter, err := parseAIResultFilter(r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	results, serr := h.store.ListAIResults(r.Context(), filter)
	if serr != nil {
		WriteError(w, r, types.WrapError(types.ErrUpstream, "list ai results", serr), h.logger)
		return
	}
	WriteSuccess(w, r, api.AIResultsResponse{Results: results, Count: len(results)})
}

func parseLimit(r *http.Request) (int, *types.Error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, types.NewError(types.ErrInvalidInput, "limit must be a non-negative integer")
	}
	return n, nil
}

func parseAIResultFilter(r *http.Request) (store.AIResultFilter, *types.Error) {
	q := r.URL.Query()
	filter := store.AIResultFilter{
		Checkpoint: q.Get("checking_point"),
		ItemID:     q.Get("item_id"),
		CycleID:    q.Get("cycle_id"),
	}

	limit, err := parseLimit(r)
	if err != nil {
		return filter, err
	}
	filter.Limit = limit

	if raw := q.Get("success"); raw != "" {
		ok, perr := strconv.ParseBool(raw)
		if perr != nil {
			return filter, types.NewError(types.ErrInvalidInput, "success must be a boolean")
		}
		filter.Success = &ok
	}
	if raw := q.Get("since"); raw != "" {
		since, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			return filter, types.NewError(types.ErrInvalidInput, "since must be an RFC3339 timestamp")
		}
		filter.Since = since
	}
	return filter, nil
}
