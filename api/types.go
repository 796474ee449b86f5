package api

import (
	"github.com/BaSui01/monitorflow/scheduler/monitor"
	"github.com/BaSui01/monitorflow/scheduler/store"
)

// =============================================================================
// 监控查询响应类型
// =============================================================================

// CheckpointsResponse /v1/checkpoints 的响应体
type CheckpointsResponse struct {
	// 注册表中已登记的检查点类型
	Registered []string `json:"registered"`
	// 当前循环按声明顺序解析出的启用检查点
	Enabled []monitor.CheckpointInfo `json:"enabled"`
}

// CyclesResponse /v1/cycles 的响应体，按开始时间倒序
type CyclesResponse struct {
	Cycles []store.CycleSummary `json:"cycles"`
	Count  int                  `json:"count"`
}

// AIResultsResponse /v1/ai-results 的响应体
type AIResultsResponse struct {
	Results []store.AIResult `json:"results"`
	Count   int              `json:"count"`
}
