// Package store 保存 AI 子执行结果与监控周期摘要，供审计与 HTTP 查询使用。
//
// 写入失败只记录日志，不影响监控循环。同一 execution_id / cycle_id 的重复
// 写入按 upsert 处理。
package store

import (
	"context"
	"time"

	"github.com/BaSui01/monitorflow/types"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Store 审计存储
type Store interface {
	SaveAIResult(ctx context.Context, result types.AIWorkflowResult) error
	SaveCycle(ctx context.Context, cycle CycleSummary) error
	ListAIResults(ctx context.Context, filter AIResultFilter) ([]AIResult, error)
	RecentCycles(ctx context.Context, limit int) ([]CycleSummary, error)
}

// AIResult 带所属周期的 AI 子执行结果
type AIResult struct {
	CycleID string `json:"cycle_id,omitempty"`
	types.AIWorkflowResult
}

// AIResultFilter ListAIResults 过滤条件，零值字段不参与过滤
type AIResultFilter struct {
	Checkpoint string
	ItemID     string
	CycleID    string
	Success    *bool
	Since      time.Time
	Limit      int
}

func (f AIResultFilter) limit() int {
	return clampLimit(f.Limit)
}

func (f AIResultFilter) match(r AIResult) bool {
	if f.Checkpoint != "" && r.CheckpointName != f.Checkpoint {
		return false
	}
	if f.ItemID != "" && r.ItemID != f.ItemID {
		return false
	}
	if f.CycleID != "" && r.CycleID != f.CycleID {
		return false
	}
	if f.Success != nil && r.Success != *f.Success {
		return false
	}
	if !f.Since.IsZero() && r.StartedAt.Before(f.Since) {
		return false
	}
	return true
}

// CycleSummary 单个监控周期的摘要
type CycleSummary struct {
	CycleID         string    `json:"cycle_id" gorm:"primaryKey;size:64"`
	MonitorName     string    `json:"monitor_name" gorm:"size:255;not null"`
	StartedAt       time.Time `json:"started_at" gorm:"not null;index:idx_monitor_cycles_started"`
	CompletedAt     time.Time `json:"completed_at" gorm:"not null"`
	DurationMs      int64     `json:"duration_ms"`
	ItemsFetched    int       `json:"items_fetched"`
	ItemsProcessed  int       `json:"items_processed"`
	Matches         int       `json:"matches"`
	ActionsExecuted int       `json:"actions_executed"`
	ActionsFailed   int       `json:"actions_failed"`
	AIExecuted      int       `json:"ai_executed" gorm:"column:ai_executed"`
	AIFailed        int       `json:"ai_failed" gorm:"column:ai_failed"`
	SourceErrors    int       `json:"source_errors"`
	Success         bool      `json:"success"`
	ErrorMessage    string    `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt       time.Time `json:"-"`
}

// TableName implements gorm's tabler.
func (CycleSummary) TableName() string { return "monitor_cycles" }

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > MaxListLimit:
		return MaxListLimit
	}
	return n
}
