package store

import (
	"context"
	"sync"

	"github.com/BaSui01/monitorflow/types"
)

// MemoryStore 进程内环形缓冲，未配置数据库时为 HTTP 查询提供最近记录
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	results  []AIResult
	cycles   []CycleSummary
}

// NewMemoryStore 创建内存存储，每类记录最多保留 capacity 条
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = MaxListLimit
	}
	return &MemoryStore{capacity: capacity}
}

// SaveAIResult implements Store.
func (s *MemoryStore) SaveAIResult(ctx context.Context, result types.AIWorkflowResult) error {
	if result.ExecutionID == "" {
		return types.NewError(types.ErrInvalidInput, "execution_id is required")
	}
	cycleID, _ := types.CycleID(ctx)
	rec := AIResult{CycleID: cycleID, AIWorkflowResult: result}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.results {
		if s.results[i].ExecutionID == result.ExecutionID {
			s.results[i] = rec
			return nil
		}
	}
	s.results = appendBounded(s.results, rec, s.capacity)
	return nil
}

// SaveCycle implements Store.
func (s *MemoryStore) SaveCycle(_ context.Context, cycle CycleSummary) error {
	if cycle.CycleID == "" {
		return types.NewError(types.ErrInvalidInput, "cycle_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cycles {
		if s.cycles[i].CycleID == cycle.CycleID {
			s.cycles[i] = cycle
			return nil
		}
	}
	s.cycles = appendBounded(s.cycles, cycle, s.capacity)
	return nil
}

// ListAIResults 最新的在前
func (s *MemoryStore) ListAIResults(_ context.Context, filter AIResultFilter) ([]AIResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.limit()
	out := make([]AIResult, 0, min(limit, len(s.results)))
	for i := len(s.results) - 1; i >= 0 && len(out) < limit; i-- {
		if filter.match(s.results[i]) {
			out = append(out, s.results[i])
		}
	}
	return out, nil
}

// RecentCycles 最新的在前
func (s *MemoryStore) RecentCycles(_ context.Context, limit int) ([]CycleSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = min(clampLimit(limit), len(s.cycles))
	out := make([]CycleSummary, 0, limit)
	for i := len(s.cycles) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.cycles[i])
	}
	return out, nil
}

func appendBounded[T any](s []T, v T, capacity int) []T {
	s = append(s, v)
	if len(s) > capacity {
		s = append(s[:0:0], s[len(s)-capacity:]...)
	}
	return s
}
