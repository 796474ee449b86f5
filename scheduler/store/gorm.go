package store

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/monitorflow/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// aiResultRecord ai_results 表
type aiResultRecord struct {
	ExecutionID    string `gorm:"primaryKey;size:64"`
	CycleID        string `gorm:"size:64;index:idx_ai_results_cycle"`
	WorkflowName   string `gorm:"size:255;not null"`
	ActionName     string `gorm:"size:255;not null"`
	CheckpointName string `gorm:"column:checking_point_name;size:255;not null;index:idx_ai_results_checkpoint"`
	ItemID         string `gorm:"size:255;not null;index:idx_ai_results_item"`

	Success      bool
	Output       map[string]any `gorm:"type:text;serializer:json"`
	ActionsTaken []string       `gorm:"type:text;serializer:json"`
	ErrorMessage string         `gorm:"type:text"`
	ErrorDetails map[string]any `gorm:"type:text;serializer:json"`

	Attempts         int
	ApprovalRequired bool
	ApprovalGranted  bool

	StartedAt   time.Time `gorm:"not null;index:idx_ai_results_started"`
	CompletedAt time.Time `gorm:"not null"`
	DurationMs  int64
	CreatedAt   time.Time
}

func (aiResultRecord) TableName() string { return "ai_results" }

func newAIResultRecord(cycleID string, r types.AIWorkflowResult) aiResultRecord {
	return aiResultRecord{
		ExecutionID:      r.ExecutionID,
		CycleID:          cycleID,
		WorkflowName:     r.WorkflowName,
		ActionName:       r.ActionName,
		CheckpointName:   r.CheckpointName,
		ItemID:           r.ItemID,
		Success:          r.Success,
		Output:           r.Output,
		ActionsTaken:     r.ActionsTaken,
		ErrorMessage:     r.ErrorMessage,
		ErrorDetails:     r.ErrorDetails,
		Attempts:         r.Attempts,
		ApprovalRequired: r.ApprovalRequired,
		ApprovalGranted:  r.ApprovalGranted,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
		DurationMs:       r.DurationMs,
	}
}

func (rec aiResultRecord) result() AIResult {
	return AIResult{
		CycleID: rec.CycleID,
		AIWorkflowResult: types.AIWorkflowResult{
			ExecutionID:      rec.ExecutionID,
			WorkflowName:     rec.WorkflowName,
			ActionName:       rec.ActionName,
			CheckpointName:   rec.CheckpointName,
			ItemID:           rec.ItemID,
			Success:          rec.Success,
			Output:           rec.Output,
			ActionsTaken:     rec.ActionsTaken,
			ErrorMessage:     rec.ErrorMessage,
			ErrorDetails:     rec.ErrorDetails,
			StartedAt:        rec.StartedAt,
			CompletedAt:      rec.CompletedAt,
			DurationMs:       rec.DurationMs,
			Attempts:         rec.Attempts,
			ApprovalRequired: rec.ApprovalRequired,
			ApprovalGranted:  rec.ApprovalGranted,
		},
	}
}

// Transactor 提供带重试的事务执行，由 database.PoolManager 实现
type Transactor interface {
	WithTransactionRetry(ctx context.Context, maxRetries int, fn func(tx *gorm.DB) error) error
}

// GormStore 基于 GORM 的审计存储
type GormStore struct {
	db       *gorm.DB
	tx       Transactor
	attempts int
	logger   *zap.Logger
}

// GormOption GormStore 可选项
type GormOption func(*GormStore)

// WithTransactor 写操作经由 tx 执行，attempts 为总尝试次数
func WithTransactor(tx Transactor, attempts int) GormOption {
	return func(s *GormStore) {
		s.tx = tx
		s.attempts = attempts
	}
}

// NewGormStore 创建 GORM 审计存储
func NewGormStore(db *gorm.DB, logger *zap.Logger, opts ...GormOption) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &GormStore{db: db, attempts: 1, logger: logger.With(zap.String("component", "store"))}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// write 有 Transactor 时在可重试事务中执行 fn，否则直接使用 db
func (s *GormStore) write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.tx == nil {
		return fn(s.db.WithContext(ctx))
	}
	return s.tx.WithTransactionRetry(ctx, s.attempts, fn)
}

// AutoMigrate 按模型建表，仅用于 sqlite 开发与测试；生产环境使用 migrate 子命令
func (s *GormStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&aiResultRecord{}, &CycleSummary{}); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}

// SaveAIResult 写入 AI 子执行结果，cycle_id 取自 ctx
func (s *GormStore) SaveAIResult(ctx context.Context, result types.AIWorkflowResult) error {
	if result.ExecutionID == "" {
		return types.NewError(types.ErrInvalidInput, "execution_id is required")
	}
	cycleID, _ := types.CycleID(ctx)
	rec := newAIResultRecord(cycleID, result)

	err := s.write(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("save ai result %s: %w", result.ExecutionID, err)
	}
	return nil
}

// SaveCycle 写入周期摘要
func (s *GormStore) SaveCycle(ctx context.Context, cycle CycleSummary) error {
	if cycle.CycleID == "" {
		return types.NewError(types.ErrInvalidInput, "cycle_id is required")
	}
	err := s.write(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&cycle).Error
	})
	if err != nil {
		return fmt.Errorf("save cycle %s: %w", cycle.CycleID, err)
	}
	return nil
}

// ListAIResults 按开始时间倒序
func (s *GormStore) ListAIResults(ctx context.Context, filter AIResultFilter) ([]AIResult, error) {
	q := s.db.WithContext(ctx).Model(&aiResultRecord{})
	if filter.Checkpoint != "" {
		q = q.Where("checking_point_name = ?", filter.Checkpoint)
	}
	if filter.ItemID != "" {
		q = q.Where("item_id = ?", filter.ItemID)
	}
	if filter.CycleID != "" {
		q = q.Where("cycle_id = ?", filter.CycleID)
	}
	if filter.Success != nil {
		q = q.Where("success = ?", *filter.Success)
	}
	if !filter.Since.IsZero() {
		q = q.Where("started_at >= ?", filter.Since)
	}

	var records []aiResultRecord
	if err := q.Order("started_at DESC").Limit(filter.limit()).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list ai results: %w", err)
	}
	out := make([]AIResult, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.result())
	}
	return out, nil
}

// RecentCycles 最近的周期摘要，按开始时间倒序
func (s *GormStore) RecentCycles(ctx context.Context, limit int) ([]CycleSummary, error) {
	var cycles []CycleSummary
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(clampLimit(limit)).
		Find(&cycles).Error
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	return cycles, nil
}
