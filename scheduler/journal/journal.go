// Package journal 提供步骤日志：按确定性的步骤键记录已完成步骤的结果，
// 进程崩溃重启后重放同一步骤时直接返回记录的结果，而不是再次执行副作用。
//
// 只有成功完成的步骤会被记录；失败的步骤在下次调用时重新执行。
package journal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/monitorflow/config"
)

var (
	// ErrNotFound 键不存在或已过期
	ErrNotFound = errors.New("journal entry not found")
	// ErrClosed 日志已关闭
	ErrClosed = errors.New("journal closed")
	// ErrInvalidEntry 条目缺少键
	ErrInvalidEntry = errors.New("journal entry key is required")
)

// DefaultTTL 未指定 TTL 时的保留时间
const DefaultTTL = 24 * time.Hour

// Status 步骤状态
type Status string

const (
	StatusCompleted Status = "completed"
)

// Entry 已完成步骤的记录
type Entry struct {
	Key         string          `json:"key"`
	StepName    string          `json:"step_name"`
	Status      Status          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Attempts    int             `json:"attempts"`
	CompletedAt time.Time       `json:"completed_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// Expired 判断条目是否已过期
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Journal 步骤日志接口
type Journal interface {
	// Lookup 查询已完成的步骤，不存在时返回 ErrNotFound
	Lookup(ctx context.Context, key string) (*Entry, error)

	// Record 记录已完成步骤，ttl <= 0 时使用 DefaultTTL
	Record(ctx context.Context, entry Entry, ttl time.Duration) error

	// Forget 删除记录
	Forget(ctx context.Context, key string) error

	// Ping 健康检查
	Ping(ctx context.Context) error

	// Close 释放资源
	Close() error
}

// StepKey 由输入生成确定性的步骤键（JSON 序列化后取 SHA256）
func StepKey(parts ...any) (string, error) {
	if len(parts) == 0 {
		return "", errors.New("at least one key part is required")
	}
	data, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("marshal key parts: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// prepare 补全条目的默认字段
func prepare(entry Entry, ttl time.Duration) (Entry, error) {
	if entry.Key == "" {
		return Entry{}, ErrInvalidEntry
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if entry.Status == "" {
		entry.Status = StatusCompleted
	}
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now().UTC()
	}
	entry.ExpiresAt = entry.CompletedAt.Add(ttl)
	return entry, nil
}

// =============================================================================
// 工厂
// =============================================================================

// New 根据配置创建步骤日志，type 为 none 时返回 Nop
// redis 类型会用 rdb 建立连接，rdb 为 nil 时根据 redisCfg 新建客户端
func New(cfg config.JournalConfig, redisCfg config.RedisConfig, logger *zap.Logger) (Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "journal"))

	switch cfg.Type {
	case "", "memory":
		return NewMemoryJournal(cfg.CleanupInterval, logger), nil
	case "file":
		j, err := NewFileJournal(cfg.Dir, logger)
		if err != nil {
			return nil, err
		}
		return j, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         redisCfg.Addr,
			Password:     redisCfg.Password,
			DB:           redisCfg.DB,
			PoolSize:     redisCfg.PoolSize,
			MinIdleConns: redisCfg.MinIdleConns,
		})
		return NewRedisJournal(client, cfg.KeyPrefix, logger), nil
	case "none":
		return Nop(), nil
	default:
		return nil, fmt.Errorf("unsupported journal type: %s", cfg.Type)
	}
}

// nopJournal 不记录任何内容
type nopJournal struct{}

// Nop 返回不记录任何内容的日志，所有步骤都会重新执行
func Nop() Journal { return nopJournal{} }

func (nopJournal) Lookup(context.Context, string) (*Entry, error)     { return nil, ErrNotFound }
func (nopJournal) Record(context.Context, Entry, time.Duration) error { return nil }
func (nopJournal) Forget(context.Context, string) error               { return nil }
func (nopJournal) Ping(context.Context) error                         { return nil }
func (nopJournal) Close() error                                       { return nil }
