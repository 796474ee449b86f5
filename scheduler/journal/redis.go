package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisJournal 基于 Redis 的步骤日志，过期由 key TTL 控制
type RedisJournal struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisJournal 创建 Redis 日志
func NewRedisJournal(client *redis.Client, prefix string, logger *zap.Logger) *RedisJournal {
	if prefix == "" {
		prefix = "monitorflow:journal:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisJournal{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Lookup 实现 Journal.Lookup
func (j *RedisJournal) Lookup(ctx context.Context, key string) (*Entry, error) {
	data, err := j.client.Get(ctx, j.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("从 Redis 获取失败: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode journal entry: %w", err)
	}

	j.logger.Debug("步骤日志命中",
		zap.String("key", key),
		zap.String("step", e.StepName),
	)
	return &e, nil
}

// Record 实现 Journal.Record
func (j *RedisJournal) Record(ctx context.Context, entry Entry, ttl time.Duration) error {
	e, err := prepare(entry, ttl)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}

	if err := j.client.Set(ctx, j.prefix+e.Key, data, ttl).Err(); err != nil {
		return fmt.Errorf("存储到 Redis 失败: %w", err)
	}
	return nil
}

// Forget 实现 Journal.Forget
func (j *RedisJournal) Forget(ctx context.Context, key string) error {
	if err := j.client.Del(ctx, j.prefix+key).Err(); err != nil {
		return fmt.Errorf("从 Redis 删除失败: %w", err)
	}
	return nil
}

// Ping 实现 Journal.Ping
func (j *RedisJournal) Ping(ctx context.Context) error {
	return j.client.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (j *RedisJournal) Close() error {
	return j.client.Close()
}
