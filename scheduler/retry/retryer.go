package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Retryer 重试器接口
type Retryer interface {
	// DoWithAttempts 执行 fn，失败时根据策略重试，返回结果与实际调用次数
	DoWithAttempts(ctx context.Context, fn func(ctx context.Context, attempt int) (any, error)) (any, int, error)
}

// SleepFunc 可被取消的等待
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep 默认等待实现，ctx 取消时提前返回
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Option 重试器选项
type Option func(*backoffRetryer)

// WithSleep 替换等待实现
func WithSleep(fn SleepFunc) Option {
	return func(r *backoffRetryer) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithOnRetry 每次重试等待前回调
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(r *backoffRetryer) {
		r.onRetry = fn
	}
}

// backoffRetryer 基于指数退避的重试器实现
type backoffRetryer struct {
	policy  Policy
	logger  *zap.Logger
	sleep   SleepFunc
	onRetry func(attempt int, err error, delay time.Duration)
}

// NewRetryer 创建指数退避重试器，非法参数回落到 DefaultPolicy 的对应值
func NewRetryer(policy Policy, logger *zap.Logger, opts ...Option) Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultPolicy()
	if policy.MaximumAttempts < 1 {
		policy.MaximumAttempts = 1
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = def.InitialInterval
	}
	if policy.BackoffCoefficient < 1 {
		policy.BackoffCoefficient = def.BackoffCoefficient
	}
	if policy.MaximumInterval < policy.InitialInterval {
		policy.MaximumInterval = policy.InitialInterval
	}

	r := &backoffRetryer{
		policy: policy,
		logger: logger,
		sleep:  Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DoWithAttempts 核心重试逻辑：指数退避 + 可选抖动 + 错误过滤
// 调用次数永远不超过 MaximumAttempts
func (r *backoffRetryer) DoWithAttempts(ctx context.Context, fn func(ctx context.Context, attempt int) (any, error)) (any, int, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt < r.policy.MaximumAttempts; attempt++ {
		// 第一次执行不延迟
		if attempt > 0 {
			delay := r.policy.jitteredDelay(attempt - 1)

			r.logger.Debug("重试中",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", r.policy.MaximumAttempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.onRetry != nil {
				r.onRetry(attempt, lastErr, delay)
			}

			if err := r.sleep(ctx, delay); err != nil {
				return nil, attempts, fmt.Errorf("retry cancelled: %w", errors.Join(lastErr, err))
			}
		}

		attempts++
		result, err := fn(ctx, attempt)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("重试成功", zap.Int("attempts", attempts))
			}
			return result, attempts, nil
		}
		lastErr = err

		if !r.policy.retryable(err) {
			r.logger.Debug("错误不可重试", zap.Error(err))
			return nil, attempts, Unwrap(err)
		}

		// 父 context 已取消，不再重试
		if ctx.Err() != nil {
			return nil, attempts, lastErr
		}
	}

	r.logger.Warn("重试次数耗尽",
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)

	return nil, attempts, lastErr
}

// =============================================================================
// 不可重试错误
// =============================================================================

// PermanentError 标记不应重试的错误
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent 将错误包装为不可重试错误
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent 检查错误链中是否存在 PermanentError
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Unwrap 去掉最外层的 PermanentError 包装
func Unwrap(err error) error {
	if pe, ok := err.(*PermanentError); ok {
		return pe.Err
	}
	return err
}
