// Package circuitbreaker 为外部调用（编排服务、动作目标主机）提供熔断保护。
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/monitorflow/types"
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭状态（正常工作）
	StateClosed State = iota
	// StateOpen 打开状态（熔断中）
	StateOpen
	// StateHalfOpen 半开状态（试探性恢复）
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// 错误定义
var (
	ErrCircuitOpen            = types.NewError(types.ErrCircuitOpen, "circuit breaker is open")
	ErrTooManyCallsInHalfOpen = types.NewError(types.ErrCircuitOpen, "too many calls while half-open")
)

// Config 熔断器配置
type Config struct {
	// Threshold 连续失败次数阈值（触发熔断）
	Threshold int

	// ResetTimeout 熔断恢复等待时间（从 Open -> HalfOpen）
	ResetTimeout time.Duration

	// HalfOpenMaxCalls 半开状态下允许的最大请求数
	HalfOpenMaxCalls int

	// IsFailure 判断错误是否计入失败，默认见 DefaultIsFailure
	IsFailure func(err error) bool

	// OnStateChange 状态变更回调，在持锁外同步调用
	OnStateChange func(name string, from, to State)
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Threshold:        5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// DefaultIsFailure 调用方取消和客户端错误（参数错误、资源不存在）不计入失败
func DefaultIsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch types.GetErrorCode(err) {
	case types.ErrInvalidInput, types.ErrNotFound:
		return false
	}
	return true
}

// Breaker 熔断器
type Breaker struct {
	name   string
	config Config
	logger *zap.Logger
	now    func() time.Time

	mu                sync.Mutex
	state             State
	failureCount      int
	openedAt          time.Time
	halfOpenCallCount int
}

// New 创建熔断器，非法参数回落到默认值
func New(name string, cfg Config, logger *zap.Logger) *Breaker {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = DefaultIsFailure
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		name:   name,
		config: cfg,
		logger: logger.With(zap.String("breaker", name)),
		now:    time.Now,
		state:  StateClosed,
	}
}

// Name 熔断器名称
func (b *Breaker) Name() string { return b.name }

// Call 执行调用，熔断器打开时直接返回 ErrCircuitOpen
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.CallWithResult(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// CallWithResult 执行调用并返回结果
func (b *Breaker) CallWithResult(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if err := b.beforeCall(); err != nil {
		return nil, err
	}

	result, err := fn(ctx)
	b.afterCall(!b.config.IsFailure(err))
	return result, err
}

// beforeCall 调用前检查
func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	var transition func()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.ResetTimeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		transition = b.setState(StateHalfOpen)
		b.halfOpenCallCount = 1
		b.logger.Info("熔断器进入半开状态")

	case StateHalfOpen:
		if b.halfOpenCallCount >= b.config.HalfOpenMaxCalls {
			b.mu.Unlock()
			return ErrTooManyCallsInHalfOpen
		}
		b.halfOpenCallCount++
	}

	b.mu.Unlock()
	if transition != nil {
		transition()
	}
	return nil
}

// afterCall 调用后处理
func (b *Breaker) afterCall(success bool) {
	b.mu.Lock()
	var transition func()

	if success {
		switch b.state {
		case StateClosed:
			b.failureCount = 0
		case StateHalfOpen:
			b.logger.Info("熔断器恢复正常")
			transition = b.setState(StateClosed)
			b.failureCount = 0
			b.halfOpenCallCount = 0
		}
	} else {
		b.failureCount++
		switch b.state {
		case StateClosed:
			if b.failureCount >= b.config.Threshold {
				b.logger.Warn("熔断器打开",
					zap.Int("failure_count", b.failureCount),
					zap.Int("threshold", b.config.Threshold),
				)
				b.openedAt = b.now()
				transition = b.setState(StateOpen)
			}
		case StateHalfOpen:
			b.logger.Warn("熔断器半开状态失败，重新打开")
			b.openedAt = b.now()
			transition = b.setState(StateOpen)
			b.halfOpenCallCount = 0
		}
	}

	b.mu.Unlock()
	if transition != nil {
		transition()
	}
}

// setState 设置状态，返回需要在释放锁后执行的回调
func (b *Breaker) setState(to State) func() {
	from := b.state
	b.state = to
	if b.config.OnStateChange == nil || from == to {
		return nil
	}
	cb := b.config.OnStateChange
	name := b.name
	return func() { cb(name, from, to) }
}

// State 获取当前状态
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset 手动恢复为关闭状态
func (b *Breaker) Reset() {
	b.mu.Lock()
	transition := b.setState(StateClosed)
	b.failureCount = 0
	b.halfOpenCallCount = 0
	b.mu.Unlock()

	b.logger.Info("熔断器已重置")
	if transition != nil {
		transition()
	}
}
