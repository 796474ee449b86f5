package retry

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/BaSui01/monitorflow/config"
)

// Policy 定义步骤的重试策略
// MaximumAttempts 是总调用次数（包含首次），不是重试次数
type Policy struct {
	InitialInterval    time.Duration // 首次重试前的延迟
	BackoffCoefficient float64       // 指数退避系数
	MaximumInterval    time.Duration // 单次延迟上限
	MaximumAttempts    int           // 最大调用次数
	Jitter             bool          // 是否添加 ±25% 随机抖动
	NonRetryableErrors []error       // 命中这些错误时立即停止
}

// AIMaximumInterval AI 子执行内部重试的延迟上限
const AIMaximumInterval = 10 * time.Minute

// DefaultPolicy 默认策略：1s 起步，系数 2，上限 1m，共 3 次
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    3,
	}
}

// EvaluationPolicy 检查点评估策略：1s 起步，上限 10s，共 2 次
func EvaluationPolicy() Policy {
	return Policy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    10 * time.Second,
		MaximumAttempts:    2,
	}
}

// ActionPolicy 即时动作策略：1s 起步，上限 1m，共 3 次
func ActionPolicy() Policy {
	return DefaultPolicy()
}

// AIPolicy AI 子执行自身的重试策略，attempts 最小为 1
func AIPolicy(attempts int, initial time.Duration) Policy {
	if attempts < 1 {
		attempts = 1
	}
	if initial <= 0 {
		initial = time.Second
	}
	return Policy{
		InitialInterval:    initial,
		BackoffCoefficient: 2.0,
		MaximumInterval:    AIMaximumInterval,
		MaximumAttempts:    attempts,
	}
}

// Validate 校验策略参数
func (p Policy) Validate() error {
	var errs []string
	if p.InitialInterval <= 0 {
		errs = append(errs, "initial interval must be positive")
	}
	if p.BackoffCoefficient < 1 {
		errs = append(errs, "backoff coefficient must be >= 1")
	}
	if p.MaximumInterval < p.InitialInterval {
		errs = append(errs, "maximum interval must be >= initial interval")
	}
	if p.MaximumAttempts < 1 {
		errs = append(errs, "maximum attempts must be >= 1")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid retry policy: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Delay 返回第 n 次重试（从 0 开始）前的等待时间，不含抖动
func (p Policy) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	d := float64(p.InitialInterval) * math.Pow(p.BackoffCoefficient, float64(n))
	if d > float64(p.MaximumInterval) || math.IsInf(d, 0) || math.IsNaN(d) {
		return p.MaximumInterval
	}
	return time.Duration(d)
}

// jitteredDelay 在 Delay 基础上添加 ±25% 抖动，结果不超过上限
func (p Policy) jitteredDelay(n int) time.Duration {
	d := p.Delay(n)
	if !p.Jitter {
		return d
	}
	f := float64(d)
	f += (rand.Float64()*2 - 1) * f * 0.25
	if f > float64(p.MaximumInterval) {
		f = float64(p.MaximumInterval)
	}
	if f < 0 {
		f = 0
	}
	return time.Duration(f)
}

// retryable 判断错误是否应继续重试
func (p Policy) retryable(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	for _, target := range p.NonRetryableErrors {
		if errors.Is(err, target) {
			return false
		}
	}
	return true
}

// =============================================================================
// Builder
// =============================================================================

// Builder 以链式调用构建 Policy，从 DefaultPolicy 开始
type Builder struct {
	p Policy
}

// NewBuilder 创建策略构建器
func NewBuilder() *Builder {
	return &Builder{p: DefaultPolicy()}
}

// From 以已有策略为起点
func From(p Policy) *Builder {
	return &Builder{p: p}
}

func (b *Builder) WithInitialInterval(d time.Duration) *Builder {
	b.p.InitialInterval = d
	return b
}

func (b *Builder) WithBackoffCoefficient(c float64) *Builder {
	b.p.BackoffCoefficient = c
	return b
}

func (b *Builder) WithMaximumInterval(d time.Duration) *Builder {
	b.p.MaximumInterval = d
	return b
}

func (b *Builder) WithMaximumAttempts(n int) *Builder {
	b.p.MaximumAttempts = n
	return b
}

func (b *Builder) WithJitter(on bool) *Builder {
	b.p.Jitter = on
	return b
}

// WithNonRetryable 追加不可重试的错误
func (b *Builder) WithNonRetryable(errs ...error) *Builder {
	b.p.NonRetryableErrors = append(b.p.NonRetryableErrors, errs...)
	return b
}

// Build 校验并返回策略
func (b *Builder) Build() (Policy, error) {
	if err := b.p.Validate(); err != nil {
		return Policy{}, err
	}
	return b.p, nil
}

// FromConfig 由配置构建策略，未配置的字段沿用 fallback
func FromConfig(c config.RetryConfig, fallback Policy) (Policy, error) {
	b := From(fallback)
	if c.InitialInterval > 0 {
		b.WithInitialInterval(c.InitialInterval)
	}
	if c.BackoffCoefficient > 0 {
		b.WithBackoffCoefficient(c.BackoffCoefficient)
	}
	if c.MaximumInterval > 0 {
		b.WithMaximumInterval(c.MaximumInterval)
	}
	if c.MaximumAttempts > 0 {
		b.WithMaximumAttempts(c.MaximumAttempts)
	}
	b.WithJitter(c.Jitter)
	return b.Build()
}
