package config

import (
	"fmt"
	"strings"
	"time"
)

// MinIntervalSeconds 轮询间隔下限
const MinIntervalSeconds = 10

// MonitorConfig 监控循环配置，启动时加载一次
type MonitorConfig struct {
	Name        string `yaml:"name" env:"NAME"`
	Description string `yaml:"description" env:"DESCRIPTION"`
	Enabled     bool   `yaml:"enabled" env:"ENABLED"`

	// 两次循环之间的间隔（秒）
	IntervalSeconds int `yaml:"interval_seconds" env:"INTERVAL_SECONDS"`

	// 按声明顺序评估的检查点
	CheckingPoints []CheckpointEntry `yaml:"checking_points" env:"-"`

	// 单个检查点内并发执行的 AI 动作数
	MaxConcurrentAIActions int `yaml:"max_concurrent_ai_actions" env:"MAX_CONCURRENT_AI_ACTIONS"`

	// 单次循环的总超时，0 表示不限制
	CycleTimeout time.Duration `yaml:"cycle_timeout" env:"CYCLE_TIMEOUT"`
}

// CheckpointEntry 单个检查点的配置项
type CheckpointEntry struct {
	Type    string         `yaml:"type" json:"type"`
	Config  map[string]any `yaml:"config" json:"config,omitempty"`
	Enabled *bool          `yaml:"enabled" json:"enabled,omitempty"`
}

// IsEnabled 未显式配置时视为启用
func (e CheckpointEntry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Interval 返回轮询间隔
func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// AIConcurrency 返回 AI 动作并发上限，最小为 1
func (m MonitorConfig) AIConcurrency() int {
	if m.MaxConcurrentAIActions < 1 {
		return 1
	}
	return m.MaxConcurrentAIActions
}

// Validate 校验监控配置
func (m MonitorConfig) Validate() error {
	var errs []string
	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, "monitor.name cannot be empty")
	}
	if m.IntervalSeconds < MinIntervalSeconds {
		errs = append(errs, fmt.Sprintf("monitor.interval_seconds must be at least %d", MinIntervalSeconds))
	}
	if m.MaxConcurrentAIActions < 0 {
		errs = append(errs, "monitor.max_concurrent_ai_actions cannot be negative")
	}
	if m.CycleTimeout < 0 {
		errs = append(errs, "monitor.cycle_timeout cannot be negative")
	}
	for i, cp := range m.CheckingPoints {
		if strings.TrimSpace(cp.Type) == "" {
			errs = append(errs, fmt.Sprintf("monitor.checking_points[%d].type cannot be empty", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
