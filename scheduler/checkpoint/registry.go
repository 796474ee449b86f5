package checkpoint

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BaSui01/monitorflow/config"
	"github.com/BaSui01/monitorflow/types"
	"go.uber.org/zap"
)

// ErrNotRegistered 未注册的检查点类型
var ErrNotRegistered = types.NewError(types.ErrNotFound, "checking point not registered")

// Registry 检查点类型到构造函数的显式映射表
type Registry struct {
	mu     sync.RWMutex
	ctors  map[string]Constructor
	order  []string
	logger *zap.Logger
}

// NewRegistry 创建空注册表
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		ctors:  make(map[string]Constructor),
		logger: logger.With(zap.String("component", "checkpoint_registry")),
	}
}

// Register 注册构造函数，名称为空、构造函数为 nil 或重复注册时返回错误
func (r *Registry) Register(name string, ctor Constructor) error {
	if name == "" {
		return types.NewError(types.ErrInvalidInput, "checking point name cannot be empty")
	}
	if ctor == nil {
		return types.NewError(types.ErrInvalidInput, "checking point constructor cannot be nil: "+name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ctors[name]; exists {
		return types.NewError(types.ErrInvalidInput, "checking point already registered: "+name)
	}
	r.ctors[name] = ctor
	r.order = append(r.order, name)

	r.logger.Debug("checking point registered", zap.String("type", name))
	return nil
}

// MustRegister 注册失败时 panic，仅用于启动阶段的内置表
func (r *Registry) MustRegister(name string, ctor Constructor) {
	if err := r.Register(name, ctor); err != nil {
		panic(err)
	}
}

// Get 按名称查找构造函数
func (r *Registry) Get(name string) (Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctor, ok := r.ctors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return ctor, nil
}

// Names 按注册顺序返回所有类型名
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len 已注册数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ctors)
}

// AllEnabled 按 MonitorConfig 声明顺序构造启用的检查点。
// 未知类型或构造失败返回错误，调用方应视为致命错误。
func (r *Registry) AllEnabled(cfg config.MonitorConfig) ([]CheckingPoint, error) {
	out := make([]CheckingPoint, 0, len(cfg.CheckingPoints))

	for i, entry := range cfg.CheckingPoints {
		if !entry.IsEnabled() {
			r.logger.Debug("checking point disabled by config",
				zap.Int("index", i),
				zap.String("type", entry.Type))
			continue
		}

		ctor, err := r.Get(entry.Type)
		if err != nil {
			return nil, fmt.Errorf("checking point #%d: %w", i, err)
		}

		cp, err := ctor(Params(entry.Config))
		if err != nil {
			return nil, fmt.Errorf("build checking point #%d (%s): %w", i, entry.Type, err)
		}
		if cp == nil {
			return nil, fmt.Errorf("build checking point #%d (%s): %w", i, entry.Type,
				errors.New("constructor returned nil"))
		}
		if v, ok := cp.(Validator); ok {
			if err := v.Validate(); err != nil {
				return nil, fmt.Errorf("checking point #%d (%s): %w", i, entry.Type, err)
			}
		}
		if !cp.Enabled() {
			r.logger.Debug("checking point disabled",
				zap.String("name", cp.Name()),
				zap.String("type", string(cp.Type())))
			continue
		}
		out = append(out, cp)
	}

	r.logger.Info("checking points resolved",
		zap.String("monitor", cfg.Name),
		zap.Int("declared", len(cfg.CheckingPoints)),
		zap.Int("enabled", len(out)))
	return out, nil
}
