package circuitbreaker

import (
	"sync"

	"go.uber.org/zap"
)

// Group 按目标（如主机名）懒创建并复用熔断器，所有成员共享同一配置
type Group struct {
	config Config
	logger *zap.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewGroup 创建熔断器组
func NewGroup(cfg Config, logger *zap.Logger) *Group {
	return &Group{
		config:   cfg,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// Get 返回 name 对应的熔断器，不存在时创建
func (g *Group) Get(name string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.breakers[name]; ok {
		return b
	}
	b := New(name, g.config, g.logger)
	g.breakers[name] = b
	return b
}

// States 返回所有熔断器的当前状态
func (g *Group) States() map[string]State {
	g.mu.Lock()
	members := make([]*Breaker, 0, len(g.breakers))
	for _, b := range g.breakers {
		members = append(members, b)
	}
	g.mu.Unlock()

	out := make(map[string]State, len(members))
	for _, b := range members {
		out[b.Name()] = b.State()
	}
	return out
}
