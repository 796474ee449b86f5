// Package events 提供监控循环事件的进程内发布订阅。
//
// 发布永不阻塞：订阅者缓冲区满时事件被丢弃并计数，
// 慢消费者不会拖慢监控循环。
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Type 事件类型
type Type string

const (
	CycleStarted         Type = "cycle_started"
	CycleCompleted       Type = "cycle_completed"
	CycleFailed          Type = "cycle_failed"
	SourceFailed         Type = "source_failed"
	CheckpointMatched    Type = "checkpoint_matched"
	ActionExecuted       Type = "action_executed"
	AIExecutionCompleted Type = "ai_execution_completed"
)

// DefaultBuffer 订阅者默认缓冲大小
const DefaultBuffer = 64

// Event 单条循环事件
type Event struct {
	Type       Type           `json:"type"`
	Time       time.Time      `json:"time"`
	CycleID    string         `json:"cycle_id,omitempty"`
	ItemID     string         `json:"item_id,omitempty"`
	Checkpoint string         `json:"checking_point,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher is the write side of the hub used by the monitoring loop.
type Publisher interface {
	Publish(e Event)
}

// Subscription 订阅句柄
type Subscription struct {
	id     uint64
	ch     chan Event
	hub    *Hub
	closed sync.Once
}

// C 返回事件通道，Close 后通道关闭
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close 取消订阅
func (s *Subscription) Close() {
	s.closed.Do(func() {
		s.hub.remove(s.id)
	})
}

// Hub 事件中心
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	nextID  uint64
	dropped atomic.Uint64
	logger  *zap.Logger
}

// NewHub 创建事件中心
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		logger: logger.With(zap.String("component", "events")),
	}
}

// Subscribe 注册订阅者，buffer <= 0 时使用 DefaultBuffer
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{id: h.nextID, ch: make(chan Event, buffer), hub: h}
	h.subs[sub.id] = sub
	h.logger.Debug("subscriber added", zap.Uint64("subscriber", sub.id), zap.Int("subscribers", len(h.subs)))
	return sub
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
}

// Publish 向所有订阅者广播事件，缓冲区满的订阅者丢弃该事件
func (h *Hub) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, sub := range h.subs {
		select {
		case sub.ch <- e:
		default:
			h.dropped.Add(1)
			h.logger.Debug("event dropped",
				zap.Uint64("subscriber", id),
				zap.String("type", string(e.Type)))
		}
	}
}

// Subscribers 当前订阅者数量
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped 累计丢弃的事件数
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close 关闭所有订阅
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Nop is a Publisher that discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(Event) {}
