package journal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryJournal 基于内存的步骤日志，进程重启后丢失
type MemoryJournal struct {
	entries map[string]Entry
	mu      sync.RWMutex
	logger  *zap.Logger

	stopCh    chan struct{}
	closeOnce sync.Once
	closed    bool
}

// NewMemoryJournal 创建内存日志并启动过期清理
func NewMemoryJournal(cleanupInterval time.Duration, logger *zap.Logger) *MemoryJournal {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	j := &MemoryJournal{
		entries: make(map[string]Entry),
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
	go j.cleanupLoop(cleanupInterval)
	return j
}

// cleanupLoop 定期清理过期条目
func (j *MemoryJournal) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.cleanup(time.Now())
		case <-j.stopCh:
			return
		}
	}
}

func (j *MemoryJournal) cleanup(now time.Time) int {
	j.mu.Lock()
	defer j.mu.Unlock()

	expired := 0
	for key, e := range j.entries {
		if e.Expired(now) {
			delete(j.entries, key)
			expired++
		}
	}
	if expired > 0 {
		j.logger.Debug("cleaned up expired journal entries",
			zap.Int("expired", expired),
			zap.Int("remaining", len(j.entries)))
	}
	return expired
}

// Lookup 实现 Journal.Lookup
func (j *MemoryJournal) Lookup(_ context.Context, key string) (*Entry, error) {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return nil, ErrClosed
	}
	e, ok := j.entries[key]
	j.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if e.Expired(time.Now()) {
		j.mu.Lock()
		delete(j.entries, key)
		j.mu.Unlock()
		return nil, ErrNotFound
	}
	return &e, nil
}

// Record 实现 Journal.Record
func (j *MemoryJournal) Record(_ context.Context, entry Entry, ttl time.Duration) error {
	e, err := prepare(entry, ttl)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	j.entries[e.Key] = e
	return nil
}

// Forget 实现 Journal.Forget
func (j *MemoryJournal) Forget(_ context.Context, key string) error {
	j.mu.Lock()
	delete(j.entries, key)
	j.mu.Unlock()
	return nil
}

// Ping 实现 Journal.Ping
func (j *MemoryJournal) Ping(context.Context) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}
	return nil
}

// Len 当前条目数
func (j *MemoryJournal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Close 停止清理 goroutine
func (j *MemoryJournal) Close() error {
	j.closeOnce.Do(func() {
		close(j.stopCh)
		j.mu.Lock()
		j.closed = true
		j.mu.Unlock()
	})
	return nil
}
