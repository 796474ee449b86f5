package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileJournal 基于文件的步骤日志，适合单节点部署
// 所有条目保存在 index.json 中，每次写入后原子落盘
type FileJournal struct {
	dir     string
	entries map[string]Entry
	mu      sync.RWMutex
	closed  bool
	logger  *zap.Logger
}

// NewFileJournal 创建文件日志并加载已有条目
func NewFileJournal(dir string, logger *zap.Logger) (*FileJournal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		return nil, fmt.Errorf("journal dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &FileJournal{
		dir:     dir,
		entries: make(map[string]Entry),
		logger:  logger,
	}
	if err := j.loadFromDisk(); err != nil {
		return nil, fmt.Errorf("failed to load journal from disk: %w", err)
	}
	return j, nil
}

func (j *FileJournal) indexPath() string {
	return filepath.Join(j.dir, "index.json")
}

// loadFromDisk 加载索引，丢弃已过期的条目
func (j *FileJournal) loadFromDisk() error {
	data, err := os.ReadFile(j.indexPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	now := time.Now()
	for k, e := range entries {
		if !e.Expired(now) {
			j.entries[k] = e
		}
	}
	j.logger.Debug("journal loaded", zap.Int("entries", len(j.entries)))
	return nil
}

// saveToDisk 原子写：先写临时文件再重命名，调用方需持有写锁
func (j *FileJournal) saveToDisk() error {
	data, err := json.MarshalIndent(j.entries, "", "  ")
	if err != nil {
		return err
	}

	tempPath := j.indexPath() + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tempPath, j.indexPath())
}

// Lookup 实现 Journal.Lookup
func (j *FileJournal) Lookup(_ context.Context, key string) (*Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}
	e, ok := j.entries[key]
	if !ok || e.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	return &e, nil
}

// Record 实现 Journal.Record
func (j *FileJournal) Record(_ context.Context, entry Entry, ttl time.Duration) error {
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
	return j.saveToDisk()
}

// Forget 实现 Journal.Forget
func (j *FileJournal) Forget(_ context.Context, key string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	if _, ok := j.entries[key]; !ok {
		return nil
	}
	delete(j.entries, key)
	return j.saveToDisk()
}

// Ping 实现 Journal.Ping
func (j *FileJournal) Ping(context.Context) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}
	return nil
}

// Close 清理过期条目并落盘
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	now := time.Now()
	for k, e := range j.entries {
		if e.Expired(now) {
			delete(j.entries, k)
		}
	}
	return j.saveToDisk()
}
