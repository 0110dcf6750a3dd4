package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTTL 幂等键默认保留时长
const DefaultTTL = 24 * time.Hour

// Entry 幂等键绑定的任务
type Entry struct {
	JobID       string `json:"job_id"`
	Fingerprint string `json:"fingerprint"` // 请求体摘要，用于识别同一键下的不同请求
}

// Manager 幂等性管理器接口
// 将客户端提供的 Idempotency-Key 绑定到首次创建的生成任务
type Manager interface {
	// Fingerprint 根据输入生成稳定摘要
	Fingerprint(inputs ...any) (string, error)

	// Reserve 原子地占用 key。占用成功返回 (entry, true)；
	// key 已被占用时返回已有条目与 false
	Reserve(ctx context.Context, key string, entry Entry, ttl time.Duration) (Entry, bool, error)

	// Lookup 查询 key 绑定的条目
	Lookup(ctx context.Context, key string) (Entry, bool, error)

	// Release 释放 key，任务未能创建时调用
	Release(ctx context.Context, key string) error
}

func fingerprint(inputs []any) (string, error) {
	if len(inputs) == 0 {
		return "", errors.New("至少需要一个输入参数")
	}
	data, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("序列化输入失败: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// =============================================================================
// Redis
// =============================================================================

// redisManager 基于 Redis 的幂等性管理器实现
type redisManager struct {
	redis  *redis.Client
	prefix string // Redis key 前缀
	logger *zap.Logger
}

// NewRedisManager 创建基于 Redis 的幂等性管理器
func NewRedisManager(client *redis.Client, prefix string, logger *zap.Logger) Manager {
	if prefix == "" {
		prefix = "mediaflow:idempotency:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisManager{
		redis:  client,
		prefix: prefix,
		logger: logger.With(zap.String("component", "idempotency")),
	}
}

func (m *redisManager) Fingerprint(inputs ...any) (string, error) {
	return fingerprint(inputs)
}

func (m *redisManager) Reserve(ctx context.Context, key string, entry Entry, ttl time.Duration) (Entry, bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, false, fmt.Errorf("序列化条目失败: %w", err)
	}

	ok, err := m.redis.SetNX(ctx, m.prefix+key, data, ttl).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("写入 Redis 失败: %w", err)
	}
	if ok {
		m.logger.Debug("幂等键已占用",
			zap.String("key", key),
			zap.String("job_id", entry.JobID),
			zap.Duration("ttl", ttl),
		)
		return entry, true, nil
	}

	existing, found, err := m.Lookup(ctx, key)
	if err != nil {
		return Entry{}, false, err
	}
	if !found {
		// 在 SETNX 与 GET 之间过期，重新占用
		return m.Reserve(ctx, key, entry, ttl)
	}
	return existing, false, nil
}

func (m *redisManager) Lookup(ctx context.Context, key string) (Entry, bool, error) {
	data, err := m.redis.Get(ctx, m.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("从 Redis 获取失败: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("解析幂等条目失败: %w", err)
	}
	return entry, true, nil
}

func (m *redisManager) Release(ctx context.Context, key string) error {
	if err := m.redis.Del(ctx, m.prefix+key).Err(); err != nil {
		return fmt.Errorf("从 Redis 删除失败: %w", err)
	}
	return nil
}

// =============================================================================
// Memory
// =============================================================================

// MemoryManager 基于内存的实现，未配置 Redis 时的单实例回退
type MemoryManager struct {
	entries         map[string]*memoryEntry
	mu              sync.Mutex
	logger          *zap.Logger
	stopCh          chan struct{}
	stopOnce        sync.Once
	cleanupInterval time.Duration
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemoryManager 创建基于内存的幂等性管理器
func NewMemoryManager(logger *zap.Logger) *MemoryManager {
	return NewMemoryManagerWithCleanup(logger, 5*time.Minute)
}

// NewMemoryManagerWithCleanup 创建带自定义清理间隔的内存管理器
func NewMemoryManagerWithCleanup(logger *zap.Logger, cleanupInterval time.Duration) *MemoryManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MemoryManager{
		entries:         make(map[string]*memoryEntry),
		logger:          logger.With(zap.String("component", "idempotency")),
		stopCh:          make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}
	go m.cleanupLoop()
	return m
}

func (m *MemoryManager) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stopCh:
			return
		}
	}
}

func (m *MemoryManager) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	expired := 0
	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, key)
			expired++
		}
	}
	if expired > 0 {
		m.logger.Debug("cleaned up expired idempotency entries",
			zap.Int("expired", expired),
			zap.Int("remaining", len(m.entries)))
	}
}

// Close 停止清理 goroutine
func (m *MemoryManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *MemoryManager) Fingerprint(inputs ...any) (string, error) {
	return fingerprint(inputs)
}

func (m *MemoryManager) Reserve(ctx context.Context, key string, entry Entry, ttl time.Duration) (Entry, bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && time.Now().Before(e.expiresAt) {
		return e.entry, false, nil
	}
	m.entries[key] = &memoryEntry{entry: entry, expiresAt: time.Now().Add(ttl)}
	return entry, true, nil
}

func (m *MemoryManager) Lookup(ctx context.Context, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return Entry{}, false, nil
	}
	return e.entry, true, nil
}

func (m *MemoryManager) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}
