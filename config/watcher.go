// 配置文件变更监听。
//
// 按修改时间轮询配置文件，变更后重新加载并校验，再通知回调。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadCallback 在新配置通过校验后调用
type ReloadCallback func(oldConfig, newConfig *Config)

// Watcher 轮询一个配置文件并在变更时重新加载
type Watcher struct {
	mu sync.RWMutex

	loader   *Loader
	path     string
	interval time.Duration
	current  *Config
	lastMod  time.Time

	callbacks []ReloadCallback
	logger    *zap.Logger
}

// WatcherOption configures the Watcher
type WatcherOption func(*Watcher)

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.interval = d
	}
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher 创建监听器；initial 是当前生效的配置
func NewWatcher(path string, initial *Config, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		loader:   NewLoader().WithConfigPath(path).WithValidator((*Config).Validate),
		path:     path,
		interval: time.Second,
		current:  initial,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if info, err := os.Stat(path); err == nil {
		w.lastMod = info.ModTime()
	}
	return w
}

// OnReload registers a callback for accepted reloads
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Current 返回当前生效的配置
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run 阻塞轮询直到 ctx 结束
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("config watcher started",
		zap.String("path", w.path),
		zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Check(); err != nil {
				w.logger.Warn("config reload rejected", zap.Error(err))
			}
		}
	}
}

// Check 检查一次文件；文件有变化且新配置有效时返回 true
func (w *Watcher) Check() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", w.path, err)
	}

	w.mu.Lock()
	if !info.ModTime().After(w.lastMod) {
		w.mu.Unlock()
		return false, nil
	}
	// 无论成功与否都记下修改时间，坏文件不会被反复加载
	w.lastMod = info.ModTime()
	w.mu.Unlock()

	next, err := w.loader.Load()
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	old := w.current
	w.current = next
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("config reloaded", zap.String("path", w.path))
	for _, cb := range callbacks {
		cb(old, next)
	}
	return true, nil
}
