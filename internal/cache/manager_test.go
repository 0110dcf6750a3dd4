package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/config"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

type cachedJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	manager, err := NewManager(Config{
		Addr:       mr.Addr(),
		Prefix:     "test:",
		DefaultTTL: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	return mr, manager
}

func TestManager_SetAndGetJSON(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.SetJSON(ctx, "gen-1", cachedJob{ID: "gen-1", Status: "SUCCEEDED"}, 0))
	assert.True(t, mr.Exists("test:gen-1"))
	assert.Equal(t, time.Minute, mr.TTL("test:gen-1"))

	var got cachedJob
	require.NoError(t, manager.GetJSON(ctx, "gen-1", &got))
	assert.Equal(t, "SUCCEEDED", got.Status)
}

func TestManager_Miss(t *testing.T) {
	_, manager := setupTestRedis(t)

	var got cachedJob
	err := manager.GetJSON(context.Background(), "missing", &got)
	assert.True(t, IsCacheMiss(err))
}

func TestManager_InvalidJSON(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("test:bad", "{not json"))
	var got cachedJob
	err := manager.GetJSON(ctx, "bad", &got)
	assert.Error(t, err)
	assert.False(t, IsCacheMiss(err))

	assert.Error(t, manager.SetJSON(ctx, "chan", make(chan int), 0))
}

func TestManager_Delete(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.SetJSON(ctx, "a", cachedJob{ID: "a"}, 0))
	require.NoError(t, manager.SetJSON(ctx, "b", cachedJob{ID: "b"}, 0))
	require.NoError(t, manager.Delete(ctx, "a", "b"))
	require.NoError(t, manager.Delete(ctx))

	assert.False(t, mr.Exists("test:a"))
	assert.False(t, mr.Exists("test:b"))
}

func TestManager_TTL(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.SetJSON(ctx, "short", cachedJob{ID: "short"}, time.Second))
	mr.FastForward(2 * time.Second)

	var got cachedJob
	assert.True(t, IsCacheMiss(manager.GetJSON(ctx, "short", &got)))
}

func TestManager_PingAndClose(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	assert.NoError(t, manager.Ping(ctx))
	assert.NotNil(t, manager.Client())
	assert.GreaterOrEqual(t, manager.GetStats().TotalConns, uint32(1))

	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())
	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
	assert.ErrorIs(t, manager.SetJSON(ctx, "x", cachedJob{}, 0), ErrClosed)
}

func TestManager_ConnectFailed(t *testing.T) {
	manager, err := NewManager(Config{Addr: "127.0.0.1:1"}, zap.NewNop())
	assert.Nil(t, manager)
	assert.Error(t, err)
}

func TestManager_HealthCheckLoopStops(t *testing.T) {
	mr := miniredis.RunT(t)
	manager, err := NewManager(Config{Addr: mr.Addr(), HealthCheckInterval: 5 * time.Millisecond}, zap.NewNop())
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, manager.Close())
}

func TestManager_Concurrent(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("job-%d", id)
			assert.NoError(t, manager.SetJSON(ctx, key, cachedJob{ID: key}, 0))
			var got cachedJob
			assert.NoError(t, manager.GetJSON(ctx, key, &got))
			assert.Equal(t, key, got.ID)
		}(i)
	}
	wg.Wait()
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.RedisConfig{Addr: "redis:6379", DB: 2, PoolSize: 16, MinIdleConns: 4})
	assert.Equal(t, "redis:6379", cfg.Addr)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 16, cfg.PoolSize)
	assert.Equal(t, "mediaflow:", cfg.Prefix)
	assert.Equal(t, time.Hour, cfg.DefaultTTL)
}
