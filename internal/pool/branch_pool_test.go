package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchPool_BoundsConcurrency(t *testing.T) {
	p := NewBranchPool(BranchPoolConfig{MaxConcurrent: 2})

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Run(context.Background(), func(ctx context.Context) error {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	stats := p.Stats()
	assert.Equal(t, int64(8), stats.Submitted)
	assert.Equal(t, int64(8), stats.Completed)
	assert.Equal(t, 0, stats.Active)
}

func TestBranchPool_ContextCancelledWhileWaiting(t *testing.T) {
	p := NewBranchPool(BranchPoolConfig{MaxConcurrent: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Run(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Run(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), p.Stats().Rejected)

	close(release)
}

func TestBranchPool_ErrorsAndPanics(t *testing.T) {
	var recovered any
	p := NewBranchPool(BranchPoolConfig{MaxConcurrent: 1, PanicHandler: func(v any) { recovered = v }})

	boom := errors.New("boom")
	assert.ErrorIs(t, p.Run(context.Background(), func(ctx context.Context) error { return boom }), boom)

	err := p.Run(context.Background(), func(ctx context.Context) error { panic("bad") })
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad", pe.Value)
	assert.Equal(t, "bad", recovered)

	// slot was released after the panic
	assert.NoError(t, p.Run(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, int64(2), p.Stats().Failed)
}

func TestBranchPool_Closed(t *testing.T) {
	p := NewBranchPool(BranchPoolConfig{})
	assert.Equal(t, 8, p.Capacity())
	p.Close()
	assert.ErrorIs(t, p.Run(context.Background(), func(ctx context.Context) error { return nil }), ErrPoolClosed)
}
