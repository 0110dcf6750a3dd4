// Package pool bounds how many generation branches run at once across all
// in-flight requests.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
)

// Task represents a unit of work.
type Task func(ctx context.Context) error

// PanicError is returned when a task panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// BranchPool is a counting semaphore shared by every fan-out. A branch
// waiting for a slot gives up when its context ends.
type BranchPool struct {
	slots  chan struct{}
	closed atomic.Bool

	// Metrics
	waiting   atomic.Int32
	active    atomic.Int32
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64

	panicHandler func(any)
}

// BranchPoolConfig configures the pool.
type BranchPoolConfig struct {
	MaxConcurrent int       `json:"max_concurrent" yaml:"max_concurrent"`
	PanicHandler  func(any) `json:"-" yaml:"-"`
}

// DefaultBranchPoolConfig returns 8 slots.
func DefaultBranchPoolConfig() BranchPoolConfig {
	return BranchPoolConfig{MaxConcurrent: 8}
}

// NewBranchPool creates a pool with cfg.MaxConcurrent slots.
func NewBranchPool(cfg BranchPoolConfig) *BranchPool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultBranchPoolConfig().MaxConcurrent
	}
	return &BranchPool{
		slots:        make(chan struct{}, cfg.MaxConcurrent),
		panicHandler: cfg.PanicHandler,
	}
}

// Run waits for a free slot, then runs task on the calling goroutine.
// It returns ctx.Err() if the context ends before a slot frees up.
func (p *BranchPool) Run(ctx context.Context, task Task) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	p.waiting.Add(1)
	select {
	case p.slots <- struct{}{}:
		p.waiting.Add(-1)
	case <-ctx.Done():
		p.waiting.Add(-1)
		p.rejected.Add(1)
		return ctx.Err()
	}
	defer func() { <-p.slots }()

	p.active.Add(1)
	err := p.execute(ctx, task)
	p.active.Add(-1)

	if err != nil {
		p.failed.Add(1)
	} else {
		p.completed.Add(1)
	}
	return err
}

func (p *BranchPool) execute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(r)
			}
			err = &PanicError{Value: r}
		}
	}()
	return task(ctx)
}

// Close rejects further tasks. Running tasks are not interrupted.
func (p *BranchPool) Close() {
	p.closed.Store(true)
}

// Capacity returns the number of slots.
func (p *BranchPool) Capacity() int { return cap(p.slots) }

// Stats returns pool statistics.
func (p *BranchPool) Stats() BranchPoolStats {
	return BranchPoolStats{
		Capacity:  cap(p.slots),
		Active:    int(p.active.Load()),
		Waiting:   int(p.waiting.Load()),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// BranchPoolStats contains pool statistics.
type BranchPoolStats struct {
	Capacity  int   `json:"capacity"`
	Active    int   `json:"active"`
	Waiting   int   `json:"waiting"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}
