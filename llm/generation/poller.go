package generation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/internal/metrics"
	"github.com/BaSui01/mediaflow/llm/video"
	"github.com/BaSui01/mediaflow/types"
)

// PollerConfig controls how long-running operations are awaited.
type PollerConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval"`
	// MaxWait caps the total time spent waiting on one operation.
	MaxWait time.Duration `json:"max_wait" yaml:"max_wait"`
}

// DefaultPollerConfig polls every 5s for at most 10 minutes.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval: 5 * time.Second,
		MaxWait:  10 * time.Minute,
	}
}

// Poller drives an operation to a terminal state.
type Poller struct {
	cfg     PollerConfig
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewPoller creates a Poller. collector may be nil.
func NewPoller(cfg PollerConfig, collector *metrics.Collector, logger *zap.Logger) *Poller {
	defaults := DefaultPollerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaults.MaxWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{cfg: cfg, metrics: collector, logger: logger.With(zap.String("component", "poller"))}
}

// Poll waits one interval, queries, and repeats until op is DONE or FAILED.
// A FAILED operation yields an OPERATION_FAILED error; exceeding MaxWait
// yields UPSTREAM_TIMEOUT. Errors from Query are returned unchanged so the
// caller's retry policy can classify them.
func (p *Poller) Poll(ctx context.Context, provider video.Provider, op *video.Operation) (*video.Operation, error) {
	if op.Terminal() {
		return p.finish(op)
	}

	ceiling := time.NewTimer(p.cfg.MaxWait)
	defer ceiling.Stop()
	// 每次查询结束后重新计时，慢查询不会让下一次查询提前
	wait := time.NewTimer(p.cfg.Interval)
	defer wait.Stop()

	started := time.Now()
	for polls := 1; ; polls++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ceiling.C:
			p.logger.Warn("operation exceeded max wait",
				zap.String("operation", op.ID),
				zap.Duration("max_wait", p.cfg.MaxWait),
			)
			return nil, types.NewError(types.ErrUpstreamTimeout,
				fmt.Sprintf("operation %s still running after %s", op.ID, p.cfg.MaxWait)).
				WithHTTPStatus(504).
				WithProvider(provider.Name())
		case <-wait.C:
		}

		next, err := provider.Query(ctx, op)
		p.metrics.RecordPoll(provider.Name())
		if err != nil {
			return nil, err
		}
		op = next

		if op.Terminal() {
			p.logger.Debug("operation finished",
				zap.String("operation", op.ID),
				zap.String("status", string(op.Status)),
				zap.Int("polls", polls),
				zap.Duration("elapsed", time.Since(started)),
			)
			return p.finish(op)
		}
		wait.Reset(p.cfg.Interval)
	}
}

func (p *Poller) finish(op *video.Operation) (*video.Operation, error) {
	if op.Status == video.StatusFailed {
		reason := op.Error
		if reason == "" {
			reason = "unknown error"
		}
		return nil, types.NewOperationError(op.ID, reason).WithProvider(op.Provider)
	}
	return op, nil
}
