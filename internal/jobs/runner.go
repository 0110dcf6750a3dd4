package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/internal/ctxkeys"
	"github.com/BaSui01/mediaflow/llm/generation"
	"github.com/BaSui01/mediaflow/types"
)

// ErrDraining 服务正在关闭，不再接收新任务
var ErrDraining = errors.New("job runner is draining")

// persistTimeout 写回任务状态的时限，独立于任务自身的 context
const persistTimeout = 10 * time.Second

// Submitter 执行一次生成请求
type Submitter interface {
	Submit(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error)
}

// Store 记录任务状态变化
type Store interface {
	MarkRunning(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, result *types.GenerationResult) error
	Fail(ctx context.Context, id string, code, message string) error
}

// Runner 在后台执行已受理的生成任务
type Runner struct {
	submitter Submitter
	store     Store
	timeout   time.Duration
	logger    *zap.Logger

	base     context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	draining bool
	active   atomic.Int64

	onDone func(id string)
}

// NewRunner 创建任务执行器；timeout 为单个任务的总时限，0 表示不限
func NewRunner(submitter Submitter, store Store, timeout time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Runner{
		submitter: submitter,
		store:     store,
		timeout:   timeout,
		logger:    logger.With(zap.String("component", "job_runner")),
		base:      base,
		cancel:    cancel,
	}
}

// OnDone 注册任务结束（成功或失败）后的回调
func (r *Runner) OnDone(fn func(id string)) {
	r.onDone = fn
}

// Launch 异步执行 req。请求方的 context 不会传入任务，任务只受
// 执行器时限与关闭流程控制。
func (r *Runner) Launch(req *types.GenerationRequest) error {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return ErrDraining
	}
	r.wg.Add(1)
	r.mu.Unlock()

	r.active.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.active.Add(-1)
		r.run(req)
	}()
	return nil
}

// Active 返回正在执行的任务数
func (r *Runner) Active() int {
	return int(r.active.Load())
}

// Drain 停止接收新任务并等待在途任务结束。ctx 到期后取消剩余任务
// 并返回 ctx.Err()。
func (r *Runner) Drain(ctx context.Context) error {
	r.mu.Lock()
	r.draining = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.logger.Warn("cancelling unfinished generation jobs", zap.Int("active", r.Active()))
		r.cancel()
		return ctx.Err()
	}
}

func (r *Runner) run(req *types.GenerationRequest) {
	ctx := ctxkeys.WithJobID(r.base, req.ID)
	var cancel context.CancelFunc
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	logger := r.logger.With(zap.String("job_id", req.ID), zap.String("modality", string(req.Modality)))

	if err := r.store.MarkRunning(ctx, req.ID); err != nil {
		logger.Error("failed to mark job running", zap.Error(err))
	}

	result, err := r.submit(ctx, req)

	pctx, pcancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer pcancel()

	if err != nil {
		if ferr := r.store.Fail(pctx, req.ID, generation.StatusLabel(err), err.Error()); ferr != nil {
			logger.Error("failed to record job failure", zap.Error(ferr))
		}
	} else if cerr := r.store.Complete(pctx, req.ID, result); cerr != nil {
		logger.Error("failed to record job result", zap.Error(cerr))
	}

	if r.onDone != nil {
		r.onDone(req.ID)
	}
}

// submit 将 Submit 中的 panic 转为错误，避免拖垮进程
func (r *Runner) submit(ctx context.Context, req *types.GenerationRequest) (result *types.GenerationResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("generation job panicked", zap.String("job_id", req.ID), zap.Any("panic", rec))
			result = nil
			err = types.NewError(types.ErrInternalError, "generation job panicked")
		}
	}()
	return r.submitter.Submit(ctx, req)
}
