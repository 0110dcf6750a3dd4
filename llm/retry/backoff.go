package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy 定义重试策略配置
// 纯指数退避，不加抖动：第 i 次重试前等待 BaseDelay * 2^i
type RetryPolicy struct {
	MaxAttempts int                                               // 最大尝试次数（含首次）
	BaseDelay   time.Duration                                     // 首次重试前的延迟
	Classify    func(error) Class                                 // 错误分类器，为空时使用 Classify
	OnRetry     func(attempt int, err error, delay time.Duration) // 重试回调
}

// DefaultRetryPolicy 返回默认的重试策略
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	}
}

// Delay returns the wait before the retry that follows attempt index i.
func (p *RetryPolicy) Delay(i int) time.Duration {
	return p.BaseDelay << uint(i)
}

// Retryer 重试器接口
type Retryer interface {
	// Do 执行函数，失败时根据策略重试
	Do(ctx context.Context, fn func() error) error

	// DoWithResult 执行函数并返回结果，失败时根据策略重试
	DoWithResult(ctx context.Context, fn func() (any, error)) (any, error)
}

// Error is the structured failure returned by a Retryer. It keeps the retry
// history so callers can inspect it instead of parsing log output.
type Error struct {
	Class    Class
	Attempts int
	Delays   []time.Duration
	Last     error
	// Interrupted is set when the context ended during a backoff wait.
	Interrupted error
}

func (e *Error) Error() string {
	if e.Interrupted != nil {
		return fmt.Sprintf("retry interrupted after %d attempt(s): %v (last error: %v)", e.Attempts, e.Interrupted, e.Last)
	}
	return fmt.Sprintf("%s error after %d attempt(s): %v", e.Class, e.Attempts, e.Last)
}

// Unwrap exposes both the last operation error and any interruption cause.
func (e *Error) Unwrap() []error {
	if e.Interrupted != nil {
		return []error{e.Last, e.Interrupted}
	}
	return []error{e.Last}
}

// backoffRetryer 基于指数退避的重试器实现
type backoffRetryer struct {
	policy *RetryPolicy
	logger *zap.Logger
}

// NewBackoffRetryer 创建指数退避重试器
func NewBackoffRetryer(policy *RetryPolicy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	p := *policy
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Classify == nil {
		p.Classify = Classify
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &backoffRetryer{
		policy: &p,
		logger: logger.With(zap.String("component", "retry")),
	}
}

// Do 实现 Retryer.Do
func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	_, err := r.DoWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

// DoWithResult 实现 Retryer.DoWithResult
func (r *backoffRetryer) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var delays []time.Duration

	for attempt := 0; ; attempt++ {
		result, err := fn()
		if err == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempts", attempt+1))
			}
			return result, nil
		}

		class := r.policy.Classify(err)
		if class == Fatal || attempt+1 >= r.policy.MaxAttempts {
			if class == Retryable {
				r.logger.Warn("retry budget exhausted",
					zap.Int("attempts", attempt+1),
					zap.Error(err),
				)
			}
			return nil, &Error{Class: class, Attempts: attempt + 1, Delays: delays, Last: err}
		}

		delay := r.policy.Delay(attempt)
		delays = append(delays, delay)

		r.logger.Debug("retrying after transient error",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt+1, err, delay)
		}

		// 等待延迟，同时监听 context 取消
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &Error{Class: class, Attempts: attempt + 1, Delays: delays, Last: err, Interrupted: ctx.Err()}
		case <-timer.C:
		}
	}
}
