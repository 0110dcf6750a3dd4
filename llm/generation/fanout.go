package generation

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/mediaflow/internal/pool"
	"github.com/BaSui01/mediaflow/types"
)

var errNoArtifact = errors.New("branch returned no artifact")

// VariantOutcome is the result of one fan-out branch.
type VariantOutcome struct {
	Index    int
	Artifact *types.Artifact
	Err      error
	Attempts int
}

// OK reports whether the branch produced an artifact.
func (o VariantOutcome) OK() bool { return o.Err == nil && o.Artifact != nil }

// Branch is handed to each BranchFunc. It is owned by exactly one goroutine.
type Branch struct {
	Index    int
	attempts int
}

// Attempt records one call to the service.
func (b *Branch) Attempt() { b.attempts++ }

// BranchFunc produces one variant.
type BranchFunc func(ctx context.Context, b *Branch) (*types.Artifact, error)

// FanOut runs n branches concurrently and waits for all of them. A failing
// branch never cancels its siblings. Outcomes are returned in index order.
// When p is non-nil every branch holds one of its slots while running.
func FanOut(ctx context.Context, p *pool.BranchPool, n int, fn BranchFunc) []VariantOutcome {
	outcomes := make([]VariantOutcome, n)

	// 不使用 errgroup.WithContext：单个分支失败不能取消其他分支
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			b := &Branch{Index: i}
			var art *types.Artifact
			run := func(ctx context.Context) error {
				var err error
				art, err = fn(ctx, b)
				return err
			}

			var err error
			if p != nil {
				err = p.Run(ctx, run)
			} else {
				err = runRecovered(ctx, run)
			}
			if err == nil && art == nil {
				err = errNoArtifact
			}

			outcomes[i] = VariantOutcome{Index: i, Artifact: art, Err: err, Attempts: b.attempts}
			if err != nil {
				outcomes[i].Artifact = nil
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// runRecovered turns a panicking branch into a *pool.PanicError outcome.
func runRecovered(ctx context.Context, task pool.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &pool.PanicError{Value: r}
		}
	}()
	return task(ctx)
}

// Successful returns the artifacts of successful outcomes, preserving order.
func Successful(outcomes []VariantOutcome) []types.Artifact {
	var out []types.Artifact
	for _, o := range outcomes {
		if o.OK() {
			out = append(out, *o.Artifact)
		}
	}
	return out
}
