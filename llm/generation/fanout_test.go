package generation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/mediaflow/internal/pool"
	"github.com/BaSui01/mediaflow/types"
)

func TestFanOut_OrderedByIndexNotCompletion(t *testing.T) {
	var mu sync.Mutex
	var finished []int

	// branch 2 finishes first, branch 0 last
	delays := []time.Duration{30 * time.Millisecond, 15 * time.Millisecond, 0}
	outcomes := FanOut(context.Background(), nil, 3, func(ctx context.Context, b *Branch) (*types.Artifact, error) {
		time.Sleep(delays[b.Index])
		mu.Lock()
		finished = append(finished, b.Index)
		mu.Unlock()
		return &types.Artifact{URI: string(rune('a' + b.Index))}, nil
	})

	require.Len(t, outcomes, 3)
	assert.Equal(t, 2, finished[0])
	for i, o := range outcomes {
		assert.Equal(t, i, o.Index)
		assert.True(t, o.OK())
	}
	arts := Successful(outcomes)
	assert.Equal(t, []string{"a", "b", "c"}, []string{arts[0].URI, arts[1].URI, arts[2].URI})
}

func TestFanOut_FailureDoesNotCancelSiblings(t *testing.T) {
	boom := errors.New("boom")
	var siblingCancelled atomic.Bool

	outcomes := FanOut(context.Background(), nil, 3, func(ctx context.Context, b *Branch) (*types.Artifact, error) {
		b.Attempt()
		if b.Index == 0 {
			return nil, boom
		}
		select {
		case <-ctx.Done():
			siblingCancelled.Store(true)
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
		return &types.Artifact{URI: "ok"}, nil
	})

	assert.False(t, siblingCancelled.Load())
	assert.ErrorIs(t, outcomes[0].Err, boom)
	assert.Nil(t, outcomes[0].Artifact)
	assert.Equal(t, 1, outcomes[0].Attempts)
	assert.True(t, outcomes[1].OK())
	assert.True(t, outcomes[2].OK())
	assert.Len(t, Successful(outcomes), 2)
}

func TestFanOut_NilArtifactIsFailure(t *testing.T) {
	outcomes := FanOut(context.Background(), nil, 1, func(ctx context.Context, b *Branch) (*types.Artifact, error) {
		return nil, nil
	})
	assert.ErrorIs(t, outcomes[0].Err, errNoArtifact)
	assert.Empty(t, Successful(outcomes))
}

func TestFanOut_SharedPoolBoundsBranches(t *testing.T) {
	p := pool.NewBranchPool(pool.BranchPoolConfig{MaxConcurrent: 2})
	var current, peak atomic.Int32

	outcomes := FanOut(context.Background(), p, 4, func(ctx context.Context, b *Branch) (*types.Artifact, error) {
		n := current.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return &types.Artifact{}, nil
	})

	assert.Len(t, Successful(outcomes), 4)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFanOut_PanicBecomesOutcomeError(t *testing.T) {
	p := pool.NewBranchPool(pool.BranchPoolConfig{MaxConcurrent: 2})
	outcomes := FanOut(context.Background(), p, 2, func(ctx context.Context, b *Branch) (*types.Artifact, error) {
		if b.Index == 1 {
			panic("bad branch")
		}
		return &types.Artifact{}, nil
	})
	assert.True(t, outcomes[0].OK())
	var pe *pool.PanicError
	assert.ErrorAs(t, outcomes[1].Err, &pe)
}

func TestFanOut_PanicWithoutPoolIsRecovered(t *testing.T) {
	outcomes := FanOut(context.Background(), nil, 3, func(ctx context.Context, b *Branch) (*types.Artifact, error) {
		if b.Index == 2 {
			panic("bad branch")
		}
		return &types.Artifact{}, nil
	})
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].OK())
	assert.True(t, outcomes[1].OK())
	var pe *pool.PanicError
	require.ErrorAs(t, outcomes[2].Err, &pe)
	assert.Equal(t, "bad branch", pe.Value)
	assert.Nil(t, outcomes[2].Artifact)
}

func TestProperty_FanOut_ExactlyNOutcomesInOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 4).Draw(rt, "n")
		fails := rapid.SliceOfN(rapid.Bool(), n, n).Draw(rt, "fails")

		outcomes := FanOut(context.Background(), nil, n, func(ctx context.Context, b *Branch) (*types.Artifact, error) {
			if fails[b.Index] {
				return nil, errors.New("failed")
			}
			return &types.Artifact{Metadata: map[string]string{"i": string(rune('0' + b.Index))}}, nil
		})

		if len(outcomes) != n {
			rt.Fatalf("got %d outcomes, want %d", len(outcomes), n)
		}
		wantOK := 0
		for i, o := range outcomes {
			if o.Index != i {
				rt.Fatalf("outcome %d has index %d", i, o.Index)
			}
			if o.OK() == fails[i] {
				rt.Fatalf("outcome %d ok=%v but fail=%v", i, o.OK(), fails[i])
			}
			if !fails[i] {
				wantOK++
			}
		}
		arts := Successful(outcomes)
		if len(arts) != wantOK {
			rt.Fatalf("got %d artifacts, want %d", len(arts), wantOK)
		}
		prev := rune(-1)
		for _, a := range arts {
			r := rune(a.Metadata["i"][0])
			if r <= prev {
				rt.Fatal("artifacts out of index order")
			}
			prev = r
		}
	})
}
