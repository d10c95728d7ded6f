package facet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/lynx/internal/apperr"
)

func constant(v any) Func {
	return func(context.Context, Input) (any, error) { return v, nil }
}

func TestExpand(t *testing.T) {
	a := New(nil).Register("tags", constant(1)).Register("levels", constant(2)).RegisterEvents("events", constant(3))

	names, err := a.Expand([]string{"levels", "tags", "levels"})
	require.NoError(t, err)
	assert.Equal(t, []string{"levels", "tags"}, names)

	names, err = a.Expand([]string{"tags", "all"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tags", "levels", "events"}, names)

	_, err = a.Expand([]string{"colors"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), `"colors" is not a facet; must be one of: all, tags, levels, events`)

	names, err = a.Expand(nil)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestNeedsEvents(t *testing.T) {
	a := New(nil).Register("tags", constant(1)).RegisterEvents("events", constant(3))
	assert.False(t, a.NeedsEvents([]string{"tags"}))
	assert.True(t, a.NeedsEvents([]string{"tags", "events"}))
}

func TestCompute_RunsConcurrentlyAndMerges(t *testing.T) {
	const n = 4
	var started sync.WaitGroup
	started.Add(n)
	// Every facet blocks until all have started; this only completes when
	// the pool runs them side by side.
	barrier := func(v any) Func {
		return func(ctx context.Context, in Input) (any, error) {
			started.Done()
			started.Wait()
			return v, nil
		}
	}

	var observed atomic.Int32
	a := New(func(string, time.Duration) { observed.Add(1) })
	names := []string{"a", "b", "c", "d"}
	for i, name := range names {
		a.Register(name, barrier(i))
	}

	done := make(chan map[string]any, 1)
	go func() {
		out, err := a.Compute(context.Background(), names, Input{})
		assert.NoError(t, err)
		done <- out
	}()

	select {
	case out := <-done:
		assert.Equal(t, map[string]any{"a": 0, "b": 1, "c": 2, "d": 3}, out)
	case <-time.After(5 * time.Second):
		t.Fatal("facets did not run concurrently")
	}
	assert.Equal(t, int32(n), observed.Load())
}

func TestCompute_PassesInputs(t *testing.T) {
	a := New(nil).
		Register("ids", func(_ context.Context, in Input) (any, error) { return len(in.IDs), nil }).
		RegisterEvents("events", func(_ context.Context, in Input) (any, error) { return len(in.EventIDs), nil })

	out, err := a.Compute(context.Background(), []string{"ids", "events"}, Input{IDs: []int64{1, 2, 3}, EventIDs: []int64{9}})
	require.NoError(t, err)
	assert.Equal(t, 3, out["ids"])
	assert.Equal(t, 1, out["events"])
}

func TestCompute_FailureCancels(t *testing.T) {
	boom := errors.New("boom")
	a := New(nil).
		Register("bad", func(context.Context, Input) (any, error) { return nil, boom }).
		Register("slow", func(ctx context.Context, _ Input) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	_, err := a.Compute(context.Background(), []string{"bad", "slow"}, Input{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "facet bad")
}

func TestCompute_Empty(t *testing.T) {
	out, err := New(nil).Compute(context.Background(), nil, Input{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRegister_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		New(nil).Register("tags", constant(1)).Register("tags", constant(2))
	})
}
