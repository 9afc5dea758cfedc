package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProcessRunsEveryItemDespiteFailures(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	var seen atomic.Int32

	summary := Fan(context.Background(), 3, items, func(_ context.Context, n int) error {
		seen.Add(1)
		if n%2 == 0 {
			return errors.New("even")
		}
		return nil
	})

	require.Equal(t, int32(6), seen.Load())
	require.Equal(t, 3, summary.Succeeded)
	require.Equal(t, 3, summary.Failed)
	require.Equal(t, 6, summary.Total())
}

func TestProcessRespectsWorkerBound(t *testing.T) {
	var running, peak atomic.Int32
	items := make([]int, 20)

	Fan(context.Background(), 4, items, func(_ context.Context, _ int) error {
		cur := running.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	})

	require.LessOrEqual(t, peak.Load(), int32(4))
	require.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestProcessZeroWorkersCoerced(t *testing.T) {
	summary := Fan(context.Background(), 0, []string{"a", "b"}, func(context.Context, string) error { return nil })
	require.Equal(t, 2, summary.Succeeded)
}

func TestProcessEmpty(t *testing.T) {
	summary := Fan(context.Background(), 4, nil, func(context.Context, int) error { return nil })
	require.Equal(t, Summary{}, summary)
}

func TestProcessCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called atomic.Int32
	summary := Fan(ctx, 2, []int{1, 2, 3}, func(context.Context, int) error {
		called.Add(1)
		return nil
	})
	require.Equal(t, int32(0), called.Load())
	require.Equal(t, 3, summary.Failed)
}

func TestOnOutcomeSeesEveryItem(t *testing.T) {
	var got []int
	NewManager[int](2).
		OnOutcome(func(o Outcome[int]) { got = append(got, o.Item) }).
		Process(context.Background(), []int{1, 2, 3}, func(context.Context, int) error { return nil })
	require.ElementsMatch(t, []int{1, 2, 3}, got)
}
