package worker

import (
	"context"
	"sync"
)

// Outcome is the result of processing one item.
type Outcome[T any] struct {
	Item     T
	WorkerID int
	Err      error
}

// Summary aggregates a finished fan-out.
type Summary struct {
	Succeeded int
	Failed    int
}

// Total is the number of processed items.
func (s Summary) Total() int {
	return s.Succeeded + s.Failed
}

// Manager runs a function over a batch of items with a bounded number of workers.
// Every item is processed; a failing item never stops its siblings.
type Manager[T any] struct {
	workerCount int
	onOutcome   func(Outcome[T])
}

// NewManager creates a new manager. workerCount <= 0 is coerced to 1.
func NewManager[T any](workerCount int) *Manager[T] {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Manager[T]{workerCount: workerCount}
}

// OnOutcome registers a callback invoked from the aggregating goroutine for
// every finished item, in completion order.
func (m *Manager[T]) OnOutcome(fn func(Outcome[T])) *Manager[T] {
	m.onOutcome = fn
	return m
}

// Process distributes items to workers and waits for all of them.
// Items not yet started when ctx is cancelled are reported as failed with ctx.Err().
func (m *Manager[T]) Process(ctx context.Context, items []T, fn func(ctx context.Context, item T) error) Summary {
	if len(items) == 0 {
		return Summary{}
	}

	jobChan := make(chan T, len(items))
	for _, item := range items {
		jobChan <- item
	}
	close(jobChan)

	workers := m.workerCount
	if workers > len(items) {
		workers = len(items)
	}

	// Results channel so aggregation needs no locking
	resultsChan := make(chan Outcome[T], len(items))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for item := range jobChan {
				var err error
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				} else {
					err = fn(ctx, item)
				}
				resultsChan <- Outcome[T]{Item: item, WorkerID: workerID, Err: err}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	var summary Summary
	for res := range resultsChan {
		if res.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
		if m.onOutcome != nil {
			m.onOutcome(res)
		}
	}
	return summary
}

// Fan is a shorthand for NewManager(workers).Process(ctx, items, fn).
func Fan[T any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, item T) error) Summary {
	return NewManager[T](workers).Process(ctx, items, fn)
}
