package concurrency

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// ProcessWithConcurrency runs tasks with at most max executing
// simultaneously; as each completes, the next queued task is launched. A
// task error does not stop the remaining tasks. If ctx is cancelled while
// waiting for a free slot, no further task is launched and ctx's error is
// returned; otherwise the error of the lowest-indexed failing task is
// returned. Either way it returns only after every launched task has
// finished, matching the Coordinator's "current batch always runs to
// completion" guarantee.
func ProcessWithConcurrency[T any](ctx context.Context, tasks []func(ctx context.Context) (T, error), max int) ([]T, error) {
	if max <= 0 {
		max = 1
	}

	results := make([]T, len(tasks))
	errs := make([]error, len(tasks))
	sem := semaphore.NewWeighted(int64(max))

	var lastAcquireErr error
	for i, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			lastAcquireErr = err
			break
		}
		go func(i int, task func(ctx context.Context) (T, error)) {
			defer sem.Release(1)
			results[i], errs[i] = task(ctx)
		}(i, task)
	}

	// Drain remaining capacity to ensure every launched goroutine finished.
	_ = sem.Acquire(context.Background(), int64(max))

	if lastAcquireErr != nil {
		return results, lastAcquireErr
	}
	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
