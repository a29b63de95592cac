package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/index-engine/engine/internal/config"
)

func testRetryConfig() config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     1 * time.Millisecond,
		MaxDelay:      10 * time.Millisecond,
		BackoffFactor: 2,
		Jitter:        0,
	}
}

func TestExecuteWithRetry_succeedsAfterTransientFailures(t *testing.T) {
	var attempts int32
	err := ExecuteWithRetry(context.Background(), testRetryConfig(), "op", RetryAll, func(ctx context.Context) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts)
}

func TestExecuteWithRetry_nonRetryableFailsImmediately(t *testing.T) {
	var attempts int32
	classify := func(err error) bool { return false }
	err := ExecuteWithRetry(context.Background(), testRetryConfig(), "op", classify, func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("permanent")
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts)
}

func TestExecuteWithRetry_exhaustionReturnsWrappedError(t *testing.T) {
	err := ExecuteWithRetry(context.Background(), testRetryConfig(), "op", RetryAll, func(ctx context.Context) error {
		return errors.New("always fails")
	})
	require.Error(t, err)
	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
}

func TestExecuteWithRetry_respectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ExecuteWithRetry(ctx, testRetryConfig(), "op", RetryAll, func(ctx context.Context) error {
		return errors.New("should not matter")
	})
	require.Error(t, err)
}

func TestProcessWithConcurrency_boundsInFlightCount(t *testing.T) {
	var current, max int32
	tasks := make([]func(ctx context.Context) (int, error), 20)
	for i := range tasks {
		i := i
		tasks[i] = func(ctx context.Context) (int, error) {
			n := atomic.AddInt32(&current, 1)
			for {
				m := atomic.LoadInt32(&max)
				if n <= m || atomic.CompareAndSwapInt32(&max, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&current, -1)
			return i, nil
		}
	}

	results, err := ProcessWithConcurrency(context.Background(), tasks, 4)
	require.NoError(t, err)
	assert.Len(t, results, 20)
	assert.LessOrEqual(t, atomic.LoadInt32(&max), int32(4))
}

func TestProcessWithConcurrency_propagatesFirstError(t *testing.T) {
	boom := errors.New("boom")
	tasks := []func(ctx context.Context) (int, error){
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 0, boom },
	}
	_, err := ProcessWithConcurrency(context.Background(), tasks, 2)
	require.Error(t, err)
}

func testRuntimeConfig() config.RuntimeConfig {
	return config.RuntimeConfig{
		BatchInitialSize:      2,
		BatchMinSize:          1,
		BatchMaxSize:          8,
		BatchAdjustmentFactor: 2,
		PerformanceThreshold:  50 * time.Millisecond,
		MemoryEmergencyPct:    80,
		MemoryCriticalPct:     90,
	}
}

func TestProcessBatches_growsBatchSizeWhenFast(t *testing.T) {
	items := make([]int, 20)
	var sizes []int
	err := ProcessBatches(context.Background(), testRuntimeConfig(), items, "fast", nil, nil,
		func(e BatchEvent) { sizes = append(sizes, e.BatchSize) },
		func(ctx context.Context, batch []int) error { return nil },
	)
	require.NoError(t, err)
	require.NotEmpty(t, sizes)
	assert.GreaterOrEqual(t, sizes[len(sizes)-1], sizes[0])
}

func TestProcessBatches_shrinksWhenSlow(t *testing.T) {
	items := make([]int, 10)
	cfg := testRuntimeConfig()
	cfg.PerformanceThreshold = time.Microsecond
	var sizes []int
	err := ProcessBatches(context.Background(), cfg, items, "slow", nil, nil,
		func(e BatchEvent) { sizes = append(sizes, e.BatchSize) },
		func(ctx context.Context, batch []int) error { time.Sleep(2 * time.Millisecond); return nil },
	)
	require.NoError(t, err)
	require.True(t, len(sizes) >= 2)
	assert.LessOrEqual(t, sizes[1], sizes[0])
}

func TestProcessBatches_memoryCriticalForcesMinAndCleanup(t *testing.T) {
	items := make([]int, 10)
	cfg := testRuntimeConfig()
	var cleaned bool
	sampler := func() float64 { return 95 }
	err := ProcessBatches(context.Background(), cfg, items, "mem", sampler,
		func(ctx context.Context) { cleaned = true },
		nil,
		func(ctx context.Context, batch []int) error {
			assert.Len(t, batch, cfg.BatchMinSize)
			return nil
		},
	)
	require.NoError(t, err)
	assert.True(t, cleaned)
}

func TestProcessBatches_memoryEmergencyEmitsWarning(t *testing.T) {
	items := make([]int, 5)
	cfg := testRuntimeConfig()
	sampler := func() float64 { return 85 }
	var warned bool
	err := ProcessBatches(context.Background(), cfg, items, "mem", sampler, nil,
		func(e BatchEvent) {
			if e.MemoryWarning {
				warned = true
			}
		},
		func(ctx context.Context, batch []int) error { return nil },
	)
	require.NoError(t, err)
	assert.True(t, warned)
}

func TestProcessBatches_propagatesProcessorError(t *testing.T) {
	items := make([]int, 5)
	boom := errors.New("batch failed")
	err := ProcessBatches(context.Background(), testRuntimeConfig(), items, "err", nil, nil, nil,
		func(ctx context.Context, batch []int) error { return boom },
	)
	require.ErrorIs(t, err, boom)
}
