package concurrency

import (
	"context"
	"time"

	"github.com/index-engine/engine/internal/config"
)

// MemorySampler reports current heap usage as a percentage (0-100) of the
// configured memory limit. Batch processing consults it before every batch.
type MemorySampler func() float64

// CleanupHook is invoked once heap usage crosses the critical threshold,
// before the next batch is scheduled — e.g. flushing an embedder's cache.
type CleanupHook func(ctx context.Context)

// BatchEvent is emitted by ProcessBatches for observability; the Project
// Coordinator forwards these onto the Event Bus.
type BatchEvent struct {
	Name           string
	BatchSize      int
	ItemsProcessed int
	Duration       time.Duration
	MemoryWarning  bool
}

// ProcessBatches partitions items into adaptively-sized batches and runs
// processor over each, growing or shrinking the next batch size based on
// wall-clock time against performanceThreshold, and forcing minSize plus a
// cleanup hook invocation once memory crosses the critical threshold.
func ProcessBatches[T any](
	ctx context.Context,
	cfg config.RuntimeConfig,
	items []T,
	name string,
	sampleMemory MemorySampler,
	cleanup CleanupHook,
	onEvent func(BatchEvent),
	processor func(ctx context.Context, batch []T) error,
) error {
	if len(items) == 0 {
		return nil
	}

	size := cfg.BatchInitialSize
	if size <= 0 {
		size = len(items)
	}

	processed := 0
	for processed < len(items) {
		if err := ctx.Err(); err != nil {
			return err
		}

		if sampleMemory != nil {
			heapPct := sampleMemory()
			if heapPct >= cfg.MemoryCriticalPct {
				if cleanup != nil {
					cleanup(ctx)
				}
				size = cfg.BatchMinSize
			} else if heapPct >= cfg.MemoryEmergencyPct {
				size = cfg.BatchMinSize
				if onEvent != nil {
					onEvent(BatchEvent{Name: name, BatchSize: size, MemoryWarning: true})
				}
			}
		}

		size = clampBatchSize(size, cfg)
		end := processed + size
		if end > len(items) {
			end = len(items)
		}
		batch := items[processed:end]

		start := time.Now()
		err := processor(ctx, batch)
		elapsed := time.Since(start)

		if onEvent != nil {
			onEvent(BatchEvent{Name: name, BatchSize: len(batch), ItemsProcessed: end, Duration: elapsed})
		}
		if err != nil {
			return err
		}

		if elapsed < cfg.PerformanceThreshold {
			size = int(float64(size) * cfg.BatchAdjustmentFactor)
		} else if elapsed > cfg.PerformanceThreshold {
			size = int(float64(size) / cfg.BatchAdjustmentFactor)
		}
		size = clampBatchSize(size, cfg)

		processed = end
	}
	return nil
}

func clampBatchSize(size int, cfg config.RuntimeConfig) int {
	if size < cfg.BatchMinSize {
		return cfg.BatchMinSize
	}
	if size > cfg.BatchMaxSize {
		return cfg.BatchMaxSize
	}
	return size
}
