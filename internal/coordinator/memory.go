package coordinator

import (
	"context"
	"runtime"

	"github.com/index-engine/engine/internal/concurrency"
)

// DefaultMemorySampler reports current heap usage as a percentage of
// limitMB, the basis the runtime's emergency/critical thresholds are
// expressed against.
func DefaultMemorySampler(limitMB int) concurrency.MemorySampler {
	if limitMB <= 0 {
		limitMB = 1024
	}
	limitBytes := float64(limitMB) * 1024 * 1024
	return func() float64 {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return (float64(m.HeapAlloc) / limitBytes) * 100
	}
}

// DefaultCleanupHook is the cooperative cleanup invoked once the critical
// memory threshold is crossed. It forces a GC pass; an embedder with its
// own cache (not modeled by this engine's Provider contract) would flush
// it here too.
func DefaultCleanupHook() concurrency.CleanupHook {
	return func(ctx context.Context) {
		runtime.GC()
	}
}

func heapAllocMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / (1024 * 1024)
}
