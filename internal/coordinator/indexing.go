package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/index-engine/engine/internal/catalog"
	"github.com/index-engine/engine/internal/concurrency"
	"github.com/index-engine/engine/internal/config"
	"github.com/index-engine/engine/internal/embedder"
	"github.com/index-engine/engine/internal/eventbus"
	"github.com/index-engine/engine/internal/project"
	"github.com/index-engine/engine/internal/recovery"
	"github.com/index-engine/engine/internal/traversal"
	"github.com/index-engine/engine/internal/vectorstore"
)

// largeFileWarningBytes is the per-file large-file warning threshold from
// spec §4.8, distinct from (and smaller than) the traversal-stage
// maxFileSize skip threshold.
const largeFileWarningBytes = 1 << 20 // 1 MB

// memoryDeltaWarningPct is the per-file heap-delta threshold above which a
// memory_warning event fires.
const memoryDeltaWarningPct = 80.0

// retryConfigFor adapts a recovery.Strategy's retry count and base delay
// onto the runtime's shared backoff policy (max delay, backoff factor,
// jitter), since Strategy itself only specifies those two per-kind knobs.
func retryConfigFor(strategy recovery.Strategy, base config.RetryConfig) config.RetryConfig {
	cfg := base
	cfg.MaxAttempts = strategy.MaxRetries + 1
	if strategy.MaxRetries <= 0 {
		cfg.MaxAttempts = 1
	}
	if strategy.BaseDelay > 0 {
		cfg.BaseDelay = strategy.BaseDelay
	}
	return cfg
}

// runIndexing implements the four-step indexing algorithm from spec §4.8.
func (c *Coordinator) runIndexing(ctx context.Context, id, path string, st *projectState, provider embedder.Provider) {
	st.mu.Lock()
	st.status.State = StateIndexing
	st.status.StartedAt = nowUTC()
	st.status.IndexedFiles = 0
	st.status.FailedFiles = 0
	st.mu.Unlock()

	result, err := c.traverse(path)
	if err != nil {
		c.finishFailed(id, st, fmt.Errorf("coordinator: traversal: %w", err))
		return
	}

	st.mu.Lock()
	st.status.TotalFiles = len(result.Files)
	st.mu.Unlock()

	collectionName := project.CollectionName(id)

	batchErr := concurrency.ProcessBatches(
		ctx,
		c.cfg.Runtime,
		result.Files,
		"index:"+id,
		c.sampleMem,
		c.cleanup,
		func(ev concurrency.BatchEvent) {
			if ev.MemoryWarning {
				c.bus.PublishMemoryWarning(id, c.sampleMem(), c.cfg.Runtime.MemoryEmergencyPct)
			}
		},
		func(ctx context.Context, batch []traversal.FileRecord) error {
			st.mu.Lock()
			stopped := st.stopRequested
			st.mu.Unlock()
			if stopped {
				return errStopped
			}

			outcomes := c.processBatch(ctx, id, collectionName, provider, batch)

			st.mu.Lock()
			for _, o := range outcomes {
				if o.err != nil {
					st.status.FailedFiles++
				} else {
					st.status.IndexedFiles++
				}
			}
			processed := st.status.IndexedFiles + st.status.FailedFiles
			percent := 0
			if st.status.TotalFiles > 0 {
				percent = processed * 100 / st.status.TotalFiles
			}
			st.mu.Unlock()

			c.bus.PublishIndexingProgress(id, percent)
			return nil
		},
	)

	if batchErr != nil {
		if errors.Is(batchErr, errStopped) {
			st.mu.Lock()
			st.status.State = StateStopped
			st.mu.Unlock()
			c.persistRun(id, path, st, "stopped")
			return
		}
		c.finishFailed(id, st, batchErr)
		return
	}

	st.mu.Lock()
	st.status.LastIndexedAt = nowUTC()
	if st.status.FailedFiles > 0 {
		st.status.State = StateCompletedPartial
	} else {
		st.status.State = StateCompleted
	}
	st.mu.Unlock()

	if err := c.projects.Touch(id, true); err != nil {
		c.logger.Printf("coordinator: touching project %s: %v", id, err)
	}
	c.persistRun(id, path, st, "completed")
	c.bus.PublishIndexingCompleted(id)
}

func (c *Coordinator) finishFailed(id string, st *projectState, err error) {
	st.mu.Lock()
	st.status.State = StateFailed
	st.status.Err = err
	st.mu.Unlock()

	c.logger.Printf("coordinator: project %s indexing failed: %v", id, err)
	c.bus.PublishIndexingError(id, err)
	c.persistRun(id, st.status.Path, st, "failed")
}

func (c *Coordinator) persistRun(id, path string, st *projectState, status string) {
	st.mu.Lock()
	run := catalog.CompletedRun{
		ProjectID:    id,
		ProjectPath:  path,
		TotalFiles:   st.status.TotalFiles,
		IndexedFiles: st.status.IndexedFiles,
		FailedFiles:  st.status.FailedFiles,
		Status:       status,
		CompletedAt:  nowUTC(),
	}
	st.mu.Unlock()

	if err := c.catalog.RecordCompletedRun(run); err != nil {
		c.logger.Printf("coordinator: recording completed run for %s: %v", id, err)
	}
}

type fileOutcome struct {
	relPath string
	err     error
}

// processBatch runs processFile over a batch concurrently, up to the
// runtime's configured max concurrency.
func (c *Coordinator) processBatch(ctx context.Context, id, collectionName string, provider embedder.Provider, batch []traversal.FileRecord) []fileOutcome {
	tasks := make([]func(ctx context.Context) (fileOutcome, error), len(batch))
	for i, rec := range batch {
		rec := rec
		tasks[i] = func(ctx context.Context) (fileOutcome, error) {
			err := c.processFile(ctx, id, collectionName, provider, rec)
			return fileOutcome{relPath: rec.RelPath, err: err}, nil
		}
	}

	results, _ := concurrency.ProcessWithConcurrency(ctx, tasks, c.cfg.Runtime.MaxConcurrency)
	return results
}

// processFile is the per-file unit of work shared by the initial indexing
// run and handle_file_change's incremental path: read, chunk, embed,
// upsert, update the Hash Catalog.
func (c *Coordinator) processFile(ctx context.Context, id, collectionName string, provider embedder.Provider, rec traversal.FileRecord) error {
	start := time.Now()
	memBefore := heapAllocMB()

	content, err := os.ReadFile(rec.AbsPath)
	if err != nil {
		return recovery.New(recovery.TransientIO, rec.RelPath, err)
	}
	if int64(len(content)) > largeFileWarningBytes {
		c.logger.Printf("coordinator: %s exceeds %d bytes, indexing may be slow", rec.RelPath, largeFileWarningBytes)
	}

	chunks := c.chunker.Chunk(string(content), rec.Language, rec.RelPath)
	if len(chunks) == 0 {
		return nil
	}

	requests := make([]embedder.EmbedRequest, len(chunks))
	for i, ch := range chunks {
		requests[i] = embedder.EmbedRequest{Text: ch.Content, Metadata: embedder.Metadata{"chunk_id": ch.ID}}
	}

	embedStrategy := recovery.Lookup(recovery.EmbedderUnavailable)
	var embedded []embedder.EmbedResult
	err = concurrency.ExecuteWithRetry(ctx, retryConfigFor(embedStrategy, c.cfg.Retry), "embed:"+rec.RelPath, concurrency.RetryAll, func(ctx context.Context) error {
		var embedErr error
		embedded, embedErr = provider.Embed(ctx, requests)
		return embedErr
	})
	if err != nil {
		return recovery.New(recovery.EmbedderUnavailable, rec.RelPath, err)
	}
	if len(embedded) != len(chunks) {
		return recovery.New(recovery.EmbedderUnavailable, rec.RelPath, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embedded), len(chunks)))
	}

	points := make([]vectorstore.VectorPoint, len(chunks))
	for i, ch := range chunks {
		points[i] = vectorstore.VectorPoint{
			ID:     vectorPointID(rec.RelPath, ch.StartLine, ch.EndLine, ch.Content),
			Vector: embedded[i].Vector,
			Payload: map[string]string{
				"file_path":  rec.RelPath,
				"language":   rec.Language,
				"chunk_type": ch.ChunkType,
				"start_line": strconv.Itoa(ch.StartLine),
				"end_line":   strconv.Itoa(ch.EndLine),
			},
		}
	}

	storeStrategy := recovery.Lookup(recovery.VectorStoreFailure)
	err = concurrency.ExecuteWithRetry(ctx, retryConfigFor(storeStrategy, c.cfg.Retry), "upsert:"+rec.RelPath, concurrency.RetryAll, func(ctx context.Context) error {
		return c.store.Upsert(ctx, collectionName, points)
	})
	if err != nil {
		return recovery.New(recovery.VectorStoreFailure, rec.RelPath, err)
	}

	if err := c.catalog.Put(id, rec.RelPath, rec.ContentHash, catalog.Metadata{
		Size: rec.Size, ModTime: rec.ModTime, Language: rec.Language, FileType: rec.Extension,
	}); err != nil {
		return recovery.New(recovery.IndexUpdateFailed, rec.RelPath, err)
	}

	elapsed := time.Since(start)
	memAfter := heapAllocMB()
	deltaPct := 0.0
	if c.cfg.Runtime.MemoryLimitMB > 0 {
		deltaPct = ((memAfter - memBefore) / float64(c.cfg.Runtime.MemoryLimitMB)) * 100
	}

	c.bus.PublishIndexingMetrics(id, rec.RelPath, eventbus.FileMetrics{
		FileSize:       rec.Size,
		ChunkCount:     len(chunks),
		ProcessingTime: elapsed.Nanoseconds(),
		MemoryDeltaPct: deltaPct,
	})
	if deltaPct > memoryDeltaWarningPct {
		c.bus.PublishMemoryWarning(id, deltaPct, memoryDeltaWarningPct)
	}

	return nil
}
