// Package coordinator implements the Project Coordinator: the per-project
// indexing state machine and the indexing algorithm described in spec §4.8,
// wiring together traversal, the chunker, the embedder and vector store
// contracts, the hash catalog, and the event bus.
package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/index-engine/engine/internal/catalog"
	"github.com/index-engine/engine/internal/chunk"
	"github.com/index-engine/engine/internal/concurrency"
	"github.com/index-engine/engine/internal/config"
	"github.com/index-engine/engine/internal/embedder"
	"github.com/index-engine/engine/internal/eventbus"
	"github.com/index-engine/engine/internal/pathfilter"
	"github.com/index-engine/engine/internal/project"
	"github.com/index-engine/engine/internal/traversal"
	"github.com/index-engine/engine/internal/vectorstore"
	"github.com/index-engine/engine/internal/watch"
)

// EmbedderResolver returns the embedding provider to use for name (the
// `embedder` configuration knob's value for a given project).
type EmbedderResolver func(name string) (embedder.Provider, error)

var errStopped = errors.New("coordinator: stop_indexing requested")

type projectState struct {
	mu            sync.Mutex
	status        Status
	stopRequested bool
	embedderName  string
}

// Coordinator is the Project Coordinator.
type Coordinator struct {
	cfg       config.Config
	projects  *project.Manager
	catalog   *catalog.Catalog
	store     vectorstore.Store
	bus       *eventbus.Bus
	chunker   *chunk.Chunker
	resolver  EmbedderResolver
	logger    *log.Logger
	sampleMem concurrency.MemorySampler
	cleanup   concurrency.CleanupHook

	mu       sync.Mutex
	statuses map[string]*projectState
	watchers map[string]watch.Watcher
}

// New builds a Coordinator that samples memory with
// DefaultMemorySampler(cfg.Runtime.MemoryLimitMB) and uses
// DefaultCleanupHook.
func New(
	cfg config.Config,
	projects *project.Manager,
	cat *catalog.Catalog,
	store vectorstore.Store,
	bus *eventbus.Bus,
	chunker *chunk.Chunker,
	resolver EmbedderResolver,
	logger *log.Logger,
) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		cfg:       cfg,
		projects:  projects,
		catalog:   cat,
		store:     store,
		bus:       bus,
		chunker:   chunker,
		resolver:  resolver,
		logger:    logger,
		sampleMem: DefaultMemorySampler(cfg.Runtime.MemoryLimitMB),
		cleanup:   DefaultCleanupHook(),
		statuses:  make(map[string]*projectState),
		watchers:  make(map[string]watch.Watcher),
	}
}

// RegisterWatcher associates a live Watcher with a project id, so
// DeleteProject can tear it down. Per spec §5, stop_indexing never stops a
// project's watcher; only delete_project does.
func (c *Coordinator) RegisterWatcher(id string, w watch.Watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers[id] = w
}

// LoadPersisted hydrates in-memory status for projects whose completed runs
// survived a restart, so all_statuses() and get_status() reflect history
// the coordinator itself never ran this process lifetime.
func (c *Coordinator) LoadPersisted() error {
	runs, err := c.catalog.AllCompletedRuns()
	if err != nil {
		return fmt.Errorf("coordinator: loading persisted runs: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, run := range runs {
		if _, exists := c.statuses[run.ProjectID]; exists {
			continue
		}
		state := StateCompleted
		if run.FailedFiles > 0 {
			state = StateCompletedPartial
		}
		if run.Status == "failed" {
			state = StateFailed
		} else if run.Status == "stopped" {
			state = StateStopped
		}
		c.statuses[run.ProjectID] = &projectState{status: Status{
			ProjectID:     run.ProjectID,
			Path:          run.ProjectPath,
			State:         state,
			TotalFiles:    run.TotalFiles,
			IndexedFiles:  run.IndexedFiles,
			FailedFiles:   run.FailedFiles,
			LastIndexedAt: run.CompletedAt,
		}}
	}
	return nil
}

// StartIndexing generates or fetches the project id, enforces the
// AlreadyIndexing guard, drops the prior collection on reindex, resolves
// the embedder dimension, creates the target collection, and launches the
// indexing algorithm in the background.
func (c *Coordinator) StartIndexing(ctx context.Context, path string, opts Options) (string, error) {
	id, err := c.projects.GenerateOrFetch(path)
	if err != nil {
		return "", fmt.Errorf("coordinator: resolving project id: %w", err)
	}

	st, isReindex, err := c.prepareStart(id, path)
	if err != nil {
		return "", err
	}

	provider, err := c.resolver(opts.Embedder)
	if err != nil {
		return "", fmt.Errorf("coordinator: resolving embedder %q: %w", opts.Embedder, err)
	}

	collectionName := project.CollectionName(id)
	if isReindex {
		// Dropping the collection is enough: every file gets re-chunked and
		// re-embedded this run, which overwrites its Hash Catalog row via
		// the normal processFile path regardless of what was there before.
		if err := c.store.DeleteCollection(ctx, collectionName); err != nil {
			c.logger.Printf("coordinator: drop prior collection for %s: %v", id, err)
		}
	}

	dim := embedder.ResolveDimensions(ctx, provider, opts.Embedder)
	if err := c.store.CreateCollection(ctx, collectionName, dim, vectorstore.Cosine); err != nil {
		return "", fmt.Errorf("coordinator: creating collection for %s: %w", id, err)
	}
	if err := c.catalog.EnsureProject(id); err != nil {
		return "", fmt.Errorf("coordinator: ensuring project row for %s: %w", id, err)
	}

	st.mu.Lock()
	st.embedderName = opts.Embedder
	st.mu.Unlock()

	c.bus.PublishIndexingStarted(id)
	go c.runIndexing(context.Background(), id, path, st, provider)

	return id, nil
}

// prepareStart validates the AlreadyIndexing guard and reports whether this
// start is a reindex of a previously completed project.
func (c *Coordinator) prepareStart(id, path string) (*projectState, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, exists := c.statuses[id]
	if !exists {
		st = &projectState{status: Status{ProjectID: id, Path: path, State: StateQueued}}
		c.statuses[id] = st
		return st, false, nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.status.State == StateIndexing {
		return nil, false, &AlreadyIndexingError{ProjectID: id}
	}
	wasCompleted := st.status.State == StateCompleted || st.status.State == StateCompletedPartial
	st.status = Status{ProjectID: id, Path: path, State: StateQueued}
	st.stopRequested = false
	return st, wasCompleted, nil
}

// Reindex drops the prior collection (best-effort) and clears both status
// tables before delegating to StartIndexing.
func (c *Coordinator) Reindex(ctx context.Context, path string, opts Options) (string, error) {
	id, err := c.projects.GenerateOrFetch(path)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if st, exists := c.statuses[id]; exists {
		st.mu.Lock()
		indexing := st.status.State == StateIndexing
		st.mu.Unlock()
		if indexing {
			c.mu.Unlock()
			return "", &AlreadyIndexingError{ProjectID: id}
		}
		delete(c.statuses, id)
	}
	c.mu.Unlock()

	if err := c.store.DeleteCollection(ctx, project.CollectionName(id)); err != nil {
		c.logger.Printf("coordinator: reindex: drop collection for %s: %v", id, err)
	}

	return c.StartIndexing(ctx, path, opts)
}

// StopIndexing cooperatively stops a project's indexing run: queued
// projects are cancelled immediately, an actively indexing project's
// current batch still runs to completion but no further batch is
// dispatched.
func (c *Coordinator) StopIndexing(id string) bool {
	c.mu.Lock()
	st, exists := c.statuses[id]
	c.mu.Unlock()
	if !exists {
		return false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	switch st.status.State {
	case StateQueued:
		st.stopRequested = true
		st.status.State = StateStopped
		return true
	case StateIndexing:
		st.stopRequested = true
		st.status.State = StateStopped
		return true
	default:
		return false
	}
}

// DeleteProject deletes a project per spec §3's Project lifecycle and
// testable property 8: the live watcher is torn down (the one teardown
// path spec §5 reserves for delete_project, never stop_indexing), the
// vector-store collection is dropped, the catalog's project row (and via
// cascade its file_index_states/completed_runs rows) is removed, the
// identity mapping is released, and get_status(id) reports none
// afterward.
func (c *Coordinator) DeleteProject(ctx context.Context, id string) error {
	c.mu.Lock()
	if w, ok := c.watchers[id]; ok {
		if err := w.Stop(); err != nil {
			c.logger.Printf("coordinator: delete_project: stopping watcher for %s: %v", id, err)
		}
		delete(c.watchers, id)
	}
	delete(c.statuses, id)
	c.mu.Unlock()

	if err := c.store.DeleteCollection(ctx, project.CollectionName(id)); err != nil {
		return fmt.Errorf("coordinator: delete_project: dropping collection for %s: %w", id, err)
	}
	if err := c.catalog.DeleteProject(id); err != nil {
		return fmt.Errorf("coordinator: delete_project: removing catalog rows for %s: %w", id, err)
	}
	if err := c.projects.Delete(id); err != nil {
		return fmt.Errorf("coordinator: delete_project: releasing identity mapping for %s: %w", id, err)
	}
	return nil
}

// GetStatus returns the current status for id.
func (c *Coordinator) GetStatus(id string) (Status, bool) {
	c.mu.Lock()
	st, exists := c.statuses[id]
	c.mu.Unlock()
	if !exists {
		return Status{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.status, true
}

// AllStatuses returns a snapshot of every known project's status.
func (c *Coordinator) AllStatuses() []Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Status, 0, len(c.statuses))
	for _, st := range c.statuses {
		st.mu.Lock()
		out = append(out, st.status)
		st.mu.Unlock()
	}
	return out
}

func (c *Coordinator) newFilter() *pathfilter.Filter {
	return pathfilter.New(c.cfg.Traversal, c.logger)
}

func (c *Coordinator) traverse(root string) (*traversal.Result, error) {
	filter := c.newFilter()
	if err := filter.Refresh(root); err != nil {
		return nil, fmt.Errorf("coordinator: refreshing path filter: %w", err)
	}
	return traversal.Traverse(root, c.cfg.Traversal, filter)
}

var nonPointIDChar = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// pointIDHashSuffixLen is the length of the appended "-" + hex digest used
// to keep normalize()+truncate() collisions practically impossible, per
// spec §9's open question on vector-point id normalization.
const pointIDHashSuffixLen = 1 + 8

// vectorPointID derives a vector-store point id per spec §4.8:
// normalize("{rel_path}_{start_line}-{end_line}"), replacing characters
// outside [A-Za-z0-9_-] with '_', truncating to leave room for a
// "-" + first 8 hex chars of sha256(content) suffix, and capping the whole
// id at 255 bytes.
func vectorPointID(relPath string, startLine, endLine int, content string) string {
	raw := fmt.Sprintf("%s_%d-%d", relPath, startLine, endLine)
	normalized := nonPointIDChar.ReplaceAllString(raw, "_")
	if len(normalized) > 255-pointIDHashSuffixLen {
		normalized = normalized[:255-pointIDHashSuffixLen]
	}
	sum := sha256.Sum256([]byte(content))
	return normalized + "-" + hex.EncodeToString(sum[:])[:8]
}

func nowUTC() time.Time { return time.Now().UTC() }
