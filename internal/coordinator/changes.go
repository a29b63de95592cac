package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/index-engine/engine/internal/changedetect"
	"github.com/index-engine/engine/internal/project"
	"github.com/index-engine/engine/internal/traversal"
)

// HandleFileChange applies one logical FileChangeEvent from the Change
// Detector to a project's index: deletions remove the affected chunks from
// both the vector store and the Hash Catalog, additions and modifications
// re-chunk, re-embed and upsert, and renames do both in sequence under the
// old and new relative paths.
func (c *Coordinator) HandleFileChange(ctx context.Context, id, rootPath string, ev changedetect.FileChangeEvent) error {
	c.mu.Lock()
	st, exists := c.statuses[id]
	c.mu.Unlock()
	if !exists {
		return fmt.Errorf("coordinator: handle_file_change: unknown project %s", id)
	}

	st.mu.Lock()
	embedderName := st.embedderName
	st.mu.Unlock()

	collectionName := project.CollectionName(id)

	switch ev.Kind {
	case changedetect.Deleted:
		return c.deleteFileChunks(ctx, collectionName, id, ev.RelPath)

	case changedetect.Renamed:
		if err := c.deleteFileChunks(ctx, collectionName, id, ev.OldRelPath); err != nil {
			c.logger.Printf("coordinator: handle_file_change: deleting old chunks for %s -> %s: %v", ev.OldRelPath, ev.RelPath, err)
		}
		if err := c.catalog.Rename(id, ev.OldRelPath, ev.RelPath); err != nil {
			c.logger.Printf("coordinator: handle_file_change: renaming catalog entry %s -> %s: %v", ev.OldRelPath, ev.RelPath, err)
		}
		return c.reprocessSingleFile(ctx, id, collectionName, rootPath, ev.RelPath, ev.CurrentHash, embedderName)

	case changedetect.Created, changedetect.Modified:
		return c.reprocessSingleFile(ctx, id, collectionName, rootPath, ev.RelPath, ev.CurrentHash, embedderName)

	default:
		return fmt.Errorf("coordinator: handle_file_change: unrecognized change kind %v for %s", ev.Kind, ev.RelPath)
	}
}

// deleteFileChunks resolves every vector point belonging to relPath by
// payload filter and removes them, then drops the file's Hash Catalog row.
func (c *Coordinator) deleteFileChunks(ctx context.Context, collectionName, projectID, relPath string) error {
	ids, err := c.store.FindPointIDsByPayload(ctx, collectionName, map[string]string{"file_path": relPath})
	if err != nil {
		return fmt.Errorf("coordinator: finding points for %s: %w", relPath, err)
	}
	if len(ids) > 0 {
		if err := c.store.DeletePoints(ctx, collectionName, ids); err != nil {
			return fmt.Errorf("coordinator: deleting points for %s: %w", relPath, err)
		}
	}
	if err := c.catalog.Delete(projectID, relPath); err != nil {
		return fmt.Errorf("coordinator: deleting catalog entry for %s: %w", relPath, err)
	}
	return nil
}

// reprocessSingleFile resolves the embedder, builds a FileRecord for one
// path outside of a full Traversal, and runs it through the same
// read/chunk/embed/upsert/catalog pipeline a batch indexing run uses.
// contentHash carries the Change Detector's already-computed hash so
// processFile doesn't need to re-hash the file a second time.
func (c *Coordinator) reprocessSingleFile(ctx context.Context, id, collectionName, rootPath, relPath, contentHash, embedderName string) error {
	provider, err := c.resolver(embedderName)
	if err != nil {
		return fmt.Errorf("coordinator: resolving embedder %q: %w", embedderName, err)
	}

	rec, err := c.singleFileRecord(rootPath, relPath, contentHash)
	if err != nil {
		return err
	}

	return c.processFile(ctx, id, collectionName, provider, rec)
}

func (c *Coordinator) singleFileRecord(rootPath, relPath, contentHash string) (traversal.FileRecord, error) {
	absPath := filepath.Join(rootPath, filepath.FromSlash(relPath))
	info, err := os.Stat(absPath)
	if err != nil {
		return traversal.FileRecord{}, fmt.Errorf("coordinator: stat %s: %w", relPath, err)
	}

	ext := filepath.Ext(relPath)
	language, _ := traversal.LanguageFor(ext, c.cfg.Traversal.SupportedExtensions)

	return traversal.FileRecord{
		AbsPath:     absPath,
		RelPath:     relPath,
		Name:        filepath.Base(relPath),
		Extension:   ext,
		Size:        info.Size(),
		ContentHash: contentHash,
		ModTime:     info.ModTime(),
		Language:    language,
	}, nil
}
