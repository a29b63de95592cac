// Package catalog implements the Hash Catalog: a durable, per-project
// mapping from relative file path to last-indexed content hash, backed by
// SQLite with an in-memory LRU+TTL cache tier in front of it.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/maypok86/otter"
)

const (
	cacheCapacity = 10_000
	cacheTTL      = 5 * time.Minute
)

// Catalog is the durable per-project file-hash store described in spec §4.3:
// reads go cache-then-store, writes go write-through.
type Catalog struct {
	db     *sql.DB
	cache  otter.Cache[string, HashEntry]
	logger *log.Logger
}

// Open opens (creating if necessary) the SQLite-backed catalog at dbPath and
// prepares its schema and cache tier.
func Open(dbPath string, logger *log.Logger) (*Catalog, error) {
	if logger == nil {
		logger = log.Default()
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: enabling foreign keys: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	cache, err := otter.MustBuilder[string, HashEntry](cacheCapacity).
		WithTTL(cacheTTL).
		Build()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: building cache: %w", err)
	}

	return &Catalog{db: db, cache: cache, logger: logger}, nil
}

// Close releases the underlying database connection and cache.
func (c *Catalog) Close() error {
	c.cache.Close()
	return c.db.Close()
}

// Get returns the content hash for a project's file, checking the cache
// before falling back to SQLite.
func (c *Catalog) Get(projectID, relPath string) (string, bool, error) {
	if entry, ok := c.cache.Get(cacheKey(projectID, relPath)); ok {
		return entry.ContentHash, true, nil
	}

	entry, ok, err := c.queryOne(projectID, relPath)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	c.cache.Set(cacheKey(projectID, relPath), entry)
	return entry.ContentHash, true, nil
}

// GetMany resolves a batch of relative paths, serving from cache first and
// querying SQLite only for paths that missed.
func (c *Catalog) GetMany(projectID string, relPaths []string) (map[string]string, error) {
	result := make(map[string]string, len(relPaths))
	var misses []string

	for _, rel := range relPaths {
		if entry, ok := c.cache.Get(cacheKey(projectID, rel)); ok {
			result[rel] = entry.ContentHash
			continue
		}
		misses = append(misses, rel)
	}
	if len(misses) == 0 {
		return result, nil
	}

	placeholders := make([]any, 0, len(misses)+1)
	placeholders = append(placeholders, projectID)
	query := `SELECT relative_path, content_hash, file_size, last_modified, language, file_type, created_at, updated_at
	          FROM file_index_states WHERE project_id = ? AND relative_path IN (`
	for i, rel := range misses {
		if i > 0 {
			query += ","
		}
		query += "?"
		placeholders = append(placeholders, rel)
	}
	query += ")"

	rows, err := c.db.Query(query, placeholders...)
	if err != nil {
		return nil, fmt.Errorf("catalog: get_many query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanHashEntry(rows, projectID)
		if err != nil {
			return nil, err
		}
		result[entry.RelPath] = entry.ContentHash
		c.cache.Set(cacheKey(projectID, entry.RelPath), entry)
	}
	return result, rows.Err()
}

// Put writes a single hash entry write-through: SQLite first, then cache.
func (c *Catalog) Put(projectID, relPath, hash string, meta Metadata) error {
	return c.PutBatch([]Update{{ProjectID: projectID, RelPath: relPath, Hash: hash, Meta: meta}})
}

// PutBatch writes a batch of hash entries in a single transaction. On any
// failure the transaction rolls back and no cache mutation from this batch
// is applied — cache writes are buffered until the transaction commits.
func (c *Catalog) PutBatch(updates []Update) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin put_batch: %w", err)
	}
	defer tx.Rollback()

	now := nowString()
	seenProjects := make(map[string]struct{})
	pendingCache := make([]HashEntry, 0, len(updates))

	for _, u := range updates {
		if _, ok := seenProjects[u.ProjectID]; !ok {
			if err := ensureProject(tx, u.ProjectID, now); err != nil {
				return err
			}
			seenProjects[u.ProjectID] = struct{}{}
		}

		_, err := tx.Exec(`
			INSERT INTO file_index_states
				(project_id, file_path, relative_path, content_hash, file_size, last_modified, language, file_type, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'indexed', ?, ?)
			ON CONFLICT(project_id, relative_path) DO UPDATE SET
				content_hash = excluded.content_hash,
				file_size = excluded.file_size,
				last_modified = excluded.last_modified,
				language = excluded.language,
				file_type = excluded.file_type,
				updated_at = excluded.updated_at
		`, u.ProjectID, u.RelPath, u.RelPath, u.Hash, u.Meta.Size, formatTime(u.Meta.ModTime), u.Meta.Language, u.Meta.FileType, now, now)
		if err != nil {
			return fmt.Errorf("catalog: put_batch upsert %s: %w", u.RelPath, err)
		}

		pendingCache = append(pendingCache, HashEntry{
			ProjectID:   u.ProjectID,
			RelPath:     u.RelPath,
			ContentHash: u.Hash,
			Size:        u.Meta.Size,
			ModTime:     u.Meta.ModTime,
			Language:    u.Meta.Language,
			FileType:    u.Meta.FileType,
			UpdatedAt:   time.Now().UTC(),
		})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit put_batch: %w", err)
	}

	for _, entry := range pendingCache {
		c.cache.Set(cacheKey(entry.ProjectID, entry.RelPath), entry)
	}
	return nil
}

// Delete removes a file's hash entry from both tiers.
func (c *Catalog) Delete(projectID, relPath string) error {
	if _, err := c.db.Exec(`DELETE FROM file_index_states WHERE project_id = ? AND relative_path = ?`, projectID, relPath); err != nil {
		return fmt.Errorf("catalog: delete %s: %w", relPath, err)
	}
	c.cache.Delete(cacheKey(projectID, relPath))
	return nil
}

// Rename moves a hash entry to a new relative path, preserving its hash. A
// rename targeting a path with no existing row is a no-op, logged as a
// warning rather than an error (per spec's ConsistencyFailure handling).
func (c *Catalog) Rename(projectID, oldPath, newPath string) error {
	res, err := c.db.Exec(`
		UPDATE file_index_states SET relative_path = ?, file_path = ?, updated_at = ?
		WHERE project_id = ? AND relative_path = ?
	`, newPath, newPath, nowString(), projectID, oldPath)
	if err != nil {
		return fmt.Errorf("catalog: rename %s -> %s: %w", oldPath, newPath, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.logger.Printf("catalog: rename %s -> %s matched no existing row, treating as no-op", oldPath, newPath)
		return nil
	}
	c.cache.Delete(cacheKey(projectID, oldPath))
	c.cache.Delete(cacheKey(projectID, newPath))
	return nil
}

// ChangedSince returns all hash entries updated at or after ts.
func (c *Catalog) ChangedSince(projectID string, ts time.Time) ([]HashEntry, error) {
	rows, err := c.db.Query(`
		SELECT relative_path, content_hash, file_size, last_modified, language, file_type, created_at, updated_at
		FROM file_index_states WHERE project_id = ? AND updated_at >= ?
	`, projectID, ts.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("catalog: changed_since query: %w", err)
	}
	defer rows.Close()

	var entries []HashEntry
	for rows.Next() {
		entry, err := scanHashEntry(rows, projectID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CleanupExpired deletes hash entries whose updated_at is older than `days`
// days, fully invalidating the cache afterward since it cannot selectively
// evict by age.
func (c *Catalog) CleanupExpired(days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days).UTC().Format(time.RFC3339Nano)
	res, err := c.db.Exec(`DELETE FROM file_index_states WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("catalog: cleanup_expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("catalog: cleanup_expired rows affected: %w", err)
	}
	c.cache.Clear()
	return int(n), nil
}

// UpdateMtimes corrects stored mtimes for files whose content did not
// change, without touching content_hash or treating it as a content
// change — see spec's mtime-drift supplement.
func (c *Catalog) UpdateMtimes(projectID string, updates map[string]time.Time) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin update_mtimes: %w", err)
	}
	defer tx.Rollback()

	now := nowString()
	for relPath, mtime := range updates {
		if _, err := tx.Exec(`
			UPDATE file_index_states SET last_modified = ?, updated_at = ?
			WHERE project_id = ? AND relative_path = ?
		`, formatTime(mtime), now, projectID, relPath); err != nil {
			return fmt.Errorf("catalog: update mtime for %s: %w", relPath, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit update_mtimes: %w", err)
	}

	for relPath := range updates {
		c.cache.Delete(cacheKey(projectID, relPath))
	}
	return nil
}

// EnsureProject creates a placeholder project row if one doesn't already
// exist, satisfying file_index_states' and completed_runs' foreign keys
// before the ID Manager has a chance to persist the real mapping.
func (c *Catalog) EnsureProject(projectID string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin ensure_project: %w", err)
	}
	defer tx.Rollback()
	if err := ensureProject(tx, projectID, nowString()); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteProject removes the project's row, cascading to its
// file_index_states and completed_runs rows, and evicts every cached entry
// belonging to it. Satisfies spec's delete_project property: after this
// call cleanup_expired(0) has nothing left of the project to remove.
func (c *Catalog) DeleteProject(projectID string) error {
	entries, err := c.ChangedSince(projectID, time.Time{})
	if err != nil {
		return fmt.Errorf("catalog: delete_project: listing entries for %s: %w", projectID, err)
	}
	if _, err := c.db.Exec(`DELETE FROM projects WHERE id = ?`, projectID); err != nil {
		return fmt.Errorf("catalog: delete_project %s: %w", projectID, err)
	}
	for _, entry := range entries {
		c.cache.Delete(cacheKey(projectID, entry.RelPath))
	}
	return nil
}

func ensureProject(tx *sql.Tx, projectID, now string) error {
	_, err := tx.Exec(`
		INSERT INTO projects (id, path, status, created_at, updated_at)
		VALUES (?, '', 'active', ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, projectID, now, now)
	if err != nil {
		return fmt.Errorf("catalog: ensure project %s: %w", projectID, err)
	}
	return nil
}

func (c *Catalog) queryOne(projectID, relPath string) (HashEntry, bool, error) {
	row := c.db.QueryRow(`
		SELECT relative_path, content_hash, file_size, last_modified, language, file_type, created_at, updated_at
		FROM file_index_states WHERE project_id = ? AND relative_path = ?
	`, projectID, relPath)

	entry, err := scanHashEntryRow(row, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return HashEntry{}, false, nil
	}
	if err != nil {
		return HashEntry{}, false, fmt.Errorf("catalog: get %s: %w", relPath, err)
	}
	return entry, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHashEntry(rows *sql.Rows, projectID string) (HashEntry, error) {
	return scanHashEntryRow(rows, projectID)
}

func scanHashEntryRow(scanner rowScanner, projectID string) (HashEntry, error) {
	var (
		relPath, hash, lastModified, language, fileType, createdAt, updatedAt string
		size                                                                  int64
	)
	if err := scanner.Scan(&relPath, &hash, &size, &lastModified, &language, &fileType, &createdAt, &updatedAt); err != nil {
		return HashEntry{}, err
	}

	entry := HashEntry{
		ProjectID:   projectID,
		RelPath:     relPath,
		ContentHash: hash,
		Size:        size,
		Language:    language,
		FileType:    fileType,
	}
	if t, err := time.Parse(time.RFC3339Nano, lastModified); err == nil {
		entry.ModTime = t
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		entry.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		entry.UpdatedAt = t
	}
	return entry, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
