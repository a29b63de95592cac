package catalog

import (
	"database/sql"
	"fmt"
	"time"
)

const createProjectsTable = `
CREATE TABLE IF NOT EXISTS projects (
    id               TEXT PRIMARY KEY,
    path             TEXT NOT NULL,
    collection_name  TEXT NOT NULL DEFAULT '',
    space_name       TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'active',
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL,
    last_indexed_at  TEXT
)
`

const createFileIndexStatesTable = `
CREATE TABLE IF NOT EXISTS file_index_states (
    project_id     TEXT NOT NULL,
    file_path      TEXT NOT NULL,
    relative_path  TEXT NOT NULL,
    content_hash   TEXT NOT NULL,
    file_size      INTEGER NOT NULL DEFAULT 0,
    last_modified  TEXT,
    language       TEXT,
    file_type      TEXT,
    status         TEXT NOT NULL DEFAULT 'indexed',
    created_at     TEXT NOT NULL,
    updated_at     TEXT NOT NULL,
    PRIMARY KEY (project_id, relative_path),
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
)
`

// completed_runs persists ProjectStatus past process restart — a
// supplement beyond the in-memory status the distilled spec describes.
const createCompletedRunsTable = `
CREATE TABLE IF NOT EXISTS completed_runs (
    project_id     TEXT PRIMARY KEY,
    project_path   TEXT NOT NULL,
    total_files    INTEGER NOT NULL,
    indexed_files  INTEGER NOT NULL,
    failed_files   INTEGER NOT NULL,
    status         TEXT NOT NULL,
    completed_at   TEXT NOT NULL,
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
)
`

func indexStatements() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_file_index_states_project_file ON file_index_states(project_id, file_path)`,
		`CREATE INDEX IF NOT EXISTS idx_file_index_states_updated_at ON file_index_states(updated_at)`,
	}
}

// createSchema creates all tables and indexes the catalog needs, mirroring
// the teacher's transactional all-or-nothing schema bootstrap.
func createSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []struct {
		name string
		ddl  string
	}{
		{"projects", createProjectsTable},
		{"file_index_states", createFileIndexStatesTable},
		{"completed_runs", createCompletedRunsTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("catalog: create %s table: %w", table.name, err)
		}
	}

	for i, idx := range indexStatements() {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("catalog: create index %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit schema transaction: %w", err)
	}
	return nil
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
