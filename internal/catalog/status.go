package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CompletedRun is a durable snapshot of a finished indexing run, persisted
// so ProjectStatus survives a process restart (spec §3 implies status
// "moved to a completed table on termination"; this is that table).
type CompletedRun struct {
	ProjectID    string
	ProjectPath  string
	TotalFiles   int
	IndexedFiles int
	FailedFiles  int
	Status       string
	CompletedAt  time.Time
}

// RecordCompletedRun upserts the durable record of a finished run.
func (c *Catalog) RecordCompletedRun(run CompletedRun) error {
	_, err := c.db.Exec(`
		INSERT INTO completed_runs (project_id, project_path, total_files, indexed_files, failed_files, status, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			project_path = excluded.project_path,
			total_files = excluded.total_files,
			indexed_files = excluded.indexed_files,
			failed_files = excluded.failed_files,
			status = excluded.status,
			completed_at = excluded.completed_at
	`, run.ProjectID, run.ProjectPath, run.TotalFiles, run.IndexedFiles, run.FailedFiles, run.Status, run.CompletedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("catalog: record completed run for %s: %w", run.ProjectID, err)
	}
	return nil
}

// GetCompletedRun returns the most recent completed run for a project.
func (c *Catalog) GetCompletedRun(projectID string) (CompletedRun, bool, error) {
	row := c.db.QueryRow(`
		SELECT project_id, project_path, total_files, indexed_files, failed_files, status, completed_at
		FROM completed_runs WHERE project_id = ?
	`, projectID)

	run, err := scanCompletedRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CompletedRun{}, false, nil
	}
	if err != nil {
		return CompletedRun{}, false, fmt.Errorf("catalog: get completed run for %s: %w", projectID, err)
	}
	return run, true, nil
}

// AllCompletedRuns returns every persisted completed run, used to rebuild
// all_statuses() after a restart.
func (c *Catalog) AllCompletedRuns() ([]CompletedRun, error) {
	rows, err := c.db.Query(`
		SELECT project_id, project_path, total_files, indexed_files, failed_files, status, completed_at
		FROM completed_runs
	`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list completed runs: %w", err)
	}
	defer rows.Close()

	var runs []CompletedRun
	for rows.Next() {
		run, err := scanCompletedRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanCompletedRun(scanner rowScanner) (CompletedRun, error) {
	var run CompletedRun
	var completedAt string
	if err := scanner.Scan(&run.ProjectID, &run.ProjectPath, &run.TotalFiles, &run.IndexedFiles, &run.FailedFiles, &run.Status, &completedAt); err != nil {
		return CompletedRun{}, err
	}
	if t, err := time.Parse(time.RFC3339Nano, completedAt); err == nil {
		run.CompletedAt = t
	}
	return run, nil
}
