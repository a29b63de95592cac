package catalog

import "time"

// HashEntry is the durable record of a file's last successfully indexed
// content hash, plus enough metadata to avoid a filesystem round trip for
// common bookkeeping.
type HashEntry struct {
	ProjectID   string
	RelPath     string
	ContentHash string
	Size        int64
	ModTime     time.Time
	Language    string
	FileType    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Metadata carries the non-hash fields of a HashEntry through Put/PutBatch,
// so callers don't have to construct a full HashEntry just to write one.
type Metadata struct {
	Size     int64
	ModTime  time.Time
	Language string
	FileType string
}

// Update is one row of a PutBatch call.
type Update struct {
	ProjectID string
	RelPath   string
	Hash      string
	Meta      Metadata
}

func cacheKey(projectID, relPath string) string {
	return projectID + ":" + relPath
}
