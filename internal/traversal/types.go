package traversal

import "time"

// FileRecord describes one file discovered during a traversal: its
// identity, content hash, and enough metadata for the Coordinator and
// Change Detector to reason about it without touching the filesystem again.
type FileRecord struct {
	AbsPath     string
	RelPath     string
	Name        string
	Extension   string
	Size        int64
	ContentHash string
	ModTime     time.Time
	Language    string
	IsBinary    bool
}

// Result is the outcome of traversing a project tree: the files that made
// it through the filter and size/language checks, the directories visited,
// and any errors encountered along the way (which never abort traversal of
// a sibling subtree).
type Result struct {
	Files          []FileRecord
	Directories    []string
	Errors         []string
	TotalSize      int64
	ProcessingTime time.Duration
}
