package watch

import "time"

// Kind classifies a coalesced filesystem change.
type Kind int

const (
	Added Kind = iota
	Modified
	Deleted
	Renamed
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is one classified, debounced, rename-aware filesystem change.
type Event struct {
	Kind      Kind
	Path      string
	OldPath   string // set only for Renamed
	Hash      string
	Size      int64
	Timestamp time.Time
}

// Callbacks are the watcher's typed observer hooks. Any of them may be nil.
type Callbacks struct {
	OnAdded   func(path string)
	OnChanged func(path string)
	OnDeleted func(path string)
	OnRenamed func(oldPath, newPath string)
	OnError   func(err error)
	OnReady   func()
}

// Options configures a single Start call.
type Options struct {
	Roots         []string
	Ignored       []string
	IgnoreInitial bool
}

type knownState struct {
	hash string
	size int64
}

type pendingDelete struct {
	hash  string
	size  int64
	timer *time.Timer
}
