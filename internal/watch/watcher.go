// Package watch consumes OS-level filesystem notifications and turns them
// into debounced, rename-aware Events, the way the teacher's fileWatcher
// turns raw fsnotify noise into accumulated callback batches — generalized
// here to per-path classification plus delete/add rename coalescing.
package watch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/index-engine/engine/internal/config"
	"github.com/index-engine/engine/internal/pathfilter"
)

// Watcher is the public contract described in spec §4.4.
type Watcher interface {
	Start(opts Options) error
	Stop() error
	SetCallbacks(cb Callbacks)
	IsWatching(path string) bool
	WatchedPaths() []string

	// WaitForEvents and FlushEventQueue exist to drain pending debounced
	// events deterministically in tests.
	WaitForEvents(path string, timeout time.Duration) bool
	FlushEventQueue()
}

type fsWatcher struct {
	cfg    config.WatchConfig
	filter *pathfilter.Filter
	logger *log.Logger

	notify *fsnotify.Watcher

	mu             sync.Mutex
	callbacks      Callbacks
	watchedDirs    map[string]struct{}
	knownHash      map[string]knownState
	pendingTimers  map[string]*time.Timer
	pendingDeletes map[string]*pendingDelete
	lastEventAt    map[string]time.Time

	cancel   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New builds a Watcher. filter should already reflect the project's
// .gitignore/.indexignore state (callers typically call filter.Refresh
// before Start).
func New(cfg config.WatchConfig, filter *pathfilter.Filter, logger *log.Logger) (Watcher, error) {
	if logger == nil {
		logger = log.Default()
	}
	nw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating fsnotify watcher: %w", err)
	}

	return &fsWatcher{
		cfg:            cfg,
		filter:         filter,
		logger:         logger,
		notify:         nw,
		watchedDirs:    make(map[string]struct{}),
		knownHash:      make(map[string]knownState),
		pendingTimers:  make(map[string]*time.Timer),
		pendingDeletes: make(map[string]*pendingDelete),
		lastEventAt:    make(map[string]time.Time),
	}, nil
}

func (w *fsWatcher) SetCallbacks(cb Callbacks) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = cb
}

// Start begins watching opts.Roots. Roots that don't exist are warned about
// via OnError but do not abort watching the remaining roots.
func (w *fsWatcher) Start(opts Options) error {
	for _, root := range opts.Roots {
		if _, err := os.Stat(root); err != nil {
			w.emitError(fmt.Errorf("watch: root %s does not exist: %w", root, err))
			continue
		}
		if err := w.addRecursively(root, true); err != nil {
			w.emitError(fmt.Errorf("watch: adding root %s: %w", root, err))
		}
	}

	if !opts.IgnoreInitial {
		w.mu.Lock()
		initial := make([]string, 0, len(w.knownHash))
		for p := range w.knownHash {
			initial = append(initial, p)
		}
		w.mu.Unlock()
		for _, p := range initial {
			w.emitAdded(p)
		}
	}

	w.cancel = make(chan struct{})
	w.done = make(chan struct{})
	go w.run()

	w.fireReady()
	return nil
}

// Stop releases the underlying OS watch handles on every exit path,
// including when Start was never successfully called.
func (w *fsWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			close(w.cancel)
			<-w.done
		}
		w.mu.Lock()
		for _, t := range w.pendingTimers {
			t.Stop()
		}
		for _, pd := range w.pendingDeletes {
			pd.timer.Stop()
		}
		w.mu.Unlock()
		err = w.notify.Close()
	})
	return err
}

func (w *fsWatcher) IsWatching(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watchedDirs[path]
	return ok
}

func (w *fsWatcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.watchedDirs))
	for p := range w.watchedDirs {
		paths = append(paths, p)
	}
	return paths
}

func (w *fsWatcher) WaitForEvents(path string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	start := time.Now()
	for time.Now().Before(deadline) {
		w.mu.Lock()
		t, ok := w.lastEventAt[path]
		w.mu.Unlock()
		if ok && !t.Before(start) {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// FlushEventQueue forces every pending debounce and rename-window timer to
// fire immediately, for deterministic test harnesses.
func (w *fsWatcher) FlushEventQueue() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pendingTimers))
	for p, t := range w.pendingTimers {
		t.Stop()
		paths = append(paths, p)
	}
	w.pendingTimers = make(map[string]*time.Timer)
	w.mu.Unlock()

	for _, p := range paths {
		w.processPath(p)
	}

	w.mu.Lock()
	deletes := make(map[string]*pendingDelete, len(w.pendingDeletes))
	for p, pd := range w.pendingDeletes {
		deletes[p] = pd
	}
	w.mu.Unlock()

	for p, pd := range deletes {
		pd.timer.Stop()
		w.mu.Lock()
		_, still := w.pendingDeletes[p]
		if still {
			delete(w.pendingDeletes, p)
		}
		w.mu.Unlock()
		if still {
			w.emitDeleted(p, pd.hash)
		}
	}
}

func (w *fsWatcher) run() {
	defer close(w.done)
	for {
		select {
		case <-w.cancel:
			return
		case ev, ok := <-w.notify.Events:
			if !ok {
				return
			}
			w.handleRawEvent(ev)
		case err, ok := <-w.notify.Errors:
			if !ok {
				return
			}
			w.emitError(fmt.Errorf("watch: fsnotify error: %w", err))
		}
	}
}

func (w *fsWatcher) handleRawEvent(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursively(ev.Name, false); err != nil {
				w.emitError(fmt.Errorf("watch: adding new directory %s: %w", ev.Name, err))
			}
			return
		}
	}

	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if w.filter != nil && w.filter.ShouldIgnoreFile(filepath.ToSlash(ev.Name)) {
		return
	}

	w.scheduleDebounce(ev.Name)
}

func (w *fsWatcher) scheduleDebounce(path string) {
	debounce := time.Duration(w.cfg.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pendingTimers[path]; ok {
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
	}

	w.pendingTimers[path] = time.AfterFunc(debounce, func() {
		w.mu.Lock()
		delete(w.pendingTimers, path)
		w.mu.Unlock()
		w.processPath(path)
	})
}

func (w *fsWatcher) processPath(path string) {
	info, statErr := os.Stat(path)

	if statErr == nil && !info.IsDir() {
		hash, size, err := hashFile(path)
		if err != nil {
			w.emitError(fmt.Errorf("watch: hashing %s: %w", path, err))
			return
		}

		w.mu.Lock()
		prev, hadPrev := w.knownHash[path]

		if !hadPrev {
			if oldPath, ok := w.matchPendingDeleteLocked(hash, size); ok {
				w.knownHash[path] = knownState{hash: hash, size: size}
				w.mu.Unlock()
				w.emitRenamed(oldPath, path)
				return
			}
			w.knownHash[path] = knownState{hash: hash, size: size}
			w.mu.Unlock()
			w.emitAdded(path)
			return
		}

		if prev.hash == hash {
			w.mu.Unlock()
			return
		}
		w.knownHash[path] = knownState{hash: hash, size: size}
		w.mu.Unlock()
		w.emitChanged(path)
		return
	}

	w.mu.Lock()
	prev, hadPrev := w.knownHash[path]
	delete(w.knownHash, path)
	if !hadPrev {
		w.mu.Unlock()
		return
	}

	renameWindow := time.Duration(w.cfg.RenameWindowMs) * time.Millisecond
	if renameWindow <= 0 {
		renameWindow = time.Second
	}

	pd := &pendingDelete{hash: prev.hash, size: prev.size}
	pd.timer = time.AfterFunc(renameWindow, func() {
		w.mu.Lock()
		_, stillPending := w.pendingDeletes[path]
		if stillPending {
			delete(w.pendingDeletes, path)
		}
		w.mu.Unlock()
		if stillPending {
			w.emitDeleted(path, prev.hash)
		}
	})
	w.pendingDeletes[path] = pd
	w.mu.Unlock()
}

// matchPendingDeleteLocked must be called with w.mu held. It looks for a
// pending delete with an identical hash and size, cancels its timer, and
// returns the old path it was tracking.
func (w *fsWatcher) matchPendingDeleteLocked(hash string, size int64) (string, bool) {
	for path, pd := range w.pendingDeletes {
		if pd.hash == hash && pd.size == size {
			pd.timer.Stop()
			delete(w.pendingDeletes, path)
			return path, true
		}
	}
	return "", false
}

func (w *fsWatcher) addRecursively(root string, snapshotBaseline bool) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			w.emitError(fmt.Errorf("watch: walking %s: %w", p, err))
			return nil
		}
		if d.IsDir() {
			if p != root && w.filter != nil && w.filter.ShouldIgnoreDir(d.Name()) {
				return filepath.SkipDir
			}
			if err := w.notify.Add(p); err != nil {
				return fmt.Errorf("adding watch for %s: %w", p, err)
			}
			w.mu.Lock()
			w.watchedDirs[p] = struct{}{}
			w.mu.Unlock()
			return nil
		}

		if !snapshotBaseline {
			return nil
		}
		if w.filter != nil && w.filter.ShouldIgnoreFile(filepath.ToSlash(p)) {
			return nil
		}
		hash, size, err := hashFile(p)
		if err != nil {
			w.emitError(fmt.Errorf("watch: hashing %s: %w", p, err))
			return nil
		}
		w.mu.Lock()
		w.knownHash[p] = knownState{hash: hash, size: size}
		w.mu.Unlock()
		return nil
	})
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func (w *fsWatcher) markEvent(path string) {
	w.mu.Lock()
	w.lastEventAt[path] = time.Now()
	w.mu.Unlock()
}

func (w *fsWatcher) emitAdded(path string) {
	w.markEvent(path)
	w.mu.Lock()
	cb := w.callbacks.OnAdded
	w.mu.Unlock()
	if cb != nil {
		cb(path)
	}
}

func (w *fsWatcher) emitChanged(path string) {
	w.markEvent(path)
	w.mu.Lock()
	cb := w.callbacks.OnChanged
	w.mu.Unlock()
	if cb != nil {
		cb(path)
	}
}

func (w *fsWatcher) emitDeleted(path, hash string) {
	_ = hash
	w.markEvent(path)
	w.mu.Lock()
	cb := w.callbacks.OnDeleted
	w.mu.Unlock()
	if cb != nil {
		cb(path)
	}
}

func (w *fsWatcher) emitRenamed(oldPath, newPath string) {
	w.markEvent(newPath)
	w.mu.Lock()
	cb := w.callbacks.OnRenamed
	w.mu.Unlock()
	if cb != nil {
		cb(oldPath, newPath)
	}
}

func (w *fsWatcher) emitError(err error) {
	w.mu.Lock()
	cb := w.callbacks.OnError
	w.mu.Unlock()
	if cb != nil {
		cb(err)
		return
	}
	w.logger.Printf("watch: %v", err)
}

func (w *fsWatcher) fireReady() {
	w.mu.Lock()
	cb := w.callbacks.OnReady
	w.mu.Unlock()
	if cb != nil {
		cb()
	}
}
