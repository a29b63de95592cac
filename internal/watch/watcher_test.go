package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/index-engine/engine/internal/config"
	"github.com/index-engine/engine/internal/pathfilter"
)

func testWatchConfig() config.WatchConfig {
	return config.WatchConfig{DebounceMs: 20, RenameWindowMs: 100}
}

func newStartedWatcher(t *testing.T, dir string) (Watcher, *sync.Mutex, *[]Event) {
	t.Helper()
	filter := pathfilter.New(config.TraversalConfig{}, nil)
	w, err := New(testWatchConfig(), filter, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var events []Event

	w.SetCallbacks(Callbacks{
		OnAdded:   func(p string) { mu.Lock(); events = append(events, Event{Kind: Added, Path: p}); mu.Unlock() },
		OnChanged: func(p string) { mu.Lock(); events = append(events, Event{Kind: Modified, Path: p}); mu.Unlock() },
		OnDeleted: func(p string) { mu.Lock(); events = append(events, Event{Kind: Deleted, Path: p}); mu.Unlock() },
		OnRenamed: func(oldPath, newPath string) {
			mu.Lock()
			events = append(events, Event{Kind: Renamed, OldPath: oldPath, Path: newPath})
			mu.Unlock()
		},
	})

	require.NoError(t, w.Start(Options{Roots: []string{dir}, IgnoreInitial: true}))
	t.Cleanup(func() { _ = w.Stop() })

	return w, &mu, &events
}

func TestWatcher_detectsAdd(t *testing.T) {
	dir := t.TempDir()
	w, mu, events := newStartedWatcher(t, dir)

	path := filepath.Join(dir, "new.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	require.True(t, w.WaitForEvents(path, time.Second))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *events, 1)
	assert.Equal(t, Added, (*events)[0].Kind)
}

func TestWatcher_detectsModify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	w, mu, events := newStartedWatcher(t, dir)

	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc main() {}\n"), 0o644))
	require.True(t, w.WaitForEvents(path, time.Second))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, *events)
	assert.Equal(t, Modified, (*events)[len(*events)-1].Kind)
}

func TestWatcher_identicalWriteProducesNoEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	content := []byte("package main\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	w, mu, events := newStartedWatcher(t, dir)

	require.NoError(t, os.WriteFile(path, content, 0o644))
	w.FlushEventQueue()
	time.Sleep(30 * time.Millisecond)
	w.FlushEventQueue()

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, *events)
}

func TestWatcher_renameCoalescing(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "a.go")
	newPath := filepath.Join(dir, "b.go")
	require.NoError(t, os.WriteFile(oldPath, []byte("package main\n"), 0o644))

	w, mu, events := newStartedWatcher(t, dir)

	require.NoError(t, os.Rename(oldPath, newPath))
	w.FlushEventQueue()
	time.Sleep(10 * time.Millisecond)
	w.FlushEventQueue()

	require.True(t, w.WaitForEvents(newPath, time.Second))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *events, 1)
	assert.Equal(t, Renamed, (*events)[0].Kind)
	assert.Equal(t, oldPath, (*events)[0].OldPath)
	assert.Equal(t, newPath, (*events)[0].Path)
}

func TestWatcher_stopReleasesHandles(t *testing.T) {
	dir := t.TempDir()
	filter := pathfilter.New(config.TraversalConfig{}, nil)
	w, err := New(testWatchConfig(), filter, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(Options{Roots: []string{dir}}))
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop(), "Stop must be idempotent")
}

func TestWatcher_missingRootWarnsButDoesNotAbort(t *testing.T) {
	dir := t.TempDir()
	filter := pathfilter.New(config.TraversalConfig{}, nil)
	w, err := New(testWatchConfig(), filter, nil)
	require.NoError(t, err)

	var errs []error
	w.SetCallbacks(Callbacks{OnError: func(err error) { errs = append(errs, err) }})

	missing := filepath.Join(dir, "does-not-exist")
	require.NoError(t, w.Start(Options{Roots: []string{missing, dir}}))
	t.Cleanup(func() { _ = w.Stop() })

	assert.NotEmpty(t, errs)
	assert.True(t, w.IsWatching(dir))
}
