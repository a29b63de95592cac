package changedetect

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/index-engine/engine/internal/config"
)

func newTestDetector(root string) *Detector {
	return New("proj1", root, config.WatchConfig{DebounceMs: 10}, true, nil, nil)
}

func collect(d *Detector) (*sync.Mutex, *[]FileChangeEvent) {
	var mu sync.Mutex
	var events []FileChangeEvent
	d.OnChange(func(e FileChangeEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	return &mu, &events
}

func waitFor(t *testing.T, mu *sync.Mutex, events *[]FileChangeEvent, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		got := len(*events)
		mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events", n)
}

func TestDetector_newFileProducesCreated(t *testing.T) {
	dir := t.TempDir()
	d := newTestDetector(dir)
	mu, events := collect(d)

	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))
	d.handleRawChange(path)

	waitFor(t, mu, events, 1)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *events, 1)
	assert.Equal(t, Created, (*events)[0].Kind)
	assert.Equal(t, "a.go", (*events)[0].RelPath)
}

func TestDetector_identicalBytesProduceZeroEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	content := []byte("package main\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	d := newTestDetector(dir)
	mu, events := collect(d)
	d.Seed("a.go", hashOf(t, content))

	d.handleRawChange(path)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, *events, "writing identical bytes must not produce a logical event")
}

func TestDetector_changedBytesProduceModified(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	d := newTestDetector(dir)
	mu, events := collect(d)
	d.Seed("a.go", hashOf(t, []byte("package main\n")))

	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc main() {}\n"), 0o644))
	d.handleRawChange(path)

	waitFor(t, mu, events, 1)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *events, 1)
	assert.Equal(t, Modified, (*events)[0].Kind)
	assert.NotEqual(t, (*events)[0].PreviousHash, (*events)[0].CurrentHash)
}

func TestDetector_deleteOfKnownFileEmitsDeleted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")

	d := newTestDetector(dir)
	mu, events := collect(d)
	d.Seed("a.go", "deadbeef")

	d.handleDeleted(path)

	waitFor(t, mu, events, 1)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *events, 1)
	assert.Equal(t, Deleted, (*events)[0].Kind)
	assert.Equal(t, "deadbeef", (*events)[0].PreviousHash)
}

func TestDetector_deleteOfUnknownFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	d := newTestDetector(dir)
	mu, events := collect(d)

	d.handleDeleted(filepath.Join(dir, "ghost.go"))
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, *events)
}

func TestDetector_renameDoesNotRehash(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "a.go")
	newPath := filepath.Join(dir, "b.go")

	d := newTestDetector(dir)
	mu, events := collect(d)
	d.Seed("a.go", "cafef00d")

	d.handleRenamed(oldPath, newPath)

	waitFor(t, mu, events, 1)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *events, 1)
	assert.Equal(t, Renamed, (*events)[0].Kind)
	assert.Equal(t, "a.go", (*events)[0].OldRelPath)
	assert.Equal(t, "b.go", (*events)[0].RelPath)
	assert.Equal(t, "cafef00d", (*events)[0].CurrentHash)

	_, stillKnownAtOld := d.Snapshot("a.go")
	assert.False(t, stillKnownAtOld)
	newHash, ok := d.Snapshot("b.go")
	require.True(t, ok)
	assert.Equal(t, "cafef00d", newHash)
}

func TestDetector_debounceCollapsesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	d := newTestDetector(dir)
	mu, events := collect(d)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
		d.handleRawChange(path)
		time.Sleep(2 * time.Millisecond)
	}

	waitFor(t, mu, events, 1)
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, *events, 1, "rapid successive writes to the same path must collapse into one event")
}

func hashOf(t *testing.T, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tmp")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	h, err := hashFile(path)
	require.NoError(t, err)
	return h
}
