package traversal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/index-engine/engine/internal/config"
	"github.com/index-engine/engine/internal/pathfilter"
)

func newFilter(cfg config.TraversalConfig) *pathfilter.Filter {
	return pathfilter.New(cfg, nil)
}

func TestTraverse_basicFiltering(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# hi\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("plain text"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "big.js"), []byte("ignored"), 0o644))

	cfg := config.Default().Traversal
	result, err := Traverse(dir, cfg, newFilter(cfg))
	require.NoError(t, err)

	var names []string
	for _, f := range result.Files {
		names = append(names, f.RelPath)
	}
	assert.ElementsMatch(t, []string{"a.go", "README.md"}, names)
}

func TestTraverse_hashStability(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\n"), 0o644))

	cfg := config.Default().Traversal
	r1, err := Traverse(dir, cfg, newFilter(cfg))
	require.NoError(t, err)
	r2, err := Traverse(dir, cfg, newFilter(cfg))
	require.NoError(t, err)

	require.Len(t, r1.Files, 1)
	require.Len(t, r2.Files, 1)
	assert.Equal(t, r1.Files[0].ContentHash, r2.Files[0].ContentHash)
}

func TestTraverse_oversizeFileReportedAsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.go"), make([]byte, 100), 0o644))

	cfg := config.Default().Traversal
	cfg.MaxFileSizeBytes = 10
	result, err := Traverse(dir, cfg, newFilter(cfg))
	require.NoError(t, err)

	assert.Empty(t, result.Files)
	assert.NotEmpty(t, result.Errors)
}

func TestTraverse_binaryFileSkipped(t *testing.T) {
	dir := t.TempDir()
	content := append([]byte("abc"), 0x00, 'd', 'e', 'f')
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob.go"), content, 0o644))

	cfg := config.Default().Traversal
	result, err := Traverse(dir, cfg, newFilter(cfg))
	require.NoError(t, err)

	assert.Empty(t, result.Files)
}

func TestTraverse_unsupportedExtensionSkippedSilently(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89, 0x50}, 0o644))

	cfg := config.Default().Traversal
	result, err := Traverse(dir, cfg, newFilter(cfg))
	require.NoError(t, err)

	assert.Empty(t, result.Files)
	assert.Empty(t, result.Errors)
}

func TestTraverse_unreadableRootPropagates(t *testing.T) {
	cfg := config.Default().Traversal
	_, err := Traverse(filepath.Join(t.TempDir(), "does-not-exist"), cfg, newFilter(cfg))
	assert.Error(t, err)
}

func TestTraverse_circularSymlinkDetected(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	loop := filepath.Join(sub, "loop")
	require.NoError(t, os.Symlink(dir, loop))

	cfg := config.Default().Traversal
	cfg.FollowSymlinks = true
	result, err := Traverse(dir, cfg, newFilter(cfg))
	require.NoError(t, err)

	assert.NotEmpty(t, result.Errors)
}

func TestTraverse_doesNotAbortOnSiblingIOError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.go"), []byte("package main\n"), 0o644))
	restricted := filepath.Join(dir, "restricted")
	require.NoError(t, os.Mkdir(restricted, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(restricted, "x.go"), []byte("package x\n"), 0o644))
	require.NoError(t, os.Chmod(restricted, 0o000))
	t.Cleanup(func() { _ = os.Chmod(restricted, 0o755) })

	cfg := config.Default().Traversal
	result, err := Traverse(dir, cfg, newFilter(cfg))
	require.NoError(t, err)

	var names []string
	for _, f := range result.Files {
		names = append(names, f.RelPath)
	}
	assert.Contains(t, names, "ok.go")
}
