package pathfilter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/index-engine/engine/internal/config"
)

func testConfig() config.TraversalConfig {
	return config.TraversalConfig{
		ExcludePatterns:   []string{"**/*.log"},
		IgnoreHiddenFiles: true,
		IgnoreDirectories: []string{"vendor"},
	}
}

func TestShouldIgnoreDir_builtinDefaults(t *testing.T) {
	f := New(testConfig(), nil)

	assert.True(t, f.ShouldIgnoreDir("node_modules"))
	assert.True(t, f.ShouldIgnoreDir(".git"))
	assert.True(t, f.ShouldIgnoreDir("vendor"))
	assert.False(t, f.ShouldIgnoreDir("src"))
}

func TestShouldIgnoreDir_hidden(t *testing.T) {
	f := New(testConfig(), nil)

	assert.True(t, f.ShouldIgnoreDir(".cache"))
	assert.False(t, f.ShouldIgnoreDir("."))
}

func TestShouldIgnoreFile_excludeGlob(t *testing.T) {
	f := New(testConfig(), nil)

	assert.True(t, f.ShouldIgnoreFile("app/debug.log"))
	assert.True(t, f.ShouldIgnoreFile("debug.log"))
	assert.False(t, f.ShouldIgnoreFile("app/main.go"))
}

func TestShouldIgnoreFile_includeOnlyWhenSet(t *testing.T) {
	cfg := testConfig()
	cfg.IncludePatterns = []string{"**/*.go"}
	f := New(cfg, nil)

	assert.False(t, f.ShouldIgnoreFile("main.go"))
	assert.True(t, f.ShouldIgnoreFile("README.md"))
}

func TestShouldIgnoreFile_excludeOverridesInclude(t *testing.T) {
	cfg := testConfig()
	cfg.IncludePatterns = []string{"**"}
	cfg.ExcludePatterns = []string{"**/*.log"}
	f := New(cfg, nil)

	assert.True(t, f.ShouldIgnoreFile("app/debug.log"))
}

func TestShouldIgnoreFile_basenameFallback(t *testing.T) {
	cfg := config.TraversalConfig{ExcludePatterns: []string{"**/*.min.js"}}
	f := New(cfg, nil)

	assert.True(t, f.ShouldIgnoreFile("bundle.min.js"))
}

func TestShouldIgnoreFile_invalidPatternIgnored(t *testing.T) {
	cfg := config.TraversalConfig{ExcludePatterns: []string{"[invalid"}}
	require.NotPanics(t, func() {
		f := New(cfg, nil)
		assert.False(t, f.ShouldIgnoreFile("main.go"))
	})
}

func TestRefresh_gitignorePatterns(t *testing.T) {
	dir := t.TempDir()
	gitignore := "# comment\n*.tmp\nbuild/\n!build/keep.txt\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644))

	f := New(config.TraversalConfig{}, nil)
	require.NoError(t, f.Refresh(dir))

	assert.True(t, f.ShouldIgnoreFile("scratch.tmp"))
	assert.True(t, f.ShouldIgnoreFile("build/output.js"))
	assert.False(t, f.ShouldIgnoreFile("build/keep.txt"))
	assert.False(t, f.ShouldIgnoreFile("src/main.go"))
}

func TestRefresh_noGitignoreIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	f := New(config.TraversalConfig{}, nil)
	assert.NoError(t, f.Refresh(dir))
}

func TestRefresh_idempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\n"), 0o644))

	f := New(config.TraversalConfig{}, nil)
	require.NoError(t, f.Refresh(dir))
	require.NoError(t, f.Refresh(dir))

	assert.True(t, f.ShouldIgnoreFile("a.log"))
	assert.False(t, f.ShouldIgnoreFile("a.txt"))
}
