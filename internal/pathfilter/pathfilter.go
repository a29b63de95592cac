// Package pathfilter compiles glob and gitignore-style patterns into a
// single filter used by traversal and the watcher to decide which
// directories and files belong to a project's indexed view.
package pathfilter

import (
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/index-engine/engine/internal/config"
)

// defaultIgnoreDirectories are always skipped regardless of configuration.
var defaultIgnoreDirectories = []string{"node_modules", ".git", "dist", "build"}

type compiledPattern struct {
	raw      string
	full     glob.Glob
	basename glob.Glob // non-nil when raw contains '/'
}

// Filter decides whether a directory or file belongs in a project's indexed
// view, combining configured globs with parsed .gitignore/.indexignore
// entries.
type Filter struct {
	logger *log.Logger

	ignoreHiddenFiles bool
	ignoreDirSet      map[string]struct{}

	configIncludes []compiledPattern
	configExcludes []compiledPattern

	fileExcludes []compiledPattern
	fileNegates  []compiledPattern

	includes []compiledPattern
	excludes []compiledPattern
	negates  []compiledPattern
}

// New builds a Filter from the traversal configuration. Invalid patterns are
// logged and skipped rather than failing construction, matching the spec's
// "an invalid pattern is silently treated as non-matching" rule.
func New(cfg config.TraversalConfig, logger *log.Logger) *Filter {
	if logger == nil {
		logger = log.Default()
	}

	f := &Filter{
		logger:            logger,
		ignoreHiddenFiles: cfg.IgnoreHiddenFiles,
		ignoreDirSet:      make(map[string]struct{}),
	}

	for _, name := range defaultIgnoreDirectories {
		f.ignoreDirSet[name] = struct{}{}
	}
	for _, name := range cfg.IgnoreDirectories {
		f.ignoreDirSet[name] = struct{}{}
	}

	for _, p := range cfg.IncludePatterns {
		if cp, ok := f.compile(p); ok {
			f.configIncludes = append(f.configIncludes, cp)
		}
	}
	for _, p := range cfg.ExcludePatterns {
		if cp, ok := f.compile(p); ok {
			f.configExcludes = append(f.configExcludes, cp)
		}
	}
	for name := range f.ignoreDirSet {
		if cp, ok := f.compile(name + "/**"); ok {
			f.configExcludes = append(f.configExcludes, cp)
		}
	}

	f.rebuild()
	return f
}

// compile turns a single glob pattern into a compiledPattern. '**' crosses
// path separators, '*' and '?' do not — gobwas/glob implements exactly this
// with the '/' separator argument, so no hand-rolled regex translation is
// needed here.
func (f *Filter) compile(pattern string) (compiledPattern, bool) {
	full, err := glob.Compile(pattern, '/')
	if err != nil {
		f.logger.Printf("pathfilter: ignoring invalid pattern %q: %v", pattern, err)
		return compiledPattern{}, false
	}

	cp := compiledPattern{raw: pattern, full: full}
	if strings.Contains(pattern, "/") {
		segments := strings.Split(pattern, "/")
		base := segments[len(segments)-1]
		if base != "" {
			if bg, err := glob.Compile(base, '/'); err == nil {
				cp.basename = bg
			}
		}
	}
	return cp, true
}

func (f *Filter) rebuild() {
	f.includes = f.configIncludes
	f.excludes = append(append([]compiledPattern{}, f.configExcludes...), f.fileExcludes...)
	f.negates = f.fileNegates
}

// Refresh reloads .gitignore and .indexignore rooted at root and merges
// their patterns with the built-in defaults and configured patterns. It may
// be called repeatedly (e.g. on every traversal) without compounding state.
func (f *Filter) Refresh(root string) error {
	var excludes, negates []compiledPattern

	for _, name := range []string{".gitignore", ".indexignore"} {
		lines, err := readIgnoreFile(path.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("pathfilter: reading %s: %w", name, err)
		}
		for _, line := range lines {
			patterns, negated := translateIgnoreLine(line)
			for _, pattern := range patterns {
				cp, ok := f.compile(pattern)
				if !ok {
					continue
				}
				if negated {
					negates = append(negates, cp)
				} else {
					excludes = append(excludes, cp)
				}
			}
		}
	}

	f.fileExcludes = excludes
	f.fileNegates = negates
	f.rebuild()
	return nil
}

// ShouldIgnoreDir reports whether a directory entry (by base name, not full
// path) should be skipped during traversal/watching.
func (f *Filter) ShouldIgnoreDir(name string) bool {
	if _, ok := f.ignoreDirSet[name]; ok {
		return true
	}
	if f.ignoreHiddenFiles && isHidden(name) {
		return true
	}
	return f.matchesAny(f.excludes, name) && !f.matchesAny(f.negates, name)
}

// ShouldIgnoreFile reports whether a project-relative file path should be
// excluded from traversal, watching and chunking.
func (f *Filter) ShouldIgnoreFile(relPath string) bool {
	relPath = path.Clean(filepath.ToSlash(relPath))
	base := path.Base(relPath)

	if f.ignoreHiddenFiles && isHidden(base) {
		return true
	}

	if f.matchesAny(f.excludes, relPath) && !f.matchesAny(f.negates, relPath) {
		return true
	}

	if len(f.includes) > 0 {
		return !f.matchesAny(f.includes, relPath)
	}
	return false
}

func (f *Filter) matchesAny(patterns []compiledPattern, candidate string) bool {
	hasSlash := strings.Contains(candidate, "/")
	for _, p := range patterns {
		if p.full.Match(candidate) {
			return true
		}
		if !hasSlash && p.basename != nil && p.basename.Match(candidate) {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.' && name != "." && name != ".."
}

// translateIgnoreLine turns one .gitignore/.indexignore line into zero or
// more glob patterns (a bare entry matches the name itself anywhere in the
// tree, plus everything beneath it when it turns out to be a directory),
// and reports whether the line is a negated (re-include) rule.
func translateIgnoreLine(line string) (patterns []string, negated bool) {
	trimmed := strings.TrimSpace(strings.TrimRight(line, "\r\n"))
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, false
	}
	if strings.HasPrefix(trimmed, "!") {
		negated = true
		trimmed = trimmed[1:]
	}
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return nil, negated
	}

	anchored := strings.HasPrefix(trimmed, "/")
	trimmed = strings.TrimPrefix(trimmed, "/")

	if anchored || strings.Contains(trimmed, "/") {
		return []string{trimmed, trimmed + "/**"}, negated
	}
	return []string{"**/" + trimmed, trimmed + "/**", "**/" + trimmed + "/**"}, negated
}

func readIgnoreFile(p string) ([]string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(data), "\n"), nil
}
