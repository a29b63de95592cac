// Package traversal walks a project tree and produces a filtered,
// content-hashed view of it, tolerating per-entry I/O errors the way the
// teacher's file discovery walker does.
package traversal

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/index-engine/engine/internal/config"
	"github.com/index-engine/engine/internal/pathfilter"
)

const binaryProbeBytes = 1024

// Traverse walks root depth-first, applying filter and cfg to decide which
// files are included, and returns a Result that is always non-nil unless
// root itself or its ignore files cannot be read.
func Traverse(root string, cfg config.TraversalConfig, filter *pathfilter.Filter) (*Result, error) {
	start := time.Now()

	if cfg.RespectGitignore {
		if err := filter.Refresh(root); err != nil {
			return nil, fmt.Errorf("traversal: loading ignore files: %w", err)
		}
	}

	if _, err := os.ReadDir(root); err != nil {
		return nil, fmt.Errorf("traversal: reading root %s: %w", root, err)
	}

	maxVisited := cfg.MaxVisitedRealPaths
	if maxVisited <= 0 {
		maxVisited = 1000
	}

	t := &traverser{
		root:        root,
		cfg:         cfg,
		filter:      filter,
		visitedReal: make(map[string]struct{}),
		maxVisited:  maxVisited,
		result:      &Result{},
	}

	t.walk(root, "")
	t.result.ProcessingTime = time.Since(start)
	return t.result, nil
}

type traverser struct {
	root        string
	cfg         config.TraversalConfig
	filter      *pathfilter.Filter
	visitedReal map[string]struct{}
	maxVisited  int
	capHit      bool
	result      *Result
}

func (t *traverser) recordError(format string, args ...any) {
	t.result.Errors = append(t.result.Errors, fmt.Sprintf(format, args...))
}

func (t *traverser) walk(absDir, relDir string) {
	realPath, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		t.recordError("resolving real path of %s: %v", absDir, err)
		return
	}

	if _, seen := t.visitedReal[realPath]; seen {
		t.recordError("circular directory reference at %s", absDir)
		return
	}

	if len(t.visitedReal) >= t.maxVisited {
		if !t.capHit {
			t.recordError("visited real path cap (%d) reached, aborting remaining subtree at %s", t.maxVisited, absDir)
			t.capHit = true
		}
		return
	}
	t.visitedReal[realPath] = struct{}{}

	if relDir != "" {
		t.result.Directories = append(t.result.Directories, filepath.ToSlash(relDir))
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		t.recordError("reading directory %s: %v", absDir, err)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		entryAbs := filepath.Join(absDir, name)
		entryRel := filepath.Join(relDir, name)

		info, err := entry.Info()
		if err != nil {
			t.recordError("stat %s: %v", entryAbs, err)
			continue
		}

		isSymlink := info.Mode()&os.ModeSymlink != 0
		if isSymlink && !t.cfg.FollowSymlinks {
			continue
		}

		if entry.IsDir() || (isSymlink && isDirSymlink(entryAbs)) {
			if t.filter.ShouldIgnoreDir(name) {
				continue
			}
			t.walk(entryAbs, entryRel)
			continue
		}

		t.processFile(entryAbs, entryRel, name, info)
	}
}

func isDirSymlink(path string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(resolved)
	return err == nil && info.IsDir()
}

func (t *traverser) processFile(absPath, relPath, name string, info os.FileInfo) {
	relSlash := filepath.ToSlash(relPath)

	if t.filter.ShouldIgnoreFile(relSlash) {
		return
	}

	if t.cfg.MaxFileSizeBytes > 0 && info.Size() > t.cfg.MaxFileSizeBytes {
		t.recordError("file %s exceeds max size (%d > %d bytes)", relSlash, info.Size(), t.cfg.MaxFileSizeBytes)
		return
	}

	ext := filepath.Ext(name)
	language, ok := languageFor(ext, t.cfg.SupportedExtensions)
	if !ok {
		return
	}

	f, err := os.Open(absPath)
	if err != nil {
		t.recordError("opening %s: %v", relSlash, err)
		return
	}
	defer f.Close()

	binary, err := probeBinary(f)
	if err != nil {
		t.recordError("reading %s: %v", relSlash, err)
		return
	}
	if binary {
		return
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.recordError("seeking %s: %v", relSlash, err)
		return
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		t.recordError("hashing %s: %v", relSlash, err)
		return
	}

	t.result.Files = append(t.result.Files, FileRecord{
		AbsPath:     absPath,
		RelPath:     relSlash,
		Name:        name,
		Extension:   ext,
		Size:        info.Size(),
		ContentHash: hex.EncodeToString(hash.Sum(nil)),
		ModTime:     info.ModTime(),
		Language:    language,
		IsBinary:    false,
	})
	t.result.TotalSize += info.Size()
}

// probeBinary reads up to the first 1024 bytes of f and reports whether a
// zero byte is present. It advances f's read position; the caller seeks
// back to the start afterward.
func probeBinary(f *os.File) (bool, error) {
	buf := make([]byte, binaryProbeBytes)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}
