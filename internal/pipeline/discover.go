package pipeline

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-zglob"
)

// ScanOptions controls which files Discover returns.
type ScanOptions struct {
	// Extensions are lowercase with a leading dot. Empty means ".exr".
	Extensions []string
	// Exclude holds glob patterns matched against paths relative to the
	// root (slash-separated). "**" matches across directories. A matching
	// directory is pruned.
	Exclude []string
	// Recursive descends into subdirectories; otherwise only root's own
	// entries are considered.
	Recursive bool
}

// DefaultScanOptions scans recursively for .exr files.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{Extensions: []string{".exr"}, Recursive: true}
}

// Discover walks root, collects files whose extension matches
// (case-insensitive), prunes excluded paths, and returns the paths sorted
// lexicographically for deterministic processing order.
func Discover(root string, opts ScanOptions) ([]string, error) {
	exts := make(map[string]bool)
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}
	if len(exts) == 0 {
		exts[".exr"] = true
	}
	for _, pat := range opts.Exclude {
		if _, err := zglob.Match(pat, "x"); err != nil {
			return nil, errors.Wrapf(err, "invalid exclude pattern %q", pat)
		}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if excluded(root, path, opts.Exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		if exts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func excluded(root, path string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(path)
	for _, pat := range patterns {
		if ok, _ := zglob.Match(pat, rel); ok {
			return true
		}
		// Patterns without a separator also match the bare name at any depth.
		if !strings.Contains(pat, "/") {
			if ok, _ := zglob.Match(pat, base); ok {
				return true
			}
		}
	}
	return false
}
