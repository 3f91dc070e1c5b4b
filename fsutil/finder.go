// Package fsutil provides the directory enumeration used by the layout engine.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

var (
	// ErrRootNotFound is returned when the root directory does not exist.
	ErrRootNotFound = errors.New("path not found")
	// ErrRootNotDir is returned when the root path is not a directory.
	ErrRootNotDir = errors.New("path is not a directory")
)

// CheckRoot verifies that root exists and is a directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotDir, root)
	}
	return nil
}

// ListDirs returns the directories below root. When recursive is true the
// result contains root itself followed by every nested directory in lexical
// walk order; otherwise only the immediate children of root, sorted by name.
// Root is cleaned first so that it and its children share one spelling.
//
// A subdirectory that cannot be read is still listed but not descended into;
// HasFiles reports its error to the caller. Only an unreadable root fails.
func ListDirs(root string, recursive bool) ([]string, error) {
	root = filepath.Clean(root)
	if err := CheckRoot(root); err != nil {
		return nil, err
	}
	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		var dirs []string
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, filepath.Join(root, e.Name()))
			}
		}
		sort.Strings(dirs)
		return dirs, nil
	}

	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != root && d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

// HasFiles reports whether dir directly contains at least one regular file.
// Symlinks are followed, matching a stat-based "is file" check.
func HasFiles(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			return true, nil
		}
		if e.Type()&fs.ModeSymlink != 0 {
			if info, err := os.Stat(filepath.Join(dir, e.Name())); err == nil && info.Mode().IsRegular() {
				return true, nil
			}
		}
	}
	return false, nil
}

// Source adapts the package functions to layout.DirSource.
type Source struct{}

func (Source) ListDirs(root string, recursive bool) ([]string, error) {
	return ListDirs(root, recursive)
}

func (Source) HasFiles(dir string) (bool, error) { return HasFiles(dir) }
