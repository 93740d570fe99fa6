package review

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Snapshot is a read-only view of the project files being reviewed.
// Paths are slash-separated and relative to the project root.
type Snapshot interface {
	Root() string
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
	// Files lists files under dir whose name ends in one of exts, sorted.
	// A missing dir yields no files and no error.
	Files(dir string, exts ...string) ([]string, error)
}

// DirSnapshot reads the project straight from disk.
type DirSnapshot struct {
	root string
}

// NewDirSnapshot returns a snapshot rooted at dir.
func NewDirSnapshot(dir string) *DirSnapshot {
	return &DirSnapshot{root: dir}
}

func (d *DirSnapshot) Root() string {
	return d.root
}

func (d *DirSnapshot) abs(path string) string {
	return filepath.Join(d.root, filepath.FromSlash(path))
}

func (d *DirSnapshot) Exists(path string) bool {
	_, err := os.Stat(d.abs(path))
	return err == nil
}

func (d *DirSnapshot) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(d.abs(path))
}

func (d *DirSnapshot) Files(dir string, exts ...string) ([]string, error) {
	base := d.abs(dir)
	var out []string
	err := filepath.WalkDir(base, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == base {
				return fs.SkipAll
			}
			return err
		}
		if entry.IsDir() {
			if entry.Name() == "node_modules" {
				return fs.SkipDir
			}
			return nil
		}
		if !hasExt(entry.Name(), exts) {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func hasExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
