package builder

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aymanbagabas/go-udiff"
)

// FileChange represents a single file written by the builder.
type FileChange struct {
	Path      string // Relative path from the project directory
	IsNew     bool   // True if the file did not exist before
	Additions int
	Deletions int
}

// FileTracker tracks files written during one builder step.
type FileTracker struct {
	workDir string
	changes map[string]*FileChange // keyed by relative path
	mu      sync.Mutex
}

// NewFileTracker creates a new FileTracker for the given project directory.
func NewFileTracker(workDir string) *FileTracker {
	return &FileTracker{
		workDir: workDir,
		changes: make(map[string]*FileChange),
	}
}

// Record diffs before against after and stores the line counts for absPath.
func (ft *FileTracker) Record(absPath string, isNew bool, before, after string) {
	relPath, err := filepath.Rel(ft.workDir, absPath)
	if err != nil {
		relPath = absPath
	}
	relPath = filepath.ToSlash(relPath)

	additions, deletions := diffStat(relPath, before, after)

	ft.mu.Lock()
	defer ft.mu.Unlock()

	// A file rewritten twice in one step keeps its original "new" flag.
	if prev, ok := ft.changes[relPath]; ok {
		isNew = isNew || prev.IsNew
		additions += prev.Additions
		deletions += prev.Deletions
	}
	ft.changes[relPath] = &FileChange{
		Path:      relPath,
		IsNew:     isNew,
		Additions: additions,
		Deletions: deletions,
	}
}

// diffStat counts inserted and deleted lines in the unified diff of two texts.
func diffStat(name, before, after string) (additions, deletions int) {
	diff := udiff.Unified("a/"+name, "b/"+name, before, after)
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ b/"), strings.HasPrefix(line, "--- a/"):
		case strings.HasPrefix(line, "+"):
			additions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return additions, deletions
}

// Changes returns a sorted list of all file changes.
func (ft *FileTracker) Changes() []FileChange {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	result := make([]FileChange, 0, len(ft.changes))
	for _, change := range ft.changes {
		result = append(result, *change)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})
	return result
}

// ModifiedPaths returns just the file paths, sorted.
func (ft *FileTracker) ModifiedPaths() []string {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	paths := make([]string, 0, len(ft.changes))
	for path := range ft.changes {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Clear resets the tracker for a new step.
func (ft *FileTracker) Clear() {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	ft.changes = make(map[string]*FileChange)
}
