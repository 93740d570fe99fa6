// Package history holds the build audit trail: the in-memory records of a
// run, their JSON document on disk and their mirror in the event stream.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/forgeloop/internal/review"
)

// FileName is the history document written into the project directory.
const FileName = "build_history.json"

// Entry actions. Regular iterations carry no action.
const (
	ActionGoalAchieved = "goal_achieved"
	ActionFinalReview  = "final_review"
)

// StepResult is the normalized outcome of an external build step.
type StepResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Output  string `json:"output,omitempty"`
}

// Entry is one record of the append-only build history.
type Entry struct {
	Iteration           int                   `json:"iteration"`
	Action              string                `json:"action,omitempty"`
	Review              review.Summary        `json:"review"`
	FeaturesImplemented []string              `json:"features_implemented,omitempty"`
	FilesChanged        []string              `json:"files_changed,omitempty"`
	Steps               map[string]StepResult `json:"steps,omitempty"`
	Timestamp           time.Time             `json:"timestamp"`
}

// Document is the persisted form of a finished build.
type Document struct {
	ProjectSpec     string    `json:"project_spec"`
	Goal            string    `json:"goal"`
	TotalIterations int       `json:"total_iterations"`
	History         []Entry   `json:"history"`
	CompletedAt     time.Time `json:"completed_at"`
}

// GoalMet reports whether any entry's review met the goal.
func GoalMet(entries []Entry) bool {
	for _, e := range entries {
		if e.Review.MeetsGoal {
			return true
		}
	}
	return false
}

// LatestScore returns the score of the last entry, or 0 with no entries.
func LatestScore(entries []Entry) float64 {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].Review.Score
}

// Path returns the history document path for a project directory.
func Path(projectDir string) string {
	return filepath.Join(projectDir, FileName)
}

// WriteFile stores doc as indented JSON, replacing any previous document
// atomically.
func WriteFile(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".history-*.json")
	if err != nil {
		return fmt.Errorf("failed to create history file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// ReadFile loads a history document.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse history %s: %w", path, err)
	}
	return &doc, nil
}
