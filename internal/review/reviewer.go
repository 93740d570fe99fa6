// Package review scores a project snapshot against a fixed set of weighted,
// rule-based checks. Nothing here learns or calls a model: the same files and
// goal always produce the same score.
package review

import (
	"context"
	"sync"
	"time"

	"github.com/mark3labs/forgeloop/internal/logger"
)

// MaxSuggestions bounds the number of suggestions derived from a review.
const MaxSuggestions = 5

// Reviewer evaluates a project against a goal and keeps an append-only
// history of its reports.
type Reviewer struct {
	snap    Snapshot
	goal    string
	checker TypeChecker
	now     func() time.Time

	mu      sync.RWMutex
	history []*Report
}

// NewReviewer creates a Reviewer. checker may be nil to skip the type check.
func NewReviewer(snap Snapshot, goal string, checker TypeChecker) *Reviewer {
	return &Reviewer{
		snap:    snap,
		goal:    goal,
		checker: checker,
		now:     time.Now,
	}
}

// Goal returns the goal the reviewer measures against.
func (r *Reviewer) Goal() string {
	return r.goal
}

// Evaluate runs all checks against the snapshot without recording history.
func (r *Reviewer) Evaluate(ctx context.Context, iteration int) *Report {
	checks := Checks{
		CheckStructure:     checkStructure(r.snap),
		CheckCodeQuality:   checkCodeQuality(ctx, r.snap, r.checker),
		CheckFunctionality: checkFunctionality(r.snap),
		CheckGoalAlignment: checkGoalAlignment(r.snap, r.goal),
		CheckBestPractices: checkBestPractices(r.snap),
	}

	score := Score(checks)
	met := MeetsGoal(score, checks)

	return &Report{
		Iteration: iteration,
		Timestamp: r.now(),
		Checks:    checks,
		Score:     score,
		MeetsGoal: met,
		Feedback:  Feedback(checks, r.goal, met),
	}
}

// Review evaluates the project and appends the report to the history.
func (r *Reviewer) Review(ctx context.Context, iteration int) *Report {
	report := r.Evaluate(ctx, iteration)

	r.mu.Lock()
	r.history = append(r.history, report)
	r.mu.Unlock()

	logger.Debug("Review #%d: score=%.1f meets_goal=%v issues=%d", iteration, report.Score, report.MeetsGoal, len(report.Issues()))
	return report
}

// Suggestions turns the latest report into "Fix: ..." lines, one per check
// with issues, in declaration order and at most MaxSuggestions.
func (r *Reviewer) Suggestions() []string {
	latest := r.Latest()
	if latest == nil {
		return []string{"Run a review first"}
	}

	var suggestions []string
	for _, name := range CheckOrder {
		if issues := latest.Checks[name].Issues; len(issues) > 0 {
			suggestions = append(suggestions, "Fix: "+issues[0])
		}
	}
	return limit(suggestions, MaxSuggestions)
}

// Latest returns the most recent report, or nil before the first review.
func (r *Reviewer) Latest() *Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.history) == 0 {
		return nil
	}
	return r.history[len(r.history)-1]
}

// History returns a copy of all reports, oldest first.
func (r *Reviewer) History() []*Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Report, len(r.history))
	copy(out, r.history)
	return out
}
