package review

import (
	"strings"
	"time"
)

// Status is the verdict of a single check.
type Status string

const (
	StatusPass             Status = "pass"
	StatusNeedsImprovement Status = "needs_improvement"
)

// CheckName identifies one dimension of evaluation.
type CheckName string

const (
	CheckStructure     CheckName = "structure"
	CheckCodeQuality   CheckName = "code_quality"
	CheckFunctionality CheckName = "functionality"
	CheckGoalAlignment CheckName = "goal_alignment"
	CheckBestPractices CheckName = "best_practices"
)

// CheckOrder is the declaration order of the checks. Feedback and
// suggestions are emitted in this order.
var CheckOrder = []CheckName{
	CheckStructure,
	CheckCodeQuality,
	CheckFunctionality,
	CheckGoalAlignment,
	CheckBestPractices,
}

// Title returns the human-readable name, e.g. "Goal Alignment".
func (n CheckName) Title() string {
	words := strings.Split(string(n), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// CheckResult is the outcome of one check. It is not modified after the
// check returns.
type CheckResult struct {
	Status    Status   `json:"status"`
	Issues    []string `json:"issues"`
	Positives []string `json:"positives"`
}

// Passed reports whether the check passed.
func (c CheckResult) Passed() bool {
	return c.Status == StatusPass
}

// Checks maps each check to its result.
type Checks map[CheckName]CheckResult

// Report is the authoritative evaluation of one iteration.
type Report struct {
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
	Checks    Checks    `json:"checks"`
	Score     float64   `json:"score"`
	MeetsGoal bool      `json:"meets_goal"`
	Feedback  []string  `json:"feedback"`
}

// Issues returns every issue across checks in declaration order.
func (r *Report) Issues() []string {
	var out []string
	for _, name := range CheckOrder {
		out = append(out, r.Checks[name].Issues...)
	}
	return out
}

// Summary is the compact form of a report kept in the build history.
type Summary struct {
	Iteration     int     `json:"iteration"`
	Score         float64 `json:"score"`
	MeetsGoal     bool    `json:"meets_goal"`
	FeedbackCount int     `json:"feedback_count"`
}

// Summarize returns the history summary of r.
func (r *Report) Summarize() Summary {
	return Summary{
		Iteration:     r.Iteration,
		Score:         r.Score,
		MeetsGoal:     r.MeetsGoal,
		FeedbackCount: len(r.Feedback),
	}
}
