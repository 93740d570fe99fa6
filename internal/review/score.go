package review

import (
	"math"
	"strings"
)

// Score computes the aggregate score of a set of checks:
//
//	base    = 100 * passed / total
//	penalty = min(2 * issues, 30)
//	bonus   = min(1 * positives, 10)
//	score   = clamp(base - penalty + bonus, 0, 100)
func Score(checks Checks) float64 {
	if len(checks) == 0 {
		return 0
	}

	passed, issues, positives := 0, 0, 0
	for _, c := range checks {
		if c.Passed() {
			passed++
		}
		issues += len(c.Issues)
		positives += len(c.Positives)
	}

	base := float64(passed) / float64(len(checks)) * 100
	penalty := math.Min(float64(issues)*IssueWeight, IssuePenaltyCap)
	bonus := math.Min(float64(positives)*PositiveWeight, PositiveBonusCap)

	return math.Max(0, math.Min(100, base-penalty+bonus))
}

// MeetsGoal is the convergence test. All of score >= 85, a passing
// structure check, a passing functionality check and a passing goal
// alignment check are required. Code quality and best practices do not
// block convergence.
func MeetsGoal(score float64, checks Checks) bool {
	return score >= GoalScore &&
		checks[CheckStructure].Passed() &&
		checks[CheckFunctionality].Passed() &&
		checks[CheckGoalAlignment].Passed()
}

// Feedback builds the actionable feedback lines for a review: the first
// issue of every failing check in declaration order, then up to three
// positives, then a reminder of the goal while it is unmet.
func Feedback(checks Checks, goal string, met bool) []string {
	var feedback []string

	for _, name := range CheckOrder {
		c, ok := checks[name]
		if !ok || c.Passed() || len(c.Issues) == 0 {
			continue
		}
		feedback = append(feedback, name.Title()+": "+c.Issues[0])
	}

	var positives []string
	for _, name := range CheckOrder {
		positives = append(positives, checks[name].Positives...)
		if len(positives) >= 3 {
			break
		}
	}
	if len(positives) > 0 {
		feedback = append(feedback, "Good progress: "+strings.Join(limit(positives, 3), ", "))
	}

	if !met {
		feedback = append(feedback, "Continue working towards goal: "+goal)
	}
	return feedback
}
