package orchestrator

import (
	"time"

	"github.com/mark3labs/forgeloop/internal/history"
)

// Phase is the state of the loop's state machine:
//
//	idle -> initializing -> iterating -> {goal_achieved|exhausted|stopped} -> finalizing -> idle
//
// Finalizing is skipped after a stop.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseInitializing Phase = "initializing"
	PhaseIterating    Phase = "iterating"
	PhaseGoalAchieved Phase = "goal_achieved"
	PhaseExhausted    Phase = "exhausted"
	PhaseStopped      Phase = "stopped"
	PhaseFinalizing   Phase = "finalizing"
)

// Status is a point-in-time copy of the loop state.
type Status struct {
	RunID            string    `json:"run_id"`
	Phase            Phase     `json:"phase"`
	IsRunning        bool      `json:"is_running"`
	CurrentIteration int       `json:"current_iteration"`
	MaxIterations    int       `json:"max_iterations"`
	Goal             string    `json:"goal"`
	GoalMet          bool      `json:"goal_met"`
	LatestScore      float64   `json:"latest_score"`
	ElapsedTime      float64   `json:"elapsed_time"` // seconds
	StartedAt        time.Time `json:"started_at,omitempty"`
	ProjectDir       string    `json:"project_dir,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// Status returns a snapshot of the loop state. It never blocks on an
// iteration in flight for longer than a field copy.
func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var elapsed time.Duration
	switch {
	case l.startedAt.IsZero():
	case l.running:
		elapsed = time.Since(l.startedAt)
	default:
		elapsed = l.endedAt.Sub(l.startedAt)
	}

	return Status{
		RunID:            l.cfg.RunID,
		Phase:            l.phase,
		IsRunning:        l.running,
		CurrentIteration: l.iteration,
		MaxIterations:    l.cfg.MaxIterations,
		Goal:             l.cfg.Goal,
		GoalMet:          history.GoalMet(l.entries),
		LatestScore:      history.LatestScore(l.entries),
		ElapsedTime:      elapsed.Seconds(),
		StartedAt:        l.startedAt,
		ProjectDir:       l.cfg.ProjectDir,
		Error:            l.lastErr,
	}
}

// History returns a copy of the build history, oldest first.
func (l *Loop) History() []history.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]history.Entry(nil), l.entries...)
}

// Document returns the history document as it would be persisted now.
func (l *Loop) Document() *history.Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &history.Document{
		ProjectSpec:     l.cfg.ProjectSpec,
		Goal:            l.cfg.Goal,
		TotalIterations: l.iteration,
		History:         append([]history.Entry(nil), l.entries...),
		CompletedAt:     l.endedAt,
	}
}
