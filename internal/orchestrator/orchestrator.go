// Package orchestrator runs the convergence loop: review the project, turn
// the review into feature requests, hand them to the builder and repeat until
// the goal is met, the budget runs out or a stop is requested.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gosimple/slug"
	ierr "github.com/mark3labs/forgeloop/internal/errors"
	"github.com/mark3labs/forgeloop/internal/feedback"
	"github.com/mark3labs/forgeloop/internal/history"
	"github.com/mark3labs/forgeloop/internal/logger"
	"github.com/mark3labs/forgeloop/internal/nats"
	"github.com/mark3labs/forgeloop/internal/review"
	"github.com/mark3labs/forgeloop/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/mark3labs/forgeloop/internal/orchestrator")

// Defaults applied by New.
const (
	DefaultMaxIterations = 50
	DefaultPause         = 2 * time.Second
)

const (
	buildEvery   = 3   // verification build cadence, in iterations
	errorLimit   = 500 // failure text kept on a history entry
	logLimit     = 200 // failure text logged and fed back
	eventTimeout = 5 * time.Second
)

// Step names used as keys of history.Entry.Steps.
const (
	StepImplement = "implement"
	StepInstall   = "install"
	StepBuild     = "build"
)

// Executor is the build actor driven by the loop.
type Executor interface {
	CreateInitialArtifact(ctx context.Context) error
	ImplementFeatures(ctx context.Context, features []string, feedback string) ([]string, error)
	InstallDependencies(ctx context.Context) error
	Build(ctx context.Context) (string, error)
}

// Reviewer scores the project each iteration.
type Reviewer interface {
	Review(ctx context.Context, iteration int) *review.Report
	Suggestions() []string
}

// EventSink receives a copy of every lifecycle change and history entry.
type EventSink interface {
	Publish(ctx context.Context, event history.Event) error
}

// Config holds configuration for the loop.
type Config struct {
	RunID         string
	ProjectSpec   string
	Goal          string
	ProjectDir    string
	MaxIterations int           // 0 means DefaultMaxIterations
	Pause         time.Duration // cooperative pause between iterations
	Executor      Executor
	Reviewer      Reviewer
	Events        EventSink                 // optional
	OnEntry       func(entry history.Entry) // optional, called after each append
	Metrics       *telemetry.BuildMetrics   // optional
}

// Loop owns the state of one build. It is run once and then discarded.
type Loop struct {
	cfg Config

	mu        sync.RWMutex
	phase     Phase
	started   bool
	running   bool
	iteration int
	startedAt time.Time
	endedAt   time.Time
	entries   []history.Entry
	lastErr   string
	failures  []string // step failures fed into the next iteration

	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New validates cfg, applies defaults and returns an idle loop.
func New(cfg Config) (*Loop, error) {
	if cfg.Executor == nil {
		return nil, errors.New("orchestrator: executor is required")
	}
	if cfg.Reviewer == nil {
		return nil, errors.New("orchestrator: reviewer is required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Pause <= 0 {
		cfg.Pause = DefaultPause
	}
	if cfg.RunID == "" {
		cfg.RunID = NewRunID(time.Now(), cfg.Goal)
	}
	return &Loop{
		cfg:    cfg,
		phase:  PhaseIdle,
		stopCh: make(chan struct{}),
	}, nil
}

// NewRunID derives a run identifier that is safe to use as a subject token.
func NewRunID(now time.Time, name string) string {
	id := now.Format("20060102-150405")
	if s := slug.Make(name); s != "" {
		if len(s) > 40 {
			s = strings.Trim(s[:40], "-")
		}
		id += "-" + s
	}
	return id
}

// RunID returns the identifier of this run.
func (l *Loop) RunID() string {
	return l.cfg.RunID
}

// Run drives the loop to completion. It returns an error when the initial
// project cannot be created, when the history cannot be saved, or when ctx
// ends the run.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return ierr.ErrBuildRunning
	}
	l.started = true
	l.running = true
	l.startedAt = time.Now()
	l.phase = PhaseInitializing
	l.mu.Unlock()

	ctx, span := tracer.Start(ctx, "forgeloop.build", trace.WithAttributes(
		attribute.String("run.id", l.cfg.RunID),
		attribute.String("goal", l.cfg.Goal),
		attribute.Int("max_iterations", l.cfg.MaxIterations),
	))
	defer span.End()
	l.cfg.Metrics.RecordBuildStarted(ctx)

	logger.Info("Starting build %s: goal=%q max_iterations=%d", l.cfg.RunID, l.cfg.Goal, l.cfg.MaxIterations)
	l.publish(ctx, nats.EventTypeBuild, history.ActionStart, l.cfg.Goal, history.StartMeta{
		ProjectSpec:   l.cfg.ProjectSpec,
		MaxIterations: l.cfg.MaxIterations,
		ProjectDir:    l.cfg.ProjectDir,
	})

	err := ierr.Recover(func() error { return l.cfg.Executor.CreateInitialArtifact(ctx) })
	if err != nil {
		err = fmt.Errorf("failed to create initial project: %w", err)
		logger.Error("%v", err)
		l.finish(PhaseIdle, err.Error())
		l.publish(ctx, nats.EventTypeBuild, history.ActionFail, err.Error(), nil)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.cfg.Metrics.RecordBuildFinished(ctx, "failed", time.Since(l.startedAt))
		return err
	}

	l.setPhase(PhaseIterating)
	outcome := l.iterate(ctx)
	l.setPhase(outcome)

	if outcome != PhaseStopped && l.stopRequested(ctx) {
		logger.Info("Stop requested, skipping final review")
		outcome = PhaseStopped
		l.setPhase(outcome)
	}
	if outcome != PhaseStopped {
		l.setPhase(PhaseFinalizing)
		l.finalReview(ctx)
	}

	var result error
	if err := l.save(); err != nil {
		logger.Error("%v", err)
		result = err
	}

	action := history.ActionComplete
	if outcome == PhaseStopped {
		action = history.ActionStop
		if ctx.Err() != nil {
			result = errors.Join(result, ctx.Err())
		}
	}
	l.finish(PhaseIdle, "")
	l.publish(ctx, nats.EventTypeBuild, action, string(outcome), nil)

	st := l.Status()
	span.SetAttributes(
		attribute.String("outcome", string(outcome)),
		attribute.Int("iterations", st.CurrentIteration),
		attribute.Float64("score", st.LatestScore),
	)
	if result != nil {
		span.RecordError(result)
		span.SetStatus(codes.Error, result.Error())
	}
	l.cfg.Metrics.RecordBuildFinished(ctx, string(outcome), time.Since(l.startedAt))

	logger.Info("Build %s finished (%s) in %.1fs after %d iterations, latest score %.1f",
		l.cfg.RunID, outcome, st.ElapsedTime, st.CurrentIteration, st.LatestScore)
	return result
}

// iterate runs passes until the goal is met, the budget is exhausted or a
// stop is observed, and returns the phase it ended in.
func (l *Loop) iterate(ctx context.Context) Phase {
	for {
		if l.stopRequested(ctx) {
			logger.Info("Stop requested, leaving loop")
			return PhaseStopped
		}

		l.mu.Lock()
		if l.iteration >= l.cfg.MaxIterations {
			l.mu.Unlock()
			logger.Info("Reached iteration limit of %d", l.cfg.MaxIterations)
			return PhaseExhausted
		}
		l.iteration++
		n := l.iteration
		pending := l.failures
		l.failures = nil
		l.mu.Unlock()

		if l.pass(ctx, n, pending) {
			return PhaseGoalAchieved
		}

		if n < l.cfg.MaxIterations {
			l.pause(ctx)
		}
	}
}

// pass runs one iteration and reports whether the goal was met.
func (l *Loop) pass(ctx context.Context, n int, pending []string) bool {
	ctx, span := tracer.Start(ctx, "forgeloop.iteration", trace.WithAttributes(attribute.Int("iteration", n)))
	defer span.End()

	logger.Info("=== Iteration %d ===", n)
	report := l.cfg.Reviewer.Review(ctx, n)
	summary := report.Summarize()
	logger.Info("Review score %.1f/100, meets goal: %v", report.Score, report.MeetsGoal)
	span.SetAttributes(attribute.Float64("score", report.Score), attribute.Bool("meets_goal", report.MeetsGoal))
	l.cfg.Metrics.RecordIteration(ctx, report.Score, report.MeetsGoal)

	if report.MeetsGoal {
		l.append(ctx, history.Entry{
			Iteration: n,
			Action:    history.ActionGoalAchieved,
			Review:    summary,
			Timestamp: time.Now(),
		})
		logger.Info("Goal achieved at iteration %d", n)
		return true
	}

	entry := history.Entry{
		Iteration: n,
		Review:    summary,
		Steps:     make(map[string]history.StepResult),
	}

	lines := append(append([]string(nil), report.Feedback...), pending...)
	features := feedback.Extract(lines, l.cfg.Reviewer.Suggestions())
	if len(features) > 0 {
		var implemented []string
		entry.Steps[StepImplement] = l.step(ctx, StepImplement, func() error {
			var err error
			implemented, err = l.cfg.Executor.ImplementFeatures(ctx, features, strings.Join(lines, "\n"))
			return err
		})
		entry.FeaturesImplemented = implemented
		if t, ok := l.cfg.Executor.(interface{ ModifiedPaths() []string }); ok {
			entry.FilesChanged = t.ModifiedPaths()
		}
	}

	if n == 1 {
		entry.Steps[StepInstall] = l.step(ctx, StepInstall, func() error {
			return l.cfg.Executor.InstallDependencies(ctx)
		})
	}

	if n%buildEvery == 0 {
		var out string
		res := l.step(ctx, StepBuild, func() error {
			var err error
			out, err = l.cfg.Executor.Build(ctx)
			return err
		})
		if res.Success {
			res.Output = out
			logger.Info("Build successful: %s", out)
		} else {
			logger.Warn("Build errors: %s", truncate(res.Error, logLimit))
		}
		entry.Steps[StepBuild] = res
	}

	entry.Timestamp = time.Now()
	l.append(ctx, entry)
	return false
}

// step runs fn, converting errors and panics into a StepResult. Failures are
// queued as feedback for the next iteration.
func (l *Loop) step(ctx context.Context, name string, fn func() error) history.StepResult {
	_, span := tracer.Start(ctx, "forgeloop.step", trace.WithAttributes(attribute.String("step", name)))
	defer span.End()

	err := ierr.Recover(fn)
	if err == nil {
		return history.StepResult{Success: true}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, name+" failed")
	l.cfg.Metrics.RecordStepFailure(ctx, name)

	var panicErr *ierr.PanicError
	if errors.As(err, &panicErr) {
		logger.Error("Step %s panicked: %v\n%s", name, panicErr.Value, panicErr.StackTrace)
	} else {
		logger.Warn("Step %s failed: %v", name, err)
	}

	msg := err.Error()
	l.mu.Lock()
	l.failures = append(l.failures, fmt.Sprintf("Build step failed: %s: %s", name, truncate(msg, logLimit)))
	l.mu.Unlock()
	return history.StepResult{Error: truncate(msg, errorLimit)}
}

// pause is the only suspension point of an iteration. A stop or a cancelled
// context cuts it short.
func (l *Loop) pause(ctx context.Context) {
	timer := time.NewTimer(l.cfg.Pause)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-l.stopCh:
	case <-ctx.Done():
	}
}

func (l *Loop) finalReview(ctx context.Context) {
	l.mu.RLock()
	n := l.iteration + 1
	l.mu.RUnlock()

	logger.Info("=== Final review ===")
	report := l.cfg.Reviewer.Review(ctx, n)
	logger.Info("Final score %.1f/100, goal met: %v", report.Score, report.MeetsGoal)

	l.append(ctx, history.Entry{
		Iteration: n,
		Action:    history.ActionFinalReview,
		Review:    report.Summarize(),
		Timestamp: time.Now(),
	})
}

func (l *Loop) append(ctx context.Context, entry history.Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	l.publish(ctx, nats.EventTypeIteration, history.ActionRecord, entry.Action, entry)
	if l.cfg.OnEntry != nil {
		l.cfg.OnEntry(entry)
	}
}

// save writes the history document into the project directory.
func (l *Loop) save() error {
	if l.cfg.ProjectDir == "" {
		return nil
	}
	doc := l.Document()
	doc.CompletedAt = time.Now()

	path := history.Path(l.cfg.ProjectDir)
	if err := history.WriteFile(path, doc); err != nil {
		return fmt.Errorf("failed to save build history: %w", err)
	}
	logger.Info("Build history saved to %s", path)
	return nil
}

func (l *Loop) publish(ctx context.Context, typ, action, data string, meta any) {
	if l.cfg.Events == nil {
		return
	}
	event, err := history.NewEvent(l.cfg.RunID, typ, action, data, meta)
	if err == nil {
		// Events outlive a cancelled build context so the stop itself is logged.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
		err = l.cfg.Events.Publish(pctx, event)
		cancel()
	}
	if err != nil {
		logger.Warn("Failed to publish %s/%s event: %v", typ, action, err)
	}
}

// Stop asks the loop to end at the next iteration boundary. Work already in
// flight completes. Safe to call more than once and from any goroutine.
func (l *Loop) Stop() {
	l.stopped.Store(true)
	l.stopOnce.Do(func() {
		logger.Info("Stop requested for build %s", l.cfg.RunID)
		close(l.stopCh)
	})
}

func (l *Loop) stopRequested(ctx context.Context) bool {
	return l.stopped.Load() || ctx.Err() != nil
}

func (l *Loop) setPhase(p Phase) {
	l.mu.Lock()
	l.phase = p
	l.mu.Unlock()
}

func (l *Loop) finish(p Phase, errText string) {
	l.mu.Lock()
	l.phase = p
	l.running = false
	l.endedAt = time.Now()
	l.lastErr = errText
	l.mu.Unlock()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
