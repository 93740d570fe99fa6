package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/forgeloop/internal/builder"
	"github.com/mark3labs/forgeloop/internal/history"
	"github.com/mark3labs/forgeloop/internal/review"
	"github.com/mark3labs/forgeloop/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// scriptedReviewer returns reports built by score for each iteration.
type scriptedReviewer struct {
	mu         sync.Mutex
	iterations []int
	meetsAt    int // first iteration that meets the goal, 0 for never
	onReview   func(iteration int)
}

func (r *scriptedReviewer) Review(ctx context.Context, iteration int) *review.Report {
	r.mu.Lock()
	r.iterations = append(r.iterations, iteration)
	r.mu.Unlock()
	if r.onReview != nil {
		r.onReview(iteration)
	}

	met := r.meetsAt > 0 && iteration >= r.meetsAt
	score := 40.0 + float64(iteration)
	if met {
		score = 90
	}
	return &review.Report{
		Iteration: iteration,
		Timestamp: time.Now(),
		Score:     score,
		MeetsGoal: met,
		Feedback: []string{
			"Structure: Missing directory: src/utils",
			"Continue working towards goal: landing page",
		},
	}
}

func (r *scriptedReviewer) Suggestions() []string {
	return []string{"Fix: add a navbar"}
}

func (r *scriptedReviewer) calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.iterations...)
}

type fakeExecutor struct {
	mu          sync.Mutex
	initErr     error
	installErr  error
	buildErr    error
	onImplement func(call int)
	implements  []string // feedback text per call
	features    [][]string
	installs    int
	builds      int
}

func (e *fakeExecutor) CreateInitialArtifact(ctx context.Context) error {
	return e.initErr
}

func (e *fakeExecutor) ImplementFeatures(ctx context.Context, features []string, feedback string) ([]string, error) {
	e.mu.Lock()
	e.implements = append(e.implements, feedback)
	e.features = append(e.features, features)
	call := len(e.implements)
	e.mu.Unlock()
	if e.onImplement != nil {
		e.onImplement(call)
	}
	return features, nil
}

func (e *fakeExecutor) InstallDependencies(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.installs++
	return e.installErr
}

func (e *fakeExecutor) Build(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.builds++
	if e.buildErr != nil {
		return "", e.buildErr
	}
	return "/tmp/dist", nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []history.Event
}

func (r *eventRecorder) Publish(ctx context.Context, ev history.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func newLoop(t *testing.T, cfg Config) *Loop {
	t.Helper()
	if cfg.Goal == "" {
		cfg.Goal = "landing page"
	}
	if cfg.Pause == 0 {
		cfg.Pause = time.Millisecond
	}
	if cfg.ProjectDir == "" {
		cfg.ProjectDir = t.TempDir()
	}
	l, err := New(cfg)
	require.NoError(t, err)
	return l
}

func actions(entries []history.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Reviewer: &scriptedReviewer{}})
	assert.Error(t, err)
	_, err = New(Config{Executor: &fakeExecutor{}})
	assert.Error(t, err)

	l, err := New(Config{Executor: &fakeExecutor{}, Reviewer: &scriptedReviewer{}, Goal: "My Goal"})
	require.NoError(t, err)
	st := l.Status()
	assert.Equal(t, DefaultMaxIterations, st.MaxIterations)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.False(t, st.IsRunning)
	assert.Zero(t, st.ElapsedTime)
	assert.True(t, strings.HasSuffix(l.RunID(), "-my-goal"))
}

func TestNewRunID(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "20260102-150405-e-commerce-site", NewRunID(now, "E-Commerce Site!"))
	assert.Equal(t, "20260102-150405", NewRunID(now, ""))
	assert.LessOrEqual(t, len(NewRunID(now, strings.Repeat("word ", 30))), len("20260102-150405-")+40)
}

func TestRun_FatalInit(t *testing.T) {
	rev := &scriptedReviewer{}
	exec := &fakeExecutor{initErr: errors.New("disk full")}
	dir := t.TempDir()
	l := newLoop(t, Config{Executor: exec, Reviewer: rev, ProjectDir: dir, MaxIterations: 3})

	err := l.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, rev.calls(), "no iteration runs after a failed init")

	st := l.Status()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.False(t, st.IsRunning)
	assert.Zero(t, st.CurrentIteration)
	assert.Contains(t, st.Error, "disk full")
	assert.NoFileExists(t, history.Path(dir))
}

func TestRun_InitPanicIsFatal(t *testing.T) {
	l := newLoop(t, Config{Executor: &panicInit{}, Reviewer: &scriptedReviewer{}})
	err := l.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

type panicInit struct{ fakeExecutor }

func (*panicInit) CreateInitialArtifact(ctx context.Context) error { panic("boom") }

func TestRun_SingleIterationExhausts(t *testing.T) {
	rev := &scriptedReviewer{}
	exec := &fakeExecutor{}
	dir := t.TempDir()
	l := newLoop(t, Config{Executor: exec, Reviewer: rev, ProjectDir: dir, MaxIterations: 1, ProjectSpec: "spec"})

	require.NoError(t, l.Run(context.Background()))

	assert.Equal(t, []int{1, 2}, rev.calls())
	entries := l.History()
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"", history.ActionFinalReview}, actions(entries))
	assert.Equal(t, 1, entries[0].Iteration)
	assert.Equal(t, 2, entries[1].Iteration)
	assert.Equal(t, []string{"hero", "navigation"}, entries[0].FeaturesImplemented)
	assert.True(t, entries[0].Steps[StepInstall].Success)
	assert.NotContains(t, entries[0].Steps, StepBuild)

	st := l.Status()
	assert.Equal(t, 1, st.CurrentIteration)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.False(t, st.IsRunning)
	assert.False(t, st.GoalMet)
	assert.Equal(t, 42.0, st.LatestScore)
	assert.Equal(t, 1, exec.installs)
	assert.Zero(t, exec.builds)

	doc, err := history.ReadFile(history.Path(dir))
	require.NoError(t, err)
	assert.Equal(t, "spec", doc.ProjectSpec)
	assert.Equal(t, "landing page", doc.Goal)
	assert.Equal(t, 1, doc.TotalIterations)
	assert.Len(t, doc.History, 2)
	assert.False(t, doc.CompletedAt.IsZero())
}

func TestRun_GoalAchievedBreaksImmediately(t *testing.T) {
	rev := &scriptedReviewer{meetsAt: 2}
	exec := &fakeExecutor{}
	l := newLoop(t, Config{Executor: exec, Reviewer: rev, MaxIterations: 10})

	require.NoError(t, l.Run(context.Background()))

	entries := l.History()
	assert.Equal(t, []string{"", history.ActionGoalAchieved, history.ActionFinalReview}, actions(entries))
	assert.Equal(t, 3, entries[2].Iteration)
	assert.Len(t, exec.implements, 1, "no build step once the goal is met")
	assert.Equal(t, []int{1, 2, 3}, rev.calls())

	st := l.Status()
	assert.True(t, st.GoalMet)
	assert.Equal(t, 2, st.CurrentIteration)
	assert.Equal(t, 90.0, st.LatestScore)
}

func TestRun_StepCadence(t *testing.T) {
	exec := &fakeExecutor{}
	l := newLoop(t, Config{Executor: exec, Reviewer: &scriptedReviewer{}, MaxIterations: 6})

	require.NoError(t, l.Run(context.Background()))

	assert.Equal(t, 1, exec.installs)
	assert.Equal(t, 2, exec.builds)
	assert.Len(t, exec.implements, 6)

	entries := l.History()
	require.Len(t, entries, 7)
	for _, e := range entries[:6] {
		_, built := e.Steps[StepBuild]
		assert.Equal(t, e.Iteration%3 == 0, built, "iteration %d", e.Iteration)
		_, installed := e.Steps[StepInstall]
		assert.Equal(t, e.Iteration == 1, installed, "iteration %d", e.Iteration)
	}
	assert.Equal(t, "/tmp/dist", entries[2].Steps[StepBuild].Output)
	assert.Equal(t, 7, entries[6].Iteration)
}

func TestRun_HistoryIsAppendOnly(t *testing.T) {
	var mu sync.Mutex
	var lengths []int
	var l *Loop
	l = newLoop(t, Config{
		Executor:      &fakeExecutor{},
		Reviewer:      &scriptedReviewer{},
		MaxIterations: 4,
		OnEntry: func(history.Entry) {
			mu.Lock()
			lengths = append(lengths, len(l.History()))
			mu.Unlock()
		},
	})

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, lengths)
}

func TestRun_StopMidIteration(t *testing.T) {
	rev := &scriptedReviewer{}
	exec := &fakeExecutor{}
	dir := t.TempDir()
	var l *Loop
	exec.onImplement = func(call int) {
		l.Stop()
		l.Stop()
	}
	// A pause this long only ends early through Stop.
	l = newLoop(t, Config{Executor: exec, Reviewer: rev, ProjectDir: dir, MaxIterations: 10, Pause: time.Hour})

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("loop did not stop")
	}

	entries := l.History()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Action, "no goal_achieved or final_review after a stop")
	assert.True(t, entries[0].Steps[StepInstall].Success, "work in flight completes")
	assert.Equal(t, []int{1}, rev.calls())

	st := l.Status()
	assert.Equal(t, 1, st.CurrentIteration)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.False(t, st.IsRunning)

	doc, err := history.ReadFile(history.Path(dir))
	require.NoError(t, err)
	assert.Len(t, doc.History, 1)
}

func TestRun_StopDuringGoalPassSkipsFinalReview(t *testing.T) {
	var l *Loop
	rev := &scriptedReviewer{meetsAt: 2}
	rev.onReview = func(iteration int) {
		if iteration == 2 {
			l.Stop()
		}
	}
	dir := t.TempDir()
	l = newLoop(t, Config{Executor: &fakeExecutor{}, Reviewer: rev, ProjectDir: dir, MaxIterations: 5})

	require.NoError(t, l.Run(context.Background()))

	entries := l.History()
	require.Len(t, entries, 2)
	assert.Equal(t, history.ActionGoalAchieved, entries[1].Action)
	for _, e := range entries {
		assert.NotEqual(t, history.ActionFinalReview, e.Action)
	}
	assert.Equal(t, []int{1, 2}, rev.calls())
	assert.Equal(t, PhaseIdle, l.Status().Phase)

	doc, err := history.ReadFile(history.Path(dir))
	require.NoError(t, err)
	assert.Len(t, doc.History, 2)
}

func TestRun_StopBeforeRun(t *testing.T) {
	rev := &scriptedReviewer{}
	l := newLoop(t, Config{Executor: &fakeExecutor{}, Reviewer: rev, MaxIterations: 5})
	l.Stop()

	require.NoError(t, l.Run(context.Background()))
	assert.Empty(t, rev.calls())
	assert.Empty(t, l.History())
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := &fakeExecutor{onImplement: func(int) { cancel() }}
	l := newLoop(t, Config{Executor: exec, Reviewer: &scriptedReviewer{}, MaxIterations: 5, Pause: time.Hour})

	err := l.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{""}, actions(l.History()))
}

func TestRun_StepFailuresFeedNextIteration(t *testing.T) {
	exec := &fakeExecutor{
		installErr: errors.New("npm: command not found"),
		buildErr:   errors.New("tsc exited with 2"),
	}
	l := newLoop(t, Config{Executor: exec, Reviewer: &scriptedReviewer{}, MaxIterations: 4})

	require.NoError(t, l.Run(context.Background()), "step failures never abort the loop")

	entries := l.History()
	require.Len(t, entries, 5)

	install := entries[0].Steps[StepInstall]
	assert.False(t, install.Success)
	assert.Equal(t, "npm: command not found", install.Error)
	assert.False(t, entries[2].Steps[StepBuild].Success)

	require.Len(t, exec.implements, 4)
	assert.NotContains(t, exec.implements[0], "Build step failed")
	assert.Contains(t, exec.implements[1], "Build step failed: install: npm: command not found")
	assert.NotContains(t, exec.implements[2], "Build step failed")
	assert.Contains(t, exec.implements[3], "Build step failed: build: tsc exited with 2")
}

type panicImplement struct{ fakeExecutor }

func (*panicImplement) ImplementFeatures(ctx context.Context, features []string, feedback string) ([]string, error) {
	panic("generator exploded")
}

func TestRun_ExecutorPanicIsRecovered(t *testing.T) {
	l := newLoop(t, Config{Executor: &panicImplement{}, Reviewer: &scriptedReviewer{}, MaxIterations: 2})

	require.NoError(t, l.Run(context.Background()))

	entries := l.History()
	require.Len(t, entries, 3)
	step := entries[0].Steps[StepImplement]
	assert.False(t, step.Success)
	assert.Contains(t, step.Error, "generator exploded")
	assert.Empty(t, entries[0].FeaturesImplemented)
}

func TestRun_Twice(t *testing.T) {
	l := newLoop(t, Config{Executor: &fakeExecutor{}, Reviewer: &scriptedReviewer{}, MaxIterations: 1})
	require.NoError(t, l.Run(context.Background()))
	assert.Error(t, l.Run(context.Background()))
}

func TestRun_PublishesEvents(t *testing.T) {
	sink := &eventRecorder{}
	l := newLoop(t, Config{Executor: &fakeExecutor{}, Reviewer: &scriptedReviewer{meetsAt: 1}, MaxIterations: 3, Events: sink, RunID: "run-1"})

	require.NoError(t, l.Run(context.Background()))

	var got []string
	for _, ev := range sink.events {
		assert.Equal(t, "run-1", ev.Run)
		got = append(got, ev.Type+"/"+ev.Action)
	}
	assert.Equal(t, []string{
		"build/start",
		"iteration/record",
		"iteration/record",
		"build/complete",
	}, got)

	st := &history.State{Run: "run-1"}
	for _, ev := range sink.events {
		st.Apply(ev)
	}
	assert.Equal(t, "landing page", st.Goal)
	assert.Equal(t, 3, st.MaxIterations)
	assert.Equal(t, actions(l.History()), actions(st.Entries))
	assert.True(t, st.Complete)
}

func TestStatus_WhileRunning(t *testing.T) {
	seen := make(chan Status, 1)
	var l *Loop
	exec := &fakeExecutor{onImplement: func(int) { seen <- l.Status() }}
	l = newLoop(t, Config{Executor: exec, Reviewer: &scriptedReviewer{}, MaxIterations: 1})

	require.NoError(t, l.Run(context.Background()))

	st := <-seen
	assert.True(t, st.IsRunning)
	assert.Equal(t, PhaseIterating, st.Phase)
	assert.Equal(t, 1, st.CurrentIteration)
	assert.Equal(t, "landing page", st.Goal)
	assert.Zero(t, st.LatestScore, "no entry has been appended yet")
}

// TestRun_ScaffoldConverges drives the real builder and reviewer: the
// scaffold alone satisfies a goal about responsive styling.
func TestRun_ScaffoldConverges(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	goal := "responsive site"
	l := newLoop(t, Config{
		Executor:      builder.New(dir, builder.Options{Name: "Site"}),
		Reviewer:      review.NewReviewer(review.NewDirSnapshot(dir), goal, nil),
		Goal:          goal,
		ProjectDir:    dir,
		MaxIterations: 3,
	})

	require.NoError(t, l.Run(context.Background()))

	entries := l.History()
	assert.Equal(t, []string{history.ActionGoalAchieved, history.ActionFinalReview}, actions(entries))
	assert.Equal(t, 100.0, entries[0].Review.Score)
	assert.True(t, l.Status().GoalMet)
	assert.FileExists(t, history.Path(dir))
}

func TestRun_Traces(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	metrics, err := telemetry.NewBuildMetrics()
	require.NoError(t, err)

	exec := &fakeExecutor{installErr: errors.New("npm missing")}
	l := newLoop(t, Config{Executor: exec, Reviewer: &scriptedReviewer{}, MaxIterations: 3, Metrics: metrics})
	require.NoError(t, l.Run(context.Background()))

	counts := map[string]int{}
	var failed []string
	for _, span := range recorder.Ended() {
		counts[span.Name()]++
		if span.Name() == "forgeloop.step" && span.Status().Code == codes.Error {
			for _, attr := range span.Attributes() {
				if attr.Key == "step" {
					failed = append(failed, attr.Value.AsString())
				}
			}
		}
	}
	assert.Equal(t, 1, counts["forgeloop.build"])
	assert.Equal(t, 3, counts["forgeloop.iteration"])
	assert.Equal(t, 5, counts["forgeloop.step"], "3 implement, 1 install, 1 build")
	assert.Equal(t, []string{StepInstall}, failed)
}
