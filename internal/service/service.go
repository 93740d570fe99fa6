// Package service owns the single current build: it wires configuration,
// the scaffold executor, the reviewer and the event log into a loop and runs
// it in the background on behalf of the CLI and the MCP server.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gosimple/slug"
	"github.com/mark3labs/forgeloop/internal/builder"
	"github.com/mark3labs/forgeloop/internal/config"
	ierr "github.com/mark3labs/forgeloop/internal/errors"
	"github.com/mark3labs/forgeloop/internal/history"
	"github.com/mark3labs/forgeloop/internal/hooks"
	"github.com/mark3labs/forgeloop/internal/logger"
	"github.com/mark3labs/forgeloop/internal/orchestrator"
	"github.com/mark3labs/forgeloop/internal/publish"
	"github.com/mark3labs/forgeloop/internal/review"
	"github.com/mark3labs/forgeloop/internal/telemetry"
)

// Request describes a build to start.
type Request struct {
	ProjectSpec   string `json:"project_spec"`
	Goal          string `json:"goal"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// Options configures a Service.
type Options struct {
	WorkDir string                 // where .forgeloop.hooks.yml is looked up, default "."
	Events  orchestrator.EventSink // optional event log
	OnEntry func(history.Entry)    // optional, forwarded to every loop
}

// Service holds at most one current build. Starting a new build while one
// is running is rejected; a finished build stays current until replaced.
type Service struct {
	cfg     *config.Config
	opts    Options
	metrics *telemetry.BuildMetrics

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	loop   *orchestrator.Loop
	done   chan struct{}
	runErr error
	wg     sync.WaitGroup
}

// New creates a Service. Builds run under ctx, not under the context of the
// request that started them.
func New(ctx context.Context, cfg *config.Config, opts Options) *Service {
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	metrics, err := telemetry.NewBuildMetrics()
	if err != nil {
		logger.Warn("Build metrics disabled: %v", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Service{cfg: cfg, opts: opts, metrics: metrics, ctx: ctx, cancel: cancel}
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// ProjectDir is where builds generate the project.
func (s *Service) ProjectDir() string {
	return ProjectDir(s.cfg)
}

// ProjectDir returns the project directory cfg names.
func ProjectDir(cfg *config.Config) string {
	name := slug.Make(cfg.ProjectName)
	if name == "" {
		name = "current"
	}
	return filepath.Join(cfg.ProjectsDir, name)
}

// StartBuild validates req, wires a new loop and runs it in the background.
func (s *Service) StartBuild(req Request) (orchestrator.Status, error) {
	if req.ProjectSpec == "" || req.Goal == "" {
		return orchestrator.Status{}, errors.New("project_spec and goal are required")
	}
	if req.MaxIterations <= 0 {
		req.MaxIterations = s.cfg.MaxIterations
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running() {
		return orchestrator.Status{}, ierr.ErrBuildRunning
	}

	loop, err := s.newLoop(req)
	if err != nil {
		return orchestrator.Status{}, err
	}

	done := make(chan struct{})
	s.loop, s.done, s.runErr = loop, done, nil

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		err := loop.Run(s.ctx)
		if err != nil {
			logger.Error("Build %s ended with error: %v", loop.RunID(), err)
		}
		s.mu.Lock()
		if s.loop == loop {
			s.runErr = err
		}
		s.mu.Unlock()
	}()

	logger.Info("Build %s started in %s", loop.RunID(), s.ProjectDir())
	return loop.Status(), nil
}

// running reports whether the current build's goroutine is still alive.
// The caller holds s.mu.
func (s *Service) running() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Service) newLoop(req Request) (*orchestrator.Loop, error) {
	hookCfg, err := hooks.LoadConfig(s.opts.WorkDir)
	if err != nil {
		return nil, err
	}
	var typecheck *hooks.HookConfig
	if hookCfg != nil {
		typecheck = hookCfg.Hooks.TypeCheck
	}

	dir := s.ProjectDir()
	_, stripe := s.cfg.Credential("stripe")
	executor := builder.New(dir, builder.Options{
		Name:           s.cfg.ProjectName,
		DatabaseType:   s.cfg.DatabaseType,
		DatabaseURL:    s.cfg.DatabaseURL,
		DatabaseSSL:    s.cfg.DatabaseSSL,
		Stripe:         stripe,
		InstallTimeout: s.cfg.InstallTimeout,
		BuildTimeout:   s.cfg.BuildTimeout,
		TemplateDir:    filepath.Join(s.cfg.DataDir, "templates"),
		Hooks:          hookCfg,
	})
	reviewer := review.NewReviewer(review.NewDirSnapshot(dir), req.Goal, review.TscChecker{
		Timeout: s.cfg.TypecheckTimeout,
		Hook:    typecheck,
	})

	return orchestrator.New(orchestrator.Config{
		RunID:         orchestrator.NewRunID(time.Now(), s.cfg.ProjectName),
		ProjectSpec:   req.ProjectSpec,
		Goal:          req.Goal,
		ProjectDir:    dir,
		MaxIterations: req.MaxIterations,
		Pause:         s.cfg.IterationPause,
		Executor:      executor,
		Reviewer:      reviewer,
		Events:        s.opts.Events,
		OnEntry:       s.opts.OnEntry,
		Metrics:       s.metrics,
	})
}

func (s *Service) current() (*orchestrator.Loop, chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop == nil {
		return nil, nil, ierr.ErrNoBuild
	}
	return s.loop, s.done, nil
}

// Status returns the current build's status.
func (s *Service) Status() (orchestrator.Status, error) {
	loop, _, err := s.current()
	if err != nil {
		return orchestrator.Status{}, err
	}
	return loop.Status(), nil
}

// Stop asks the running build to stop. It does not wait for the loop to
// leave its current step.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running() {
		return ierr.ErrNoBuild
	}
	s.loop.Stop()
	return nil
}

// Wait blocks until the current build finishes or ctx is done, and returns
// the build's error.
func (s *Service) Wait(ctx context.Context) error {
	_, done, err := s.current()
	if err != nil {
		return err
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// History returns the current build's history, falling back to the
// persisted build_history.json when no build ran in this process.
func (s *Service) History() (*history.Document, error) {
	if loop, _, err := s.current(); err == nil {
		return loop.Document(), nil
	}
	doc, err := history.ReadFile(history.Path(s.ProjectDir()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ierr.ErrNoBuild, err)
	}
	return doc, nil
}

// Export publishes the generated project.
func (s *Service) Export(ctx context.Context, opts publish.Options) (*publish.Result, error) {
	s.mu.Lock()
	busy := s.running()
	s.mu.Unlock()
	if busy {
		return nil, ierr.ErrBuildRunning
	}
	return publish.Export(ctx, s.ProjectDir(), opts)
}

// Close stops any running build and waits for it to finish.
func (s *Service) Close() {
	if loop, _, err := s.current(); err == nil {
		loop.Stop()
	}
	s.cancel()
	s.wg.Wait()
}
