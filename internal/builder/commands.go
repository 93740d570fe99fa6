package builder

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	ierr "github.com/mark3labs/forgeloop/internal/errors"
	"github.com/mark3labs/forgeloop/internal/hooks"
	"github.com/mark3labs/forgeloop/internal/logger"
)

// outputLimit bounds the command output carried in a CommandError.
const outputLimit = 500

// CommandError is a failed external step together with its output.
type CommandError struct {
	Result hooks.Result
}

func (e *CommandError) Error() string {
	msg := e.Result.Err.Error()
	out := strings.TrimSpace(e.Result.Stderr)
	if out == "" {
		out = strings.TrimSpace(e.Result.Stdout)
	}
	if out == "" {
		return msg
	}
	if len(out) > outputLimit {
		out = out[:outputLimit]
	}
	return msg + ": " + out
}

func (e *CommandError) Unwrap() error {
	return e.Result.Err
}

// run executes hook when configured, the default command otherwise. Failures
// come back as a transient *CommandError.
func (s *Scaffold) run(ctx context.Context, op string, hook *hooks.HookConfig, timeout time.Duration, name string, args ...string) error {
	var res hooks.Result
	if hook != nil && hook.Command != "" {
		res = hooks.Execute(ctx, hook, s.dir, hooks.Variables{Project: s.opts.Name, Dir: s.dir}, timeout)
	} else {
		res = hooks.Run(ctx, s.dir, timeout, name, args...)
	}
	if res.Success() {
		return nil
	}
	return ierr.NewTransientError(op, &CommandError{Result: res})
}

func (s *Scaffold) hook(pick func(hooks.HooksConfig) *hooks.HookConfig) *hooks.HookConfig {
	if s.opts.Hooks == nil {
		return nil
	}
	return pick(s.opts.Hooks.Hooks)
}

// InstallDependencies runs `npm install` in the project.
func (s *Scaffold) InstallDependencies(ctx context.Context) error {
	hook := s.hook(func(h hooks.HooksConfig) *hooks.HookConfig { return h.Install })
	if err := s.run(ctx, "install dependencies", hook, s.opts.InstallTimeout, "npm", "install"); err != nil {
		return err
	}
	logger.Info("Dependencies installed")
	return nil
}

// Build runs `npm run build` and returns the output directory.
func (s *Scaffold) Build(ctx context.Context) (string, error) {
	hook := s.hook(func(h hooks.HooksConfig) *hooks.HookConfig { return h.Build })
	if err := s.run(ctx, "build", hook, s.opts.BuildTimeout, "npm", "run", "build"); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, "dist"), nil
}
