package review

import (
	"context"
	"time"

	"github.com/mark3labs/forgeloop/internal/hooks"
)

// TypeChecker runs the project's compiler without emitting output.
type TypeChecker interface {
	TypeCheck(ctx context.Context, dir string) hooks.Result
}

// TscChecker runs `npx tsc --noEmit`, or the typecheck hook when one is configured.
type TscChecker struct {
	Timeout time.Duration
	Hook    *hooks.HookConfig
}

// TypeCheck implements TypeChecker.
func (c TscChecker) TypeCheck(ctx context.Context, dir string) hooks.Result {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if c.Hook != nil && c.Hook.Command != "" {
		return hooks.Execute(ctx, c.Hook, dir, hooks.Variables{Dir: dir}, timeout)
	}
	return hooks.Run(ctx, dir, timeout, "npx", "tsc", "--noEmit")
}
