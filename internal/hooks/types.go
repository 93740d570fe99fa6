package hooks

import "time"

// Config is the top-level configuration loaded from .forgeloop.hooks.yml
// (or .forgeloop.hooks.toml).
// Each hook replaces the built-in command for one external step.
type Config struct {
	Version int         `yaml:"version" toml:"version"`
	Hooks   HooksConfig `yaml:"hooks" toml:"hooks"`
}

// HooksConfig contains all hook configurations.
type HooksConfig struct {
	Install   *HookConfig `yaml:"install" toml:"install"`
	Build     *HookConfig `yaml:"build" toml:"build"`
	TypeCheck *HookConfig `yaml:"typecheck" toml:"typecheck"`
}

// HookConfig defines a single hook's configuration.
type HookConfig struct {
	Command string `yaml:"command" toml:"command"`
	Timeout int    `yaml:"timeout" toml:"timeout"` // seconds; unset uses the step's own timeout
}

// DefaultTimeout is the default timeout for hook execution in seconds.
const DefaultTimeout = 30

// Result is the normalized outcome of an external command.
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
	Err      error // nil on success
}

// Success reports whether the command ran to completion with exit status 0.
func (r Result) Success() bool {
	return r.Err == nil
}
