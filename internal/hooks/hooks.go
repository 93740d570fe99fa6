package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mark3labs/forgeloop/internal/logger"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the hooks configuration file.
const ConfigFileName = ".forgeloop.hooks.yml"

// TOMLConfigFileName is the TOML alternative, read when ConfigFileName is absent.
const TOMLConfigFileName = ".forgeloop.hooks.toml"

// LoadConfig loads the hooks configuration from the working directory.
// Returns nil if neither config file exists (hooks are optional).
// Returns an error only if a file exists but cannot be parsed.
func LoadConfig(workDir string) (*Config, error) {
	configPath := filepath.Join(workDir, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return loadTOML(workDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read hooks config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse hooks config: %w", err)
	}

	logger.Debug("Loaded hooks config from %s (version: %d)", configPath, cfg.Version)
	return &cfg, nil
}

func loadTOML(workDir string) (*Config, error) {
	configPath := filepath.Join(workDir, TOMLConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("No hooks config found in %s", workDir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read hooks config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse hooks config: %w", err)
	}

	logger.Debug("Loaded hooks config from %s (version: %d)", configPath, cfg.Version)
	return &cfg, nil
}

// Variables holds template variables that can be expanded in hook commands.
type Variables struct {
	Project string
	Dir     string
}

// Execute runs a hook command through the shell.
// Template variables in the command ({{project}}, {{dir}}) are expanded before execution.
// A hook without its own timeout gets fallback, or DefaultTimeout when fallback is zero.
func Execute(ctx context.Context, hook *HookConfig, workDir string, vars Variables, fallback time.Duration) Result {
	if hook == nil || hook.Command == "" {
		return Result{Err: errors.New("no command configured")}
	}

	command := expandVariables(hook.Command, vars)
	return Run(ctx, workDir, Timeout(hook, fallback), "sh", "-c", command)
}

// Timeout resolves the time limit for hook.
func Timeout(hook *HookConfig, fallback time.Duration) time.Duration {
	if hook != nil && hook.Timeout > 0 {
		return time.Duration(hook.Timeout) * time.Second
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultTimeout * time.Second
}

// Run executes name with args in workDir, bounded by timeout.
// Failures never panic or escape as bare errors: a missing binary, a non-zero
// exit and a timeout all come back as a Result with Err set.
func Run(ctx context.Context, workDir string, timeout time.Duration, name string, args ...string) Result {
	command := strings.TrimSpace(name + " " + strings.Join(args, " "))
	logger.Debug("Executing command: %s (timeout %s)", command, timeout)

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, name, args...)
	cmd.Dir = workDir
	// Grandchildren may hold the output pipes open after the kill.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Command:  command,
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case ctx.Err() != nil:
		res.Err = ctx.Err()
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.Err = fmt.Errorf("%s timed out after %s", command, timeout)
		logger.Warn("Command timed out after %s: %s", timeout, command)
	case err != nil:
		res.Err = fmt.Errorf("%s failed: %w", command, err)
		logger.Warn("Command failed: %v", res.Err)
	default:
		logger.Debug("Command succeeded in %s, output length: %d bytes", res.Duration, len(res.Stdout))
	}
	return res
}

// expandVariables replaces {{variable}} placeholders in the command string.
func expandVariables(command string, vars Variables) string {
	replacements := map[string]string{
		"{{project}}": vars.Project,
		"{{dir}}":     vars.Dir,
	}

	result := command
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}
