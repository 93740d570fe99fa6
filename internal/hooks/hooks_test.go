package hooks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	workDir := t.TempDir()

	tests := []struct {
		name        string
		cmd         []string
		timeout     time.Duration
		wantSuccess bool
		wantTimeout bool
		wantStdout  string
	}{
		{
			name:        "successful command",
			cmd:         []string{"sh", "-c", "echo hello"},
			timeout:     5 * time.Second,
			wantSuccess: true,
			wantStdout:  "hello\n",
		},
		{
			name:        "non-zero exit",
			cmd:         []string{"sh", "-c", "echo oops >&2; exit 3"},
			timeout:     5 * time.Second,
			wantSuccess: false,
		},
		{
			name:        "missing binary",
			cmd:         []string{"forgeloop-definitely-not-installed"},
			timeout:     5 * time.Second,
			wantSuccess: false,
		},
		{
			name:        "timeout",
			cmd:         []string{"sh", "-c", "sleep 5"},
			timeout:     100 * time.Millisecond,
			wantSuccess: false,
			wantTimeout: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Run(ctx, workDir, tt.timeout, tt.cmd[0], tt.cmd[1:]...)
			if res.Success() != tt.wantSuccess {
				t.Fatalf("Success() = %v, want %v (err=%v)", res.Success(), tt.wantSuccess, res.Err)
			}
			if res.TimedOut != tt.wantTimeout {
				t.Errorf("TimedOut = %v, want %v", res.TimedOut, tt.wantTimeout)
			}
			if tt.wantStdout != "" && res.Stdout != tt.wantStdout {
				t.Errorf("Stdout = %q, want %q", res.Stdout, tt.wantStdout)
			}
		})
	}
}

func TestRun_CapturesStderrAndExitCode(t *testing.T) {
	res := Run(context.Background(), t.TempDir(), 5*time.Second, "sh", "-c", "echo bad >&2; exit 3")
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "bad") {
		t.Errorf("Stderr = %q, want it to contain 'bad'", res.Stderr)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Run(ctx, t.TempDir(), 5*time.Second, "sh", "-c", "echo test")
	if res.Err != context.Canceled {
		t.Errorf("Err = %v, want context.Canceled", res.Err)
	}
}

func TestExecute_ExpandsVariables(t *testing.T) {
	workDir := t.TempDir()
	hook := &HookConfig{Command: "echo {{project}} {{dir}}", Timeout: 5}

	res := Execute(context.Background(), hook, workDir, Variables{Project: "shop", Dir: "/tmp/shop"}, 0)
	if !res.Success() {
		t.Fatalf("Execute() failed: %v", res.Err)
	}
	if res.Stdout != "shop /tmp/shop\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
}

func TestExecute_NilHook(t *testing.T) {
	if res := Execute(context.Background(), nil, t.TempDir(), Variables{}, 0); res.Success() {
		t.Error("Execute(nil) should not succeed")
	}
}

func TestExecute_FallbackTimeout(t *testing.T) {
	hook := &HookConfig{Command: "sleep 5"}

	res := Execute(context.Background(), hook, t.TempDir(), Variables{}, 100*time.Millisecond)
	if !res.TimedOut {
		t.Fatalf("TimedOut = false, want true (err %v)", res.Err)
	}
	if res.Duration > 3*time.Second {
		t.Errorf("Duration = %s, fallback was not applied", res.Duration)
	}
}

func TestTimeout(t *testing.T) {
	tests := []struct {
		name     string
		hook     *HookConfig
		fallback time.Duration
		want     time.Duration
	}{
		{"hook timeout wins", &HookConfig{Timeout: 120}, 300 * time.Second, 120 * time.Second},
		{"step fallback", &HookConfig{}, 300 * time.Second, 300 * time.Second},
		{"default", &HookConfig{}, 0, DefaultTimeout * time.Second},
		{"nil hook", nil, 5 * time.Second, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Timeout(tt.hook, tt.fallback); got != tt.want {
				t.Errorf("Timeout() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cfg, err := LoadConfig(t.TempDir())
		if err != nil || cfg != nil {
			t.Fatalf("LoadConfig() = %v, %v; want nil, nil", cfg, err)
		}
	})

	t.Run("valid file", func(t *testing.T) {
		dir := t.TempDir()
		content := `version: 1
hooks:
  install:
    command: pnpm install
    timeout: 120
  typecheck:
    command: pnpm exec tsc --noEmit
`
		if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig(dir)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Hooks.Install == nil || cfg.Hooks.Install.Command != "pnpm install" || cfg.Hooks.Install.Timeout != 120 {
			t.Errorf("unexpected install hook: %+v", cfg.Hooks.Install)
		}
		if cfg.Hooks.Build != nil {
			t.Errorf("build hook should be nil, got %+v", cfg.Hooks.Build)
		}
		if cfg.Hooks.TypeCheck == nil {
			t.Error("typecheck hook should be set")
		}
	})

	t.Run("toml file", func(t *testing.T) {
		dir := t.TempDir()
		content := `version = 1

[hooks.build]
command = "pnpm run build"
timeout = 600
`
		if err := os.WriteFile(filepath.Join(dir, TOMLConfigFileName), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig(dir)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Version != 1 || cfg.Hooks.Build == nil || cfg.Hooks.Build.Command != "pnpm run build" || cfg.Hooks.Build.Timeout != 600 {
			t.Errorf("unexpected config: %+v", cfg)
		}
		if cfg.Hooks.Install != nil {
			t.Errorf("install hook should be nil, got %+v", cfg.Hooks.Install)
		}
	})

	t.Run("yaml wins over toml", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("version: 2\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, TOMLConfigFileName), []byte("version = 3\n"), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig(dir)
		if err != nil || cfg.Version != 2 {
			t.Fatalf("LoadConfig() = %+v, %v; want version 2", cfg, err)
		}
	})

	t.Run("invalid toml", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, TOMLConfigFileName), []byte("[hooks"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(dir); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("hooks: [unclosed"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(dir); err == nil {
			t.Error("expected parse error")
		}
	})
}
