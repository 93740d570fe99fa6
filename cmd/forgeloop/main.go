package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/mark3labs/forgeloop/internal/config"
	"github.com/mark3labs/forgeloop/internal/history"
	"github.com/mark3labs/forgeloop/internal/logger"
	"github.com/mark3labs/forgeloop/internal/nats"
	"github.com/mark3labs/forgeloop/internal/telemetry"
	"github.com/mark3labs/forgeloop/internal/tui/theme"
	"github.com/spf13/cobra"
)

const (
	logoText1 = "█▀▀ █▀█ █▀█ █▀▀ █▀▀ █   █▀█ █▀█ █▀█"
	logoText2 = "█▀  █▄█ █▀▄ █▄█ ██▄ █▄▄ █▄█ █▄█ █▀▀"
)

// Version set via ldflags during build
var version = "dev"

func main() {
	// Ensure logger is closed on exit
	defer func() { _ = logger.Close() }()
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Flushing traces: %v", err)
		}
	}()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		_ = shutdownTracing(context.Background())
		os.Exit(1)
	}
}

var rootFlags struct {
	traceFile string
}

// shutdownTracing flushes spans written with --trace-file.
var shutdownTracing = func(context.Context) error { return nil }

var rootCmd = &cobra.Command{
	Use:   "forgeloop",
	Short: "Iterative build, review and feedback loop for generated web projects",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if rootFlags.traceFile == "" {
			return nil
		}
		f, err := os.OpenFile(rootFlags.traceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open trace file: %w", err)
		}
		shutdown, err := telemetry.Setup(f)
		if err != nil {
			_ = f.Close()
			return err
		}
		shutdownTracing = func(ctx context.Context) error {
			defer func() { _ = f.Close() }()
			return shutdown(ctx)
		}
		return nil
	},
}

// renderLogo creates the logo with gradient colors
func renderLogo() string {
	t := theme.NewCatppuccinMocha()
	line1 := theme.ApplyGradient(logoText1, t.Primary, t.Secondary)
	line2 := theme.ApplyGradient(logoText2, t.Primary, t.Secondary)
	return strings.Join([]string{line1, line2}, "\n")
}

func init() {
	rootCmd.Long = renderLogo() + `

forgeloop builds a web project from a natural-language spec and keeps
improving it: every iteration implements features, runs the toolchain,
reviews the result and turns the review into the next plan, until the
quality goal is met or the iteration budget runs out.

Configuration precedence:
  CLI flags > Environment variables > Project config > Global config > Defaults

Project config: ./forgeloop.yml
Global config: ~/.config/forgeloop/forgeloop.yml`

	rootCmd.PersistentFlags().StringVar(&rootFlags.traceFile, "trace-file", "", "Write OpenTelemetry spans as JSON to this file")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(credentialsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(setupCmd)
}

// loadConfig loads the layered configuration and points the logger at it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}
	return cfg, nil
}

// openEvents starts the embedded event log when enabled. The returned
// cleanup is always safe to call.
func openEvents(ctx context.Context, cfg *config.Config) (*history.Store, func(), error) {
	if !cfg.Events {
		return nil, func() {}, nil
	}
	bus, err := nats.Open(ctx, filepath.Join(cfg.DataDir, "nats"))
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open event log: %w", err)
	}
	cleanup := func() {
		if err := bus.Close(); err != nil {
			logger.Warn("Closing event log: %v", err)
		}
	}
	return history.NewStore(bus.JS, bus.Stream), cleanup, nil
}
