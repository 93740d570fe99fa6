package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/x/editor"
	"github.com/mark3labs/forgeloop/internal/history"
	"github.com/mark3labs/forgeloop/internal/orchestrator"
	"github.com/mark3labs/forgeloop/internal/service"
	"github.com/mark3labs/forgeloop/internal/tui"
	"github.com/mark3labs/forgeloop/internal/tui/theme"
	"github.com/spf13/cobra"
)

var buildFlags struct {
	name       string
	specFile   string
	goal       string
	iterations int
	headless   bool
	editSpec   bool
}

var buildCmd = &cobra.Command{
	Use:   "build [spec]",
	Short: "Run the build loop for a project spec",
	Long: `Run the build loop for a project spec.

The spec is taken from --spec-file, from the arguments, or written in your
$EDITOR with --edit-spec. The loop runs until the goal is met, the iteration
budget is spent or it is stopped; the history is written to
build_history.json in the project directory either way.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildFlags.name, "name", "n", "", "Project name (default: project_name from config)")
	buildCmd.Flags().StringVarP(&buildFlags.specFile, "spec-file", "s", "", "Read the project spec from a file")
	buildCmd.Flags().StringVarP(&buildFlags.goal, "goal", "g", "", "Goal the project must meet (required)")
	buildCmd.Flags().IntVarP(&buildFlags.iterations, "iterations", "i", 0, "Max iterations; 0 uses max_iterations from config")
	buildCmd.Flags().BoolVar(&buildFlags.headless, "headless", false, "Run without TUI (log lines only)")
	buildCmd.Flags().BoolVarP(&buildFlags.editSpec, "edit-spec", "e", false, "Write or edit the spec in $EDITOR before starting")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if buildFlags.name != "" {
		cfg.ProjectName = buildFlags.name
	}
	if cmd.Flags().Changed("headless") {
		cfg.Headless = buildFlags.headless
	}
	if buildFlags.iterations < 0 {
		return fmt.Errorf("iterations must be >= 0 (0 uses the configured default)")
	}
	if strings.TrimSpace(buildFlags.goal) == "" {
		return fmt.Errorf("goal is required (--goal)")
	}

	spec, err := resolveSpec(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeEvents, err := openEvents(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEvents()

	out := colorprofile.NewWriter(cmd.OutOrStdout(), os.Environ())
	opts := service.Options{WorkDir: "."}
	if store != nil {
		opts.Events = store
	}
	if cfg.Headless {
		opts.OnEntry = func(e history.Entry) { printEntry(out, e) }
	}

	// Cancelling ctx stops the loop; the history is still written.
	svc := service.New(ctx, cfg, opts)
	defer svc.Close()

	st, err := svc.StartBuild(service.Request{
		ProjectSpec:   spec,
		Goal:          buildFlags.goal,
		MaxIterations: buildFlags.iterations,
	})
	if err != nil {
		return err
	}

	if cfg.Headless {
		s := theme.Current().S()
		fmt.Fprintln(out, s.HeaderTitle.Render("forgeloop")+" "+s.Subtle.Render(st.RunID))
		fmt.Fprintln(out, s.Muted.Render("Goal: ")+s.Text.Render(st.Goal))
	} else {
		p := tea.NewProgram(tui.NewMonitor(svc, tui.DefaultPollInterval), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("monitor failed: %w", err)
		}
	}

	if err := svc.Wait(context.Background()); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	final, err := svc.Status()
	if err != nil {
		return err
	}
	printSummary(out, final)
	return nil
}

// resolveSpec returns the project spec from the flags or arguments,
// optionally passing it through the user's editor.
func resolveSpec(args []string) (string, error) {
	spec := strings.Join(args, " ")
	if buildFlags.specFile != "" {
		data, err := os.ReadFile(buildFlags.specFile)
		if err != nil {
			return "", fmt.Errorf("failed to read spec file: %w", err)
		}
		spec = string(data)
	}
	if buildFlags.editSpec {
		edited, err := editSpec(spec)
		if err != nil {
			return "", err
		}
		spec = edited
	}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", fmt.Errorf("no project spec given, pass it as an argument, --spec-file or --edit-spec")
	}
	return spec, nil
}

func editSpec(initial string) (string, error) {
	tmpfile, err := os.CreateTemp("", "forgeloop-spec-*.md")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmpfile.Name()) }()

	if _, err := tmpfile.WriteString(initial); err != nil {
		_ = tmpfile.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpfile.Close(); err != nil {
		return "", err
	}

	c, err := editor.Command("forgeloop", tmpfile.Name())
	if err != nil {
		return "", fmt.Errorf("failed to prepare editor: %w", err)
	}
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("editor failed: %w", err)
	}

	data, err := os.ReadFile(tmpfile.Name())
	if err != nil {
		return "", fmt.Errorf("failed to read edited spec: %w", err)
	}
	return string(data), nil
}

func printEntry(w io.Writer, e history.Entry) {
	s := theme.Current().S()
	score := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Current().ScoreColor(e.Review.Score))).
		Render(fmt.Sprintf("%5.1f", e.Review.Score))

	var detail string
	switch e.Action {
	case history.ActionGoalAchieved:
		detail = s.Success.Render("goal achieved")
	case history.ActionFinalReview:
		detail = s.Info.Render("final review")
	default:
		detail = s.Text.Render(strings.Join(e.FeaturesImplemented, ", "))
		for _, name := range []string{orchestrator.StepImplement, orchestrator.StepInstall, orchestrator.StepBuild} {
			if r, ok := e.Steps[name]; ok && !r.Success {
				detail += " " + s.Error.Render(name+" failed")
			}
		}
	}
	fmt.Fprintf(w, "%s %s  %s\n", s.Subtle.Render(fmt.Sprintf("#%-3d", e.Iteration)), score, detail)
}

func printSummary(w io.Writer, st orchestrator.Status) {
	s := theme.Current().S()
	var outcome string
	switch {
	case st.GoalMet:
		outcome = s.Success.Render("Goal met")
	case st.Error != "":
		outcome = s.Error.Render("Build failed: " + st.Error)
	default:
		outcome = s.Warning.Render("Goal not met")
	}
	fmt.Fprintf(w, "\n%s after %d iterations, score %.1f\n", outcome, st.CurrentIteration, st.LatestScore)
	if st.ProjectDir != "" {
		fmt.Fprintln(w, s.Muted.Render("Project: ")+st.ProjectDir)
		fmt.Fprintln(w, s.Muted.Render("History: ")+history.Path(st.ProjectDir))
	}
}
