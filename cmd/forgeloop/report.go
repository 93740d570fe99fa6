package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/x/term"
	"github.com/mark3labs/forgeloop/internal/history"
	"github.com/mark3labs/forgeloop/internal/report"
	"github.com/mark3labs/forgeloop/internal/service"
	"github.com/spf13/cobra"
)

var reportFlags struct {
	json  bool
	style string
}

var reportCmd = &cobra.Command{
	Use:   "report [project-dir]",
	Short: "Show the build report of a project",
	Long: `Render build_history.json of a project as a report.

Without an argument the configured project directory is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportFlags.json, "json", false, "Print the raw history document")
	reportCmd.Flags().StringVar(&reportFlags.style, "style", "dark", "Markdown style (dark, light, notty)")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := service.ProjectDir(cfg)
	if len(args) == 1 {
		dir = args[0]
	}

	doc, err := history.ReadFile(history.Path(dir))
	if err != nil {
		return fmt.Errorf("no build history in %s: %w", dir, err)
	}

	out := colorprofile.NewWriter(cmd.OutOrStdout(), os.Environ())
	width := report.MaxWidth
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		width = w
	}

	if reportFlags.json {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, report.HighlightJSON(data))
		return err
	}

	_, err = fmt.Fprintln(out, report.Render(report.Markdown(doc, time.Now()), width, reportFlags.style))
	return err
}
