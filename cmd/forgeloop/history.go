package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/colorprofile"
	"github.com/mark3labs/forgeloop/internal/history"
	"github.com/mark3labs/forgeloop/internal/report"
	"github.com/mark3labs/forgeloop/internal/tui/theme"
	"github.com/spf13/cobra"
)

var historyFlags struct {
	json bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect runs recorded in the event log",
	Long: `Inspect runs recorded in the embedded event log under data_dir.

Every build publishes its start, iteration records and completion as events;
these commands replay them, including runs whose project directory is gone.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Events {
			return fmt.Errorf("event log is disabled (events: false)")
		}
		store, closeEvents, err := openEvents(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeEvents()

		runs, err := store.Runs(cmd.Context())
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
			return nil
		}

		out := colorprofile.NewWriter(cmd.OutOrStdout(), os.Environ())
		s := theme.Current().S()
		for _, run := range runs {
			st, err := store.LoadState(cmd.Context(), run)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  %s  %s  %s\n",
				s.PanelTitle.Render(run), runOutcome(st),
				s.Muted.Render(fmt.Sprintf("%d entries", len(st.Entries))), st.Goal)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run>",
	Short: "Show the report of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Events {
			return fmt.Errorf("event log is disabled (events: false)")
		}
		store, closeEvents, err := openEvents(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeEvents()

		st, err := store.LoadState(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if st.StartedAt.IsZero() {
			return fmt.Errorf("run %s not found", args[0])
		}

		out := colorprofile.NewWriter(cmd.OutOrStdout(), os.Environ())
		if historyFlags.json {
			data, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, report.HighlightJSON(data))
			return err
		}
		_, err = fmt.Fprintln(out, report.Render(report.Markdown(st.Document(), time.Now()), report.MaxWidth, "dark"))
		return err
	},
}

func runOutcome(st *history.State) string {
	s := theme.Current().S()
	switch {
	case st.Error != "":
		return s.Error.Render("failed")
	case history.GoalMet(st.Entries):
		return s.Success.Render("goal met")
	case st.Stopped:
		return s.Warning.Render("stopped")
	case st.Complete:
		return s.Warning.Render("exhausted")
	}
	return s.Info.Render("running")
}

func init() {
	historyShowCmd.Flags().BoolVar(&historyFlags.json, "json", false, "Print the replayed run state")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}
