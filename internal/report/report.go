// Package report turns a build history into a markdown summary and renders
// it for the terminal.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"charm.land/glamour/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/mark3labs/forgeloop/internal/history"
)

// MaxWidth caps the rendered width for readability.
const MaxWidth = 120

// Markdown summarizes doc. now is used for the relative completion time.
func Markdown(doc *history.Document, now time.Time) string {
	var b strings.Builder

	b.WriteString("# Build report\n\n")
	fmt.Fprintf(&b, "**Goal:** %s\n\n", doc.Goal)
	if doc.ProjectSpec != "" {
		fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(strings.TrimSpace(doc.ProjectSpec), "\n", "\n> "))
	}

	outcome := "goal not met"
	if history.GoalMet(doc.History) {
		outcome = "goal met"
	}
	fmt.Fprintf(&b, "- **Outcome:** %s\n", outcome)
	fmt.Fprintf(&b, "- **Iterations:** %d\n", doc.TotalIterations)
	fmt.Fprintf(&b, "- **Latest score:** %.1f\n", history.LatestScore(doc.History))
	if !doc.CompletedAt.IsZero() {
		fmt.Fprintf(&b, "- **Completed:** %s (%s)\n", doc.CompletedAt.Format(time.RFC3339), formatTimeAgo(now.Sub(doc.CompletedAt)))
	}
	b.WriteString("\n")

	if len(doc.History) == 0 {
		b.WriteString("_No iterations recorded._\n")
		return b.String()
	}

	b.WriteString("## Iterations\n\n")
	b.WriteString("| # | Action | Score | Goal | Features | Failed steps | Files |\n")
	b.WriteString("|---|--------|------:|------|----------|--------------|------:|\n")
	for _, e := range doc.History {
		action := e.Action
		if action == "" {
			action = "iterate"
		}
		fmt.Fprintf(&b, "| %d | %s | %.1f | %s | %s | %s | %d |\n",
			e.Iteration, action, e.Review.Score, yesNo(e.Review.MeetsGoal),
			cell(e.FeaturesImplemented), cell(failedSteps(e)), len(e.FilesChanged))
	}

	if errs := stepErrors(doc.History); len(errs) > 0 {
		b.WriteString("\n## Step failures\n\n")
		for _, line := range errs {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func cell(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.ReplaceAll(strings.Join(items, ", "), "|", "\\|")
}

func failedSteps(e history.Entry) []string {
	var out []string
	for name, r := range e.Steps {
		if !r.Success {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func stepErrors(entries []history.Entry) []string {
	var out []string
	for _, e := range entries {
		for _, name := range failedSteps(e) {
			msg := strings.TrimSpace(e.Steps[name].Error)
			if msg == "" {
				msg = "failed"
			}
			out = append(out, fmt.Sprintf("Iteration %d, %s: `%s`", e.Iteration, name, strings.ReplaceAll(msg, "`", "'")))
		}
	}
	return out
}

// Render renders markdown for the terminal with the named glamour style
// ("dark", "light", "notty", ...). It falls back to the raw markdown when
// rendering fails.
func Render(markdown string, width int, style string) string {
	if width <= 0 || width > MaxWidth {
		width = MaxWidth
	}
	if style == "" {
		style = "dark"
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	rendered, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimSuffix(rendered, "\n")
}

// HighlightJSON colors raw JSON for a true color terminal.
func HighlightJSON(data []byte) string {
	source := string(data)

	lexer := lexers.Get("json")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	formatter := formatters.Get("terminal16m")
	if formatter == nil {
		formatter = formatters.Get("terminal256")
	}
	if formatter == nil {
		return source
	}
	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return source
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return source
	}
	return strings.TrimRight(buf.String(), "\n")
}

// formatTimeAgo formats a duration as human-readable "time ago" string.
func formatTimeAgo(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	} else if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1min ago"
		}
		return fmt.Sprintf("%dmin ago", mins)
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1hr ago"
		}
		return fmt.Sprintf("%dhr ago", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
