// Package tui renders a live monitor for a running build.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"
	ierr "github.com/mark3labs/forgeloop/internal/errors"
	"github.com/mark3labs/forgeloop/internal/history"
	"github.com/mark3labs/forgeloop/internal/logger"
	"github.com/mark3labs/forgeloop/internal/orchestrator"
	"github.com/mark3labs/forgeloop/internal/tui/theme"
)

// DefaultPollInterval is how often the monitor refreshes the build status.
const DefaultPollInterval = 250 * time.Millisecond

// Source is the build the monitor watches.
type Source interface {
	Status() (orchestrator.Status, error)
	History() (*history.Document, error)
	Stop() error
}

// pollMsg carries one refresh of the build state.
type pollMsg struct {
	status  orchestrator.Status
	entries []history.Entry
	err     error
}

// Monitor is the Bubbletea model of the build monitor. It quits by itself
// once the build finishes.
type Monitor struct {
	src      Source
	interval time.Duration
	spinner  Spinner

	width  int
	height int

	status   orchestrator.Status
	entries  []history.Entry
	err      error
	stopping bool
	finished bool
	quitting bool
}

// NewMonitor creates a monitor polling src every interval.
func NewMonitor(src Source, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		src:      src,
		interval: interval,
		spinner:  NewDefaultSpinner(),
		width:    80,
		height:   24,
	}
}

// Finished reports whether the monitor saw the build end.
func (m *Monitor) Finished() bool {
	return m.finished
}

// Init starts polling and the spinner.
func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick(), m.fetch)
}

func (m *Monitor) fetch() tea.Msg {
	st, err := m.src.Status()
	if err != nil {
		return pollMsg{err: err}
	}
	msg := pollMsg{status: st}
	if doc, err := m.src.History(); err == nil {
		msg.entries = doc.History
	}
	return msg
}

func (m *Monitor) poll() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return m.fetch() })
}

// Update handles input, polling and spinner ticks.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.requestStop()
			m.quitting = true
			return m, tea.Quit
		case "s":
			m.requestStop()
			return m, nil
		}
		return m, nil

	case pollMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.entries = msg.entries
		}
		if m.done() {
			m.finished = true
			return m, tea.Quit
		}
		return m, m.poll()
	}

	return m, m.spinner.Update(msg)
}

// done reports whether the build started and has since left the loop.
func (m *Monitor) done() bool {
	if errors.Is(m.err, ierr.ErrNoBuild) {
		return false
	}
	return !m.status.StartedAt.IsZero() && !m.status.IsRunning
}

func (m *Monitor) requestStop() {
	if m.stopping || !m.status.IsRunning {
		return
	}
	m.stopping = true
	if err := m.src.Stop(); err != nil {
		logger.Debug("Stop from monitor: %v", err)
	}
}

// View renders the monitor.
func (m *Monitor) View() tea.View {
	var view tea.View
	if m.quitting {
		view.Content = lipgloss.NewLayer("")
		return view
	}
	view.Content = lipgloss.NewLayer(m.render())
	return view
}

func (m *Monitor) render() string {
	canvas := uv.NewScreenBuffer(m.width, m.height)
	m.Draw(canvas, canvas.Bounds())
	return canvas.Render()
}

// Draw renders the header, score, history and footer into area.
func (m *Monitor) Draw(scr uv.Screen, area uv.Rectangle) {
	if area.Dy() < 4 {
		return
	}
	t := theme.Current()
	s := t.S()
	st := m.status

	// Header
	left := s.HeaderTitle.Render("forgeloop") + " " + s.Subtle.Render(st.RunID)
	right := fmt.Sprintf("%s %s", m.spinnerView(), m.phaseLabel())
	DrawStyled(scr, row(area, 0), s.Header, spread(left, right, area.Dx()-2))

	// Goal and progress
	DrawText(scr, row(area, 2), s.Muted.Render("Goal: ")+s.Text.Render(st.Goal))
	progress := fmt.Sprintf("Iteration %d/%d", st.CurrentIteration, st.MaxIterations)
	score := lipgloss.NewStyle().Foreground(lipgloss.Color(t.ScoreColor(st.LatestScore))).Bold(true).
		Render(fmt.Sprintf("%.1f", st.LatestScore))
	elapsed := formatDuration(time.Duration(st.ElapsedTime * float64(time.Second)))
	DrawText(scr, row(area, 3), s.Text.Render(progress)+s.Muted.Render("  score ")+score+
		s.Muted.Render("  elapsed "+elapsed))
	DrawText(scr, row(area, 4), scoreBar(st.LatestScore, min(area.Dx(), 50)))

	// History
	body := uv.Rectangle{
		Min: uv.Position{X: area.Min.X, Y: area.Min.Y + 6},
		Max: uv.Position{X: area.Max.X, Y: area.Max.Y - 1},
	}
	if body.Dy() > 1 {
		inner := DrawPanel(scr, body, "History")
		lines := m.historyLines(area.Dx())
		if n := inner.Dy(); len(lines) > n {
			lines = lines[len(lines)-n:]
		}
		for i, line := range lines {
			DrawText(scr, row(inner, i), line)
		}
	}

	// Footer
	footer := s.Muted.Render("s stop  q quit")
	if m.err != nil && !errors.Is(m.err, ierr.ErrNoBuild) {
		footer = s.Error.Render(m.err.Error())
	} else if st.Error != "" {
		footer = s.Error.Render(st.Error)
	}
	DrawText(scr, row(area, area.Dy()-1), footer)
}

func (m *Monitor) spinnerView() string {
	return m.spinner.View(m.status.IsRunning && !m.stopping)
}

func (m *Monitor) phaseLabel() string {
	s := theme.Current().S()
	switch {
	case m.stopping && m.status.IsRunning:
		return s.Warning.Render("stopping")
	case m.status.GoalMet:
		return s.Success.Render("goal met")
	case m.done():
		return s.Warning.Render("finished")
	case m.status.Phase == "":
		return s.Muted.Render("waiting")
	}
	return s.Info.Render(string(m.status.Phase))
}

func (m *Monitor) historyLines(width int) []string {
	s := theme.Current().S()
	if len(m.entries) == 0 {
		return []string{s.Muted.Render("No iterations yet")}
	}

	lines := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		label := fmt.Sprintf("#%-3d %5.1f", e.Iteration, e.Review.Score)
		var detail string
		switch e.Action {
		case history.ActionGoalAchieved:
			detail = s.Success.Render("goal achieved")
		case history.ActionFinalReview:
			detail = s.Info.Render("final review")
		default:
			detail = s.Text.Render(strings.Join(e.FeaturesImplemented, ", "))
			if failed := failedSteps(e); len(failed) > 0 {
				detail += " " + s.Error.Render("failed: "+strings.Join(failed, ", "))
			}
		}
		line := s.Subtle.Render(label) + "  " + detail
		if lipgloss.Width(line) > width {
			line = lipgloss.NewStyle().MaxWidth(width).Render(line)
		}
		lines = append(lines, line)
	}
	return lines
}

func failedSteps(e history.Entry) []string {
	var out []string
	for _, name := range []string{orchestrator.StepImplement, orchestrator.StepInstall, orchestrator.StepBuild} {
		if r, ok := e.Steps[name]; ok && !r.Success {
			out = append(out, name)
		}
	}
	return out
}

// scoreBar renders a horizontal bar filled in proportion to score.
func scoreBar(score float64, width int) string {
	if width < 2 {
		return ""
	}
	t := theme.Current()
	filled := int(score / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	on := lipgloss.NewStyle().Foreground(lipgloss.Color(t.ScoreColor(score)))
	off := lipgloss.NewStyle().Foreground(lipgloss.Color(t.BgSurface0))
	return on.Render(strings.Repeat("█", filled)) + off.Render(strings.Repeat("░", width-filled))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	if d < time.Minute {
		return d.Round(100 * time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
