package tui

import (
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/mark3labs/forgeloop/internal/tui/theme"
)

// Spinner is the activity indicator of the monitor header. It animates only
// while a build is iterating.
type Spinner struct {
	model spinner.Model
	idle  string
}

// NewSpinner creates a spinner with the given frames in the primary color.
func NewSpinner(style spinner.Spinner) Spinner {
	t := theme.Current()
	fg := lipgloss.NewStyle().Foreground(lipgloss.Color(t.Primary))
	return Spinner{
		model: spinner.New(spinner.WithSpinner(style), spinner.WithStyle(fg)),
		idle:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgMuted)).Render("●"),
	}
}

// NewDefaultSpinner creates a MiniDot spinner.
func NewDefaultSpinner() Spinner {
	return NewSpinner(spinner.MiniDot)
}

// Update advances the animation on its own tick messages.
func (s *Spinner) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	s.model, cmd = s.model.Update(msg)
	return cmd
}

// View renders the current frame while active, a static dot otherwise.
func (s *Spinner) View(active bool) string {
	if !active {
		return s.idle
	}
	return s.model.View()
}

// Tick starts the animation.
func (s *Spinner) Tick() tea.Cmd {
	return s.model.Tick
}
