// Package theme holds the color palette and pre-built styles of the monitor.
package theme

import (
	"image/color"
	"sync"

	"charm.land/lipgloss/v2"
)

// Theme defines the color palette for the TUI.
type Theme struct {
	Name   string
	IsDark bool

	// Semantic colors
	Primary   string // hex, e.g. "#cba6f7"
	Secondary string

	// Background hierarchy (dark→light)
	BgCrust    string
	BgBase     string
	BgSurface0 string

	// Foreground hierarchy (dim→bright)
	FgMuted  string
	FgSubtle string
	FgBase   string

	// Status colors
	Success string
	Warning string
	Error   string
	Info    string

	// Lazy-built styles
	styles     *Styles
	stylesOnce sync.Once
}

var (
	currentMu sync.RWMutex
	current   = NewCatppuccinMocha()
)

// Current returns the active theme.
func Current() *Theme {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

// SetCurrent replaces the active theme.
func SetCurrent(t *Theme) {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = t
}

// HexToColor converts a hex string into a color usable by lipgloss.
func HexToColor(hex string) color.Color {
	return lipgloss.Color(hex)
}

// S returns the pre-built styles for this theme.
// Styles are lazily initialized on first call.
func (t *Theme) S() *Styles {
	t.stylesOnce.Do(func() {
		t.styles = t.buildStyles()
	})
	return t.styles
}

// ScoreColor blends from Error at 0 to Success at 100.
func (t *Theme) ScoreColor(score float64) string {
	pos := score / 100
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return InterpolateColor(t.Error, t.Success, pos)
}

// buildStyles constructs the pre-built styles from theme colors.
func (t *Theme) buildStyles() *Styles {
	return &Styles{
		HeaderTitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Primary)).
			Bold(true),
		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.BgSurface0)).
			Foreground(lipgloss.Color(t.FgBase)).
			Padding(0, 1),
		PanelTitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Secondary)).
			Bold(true),
		Text:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgBase)),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgMuted)),
		Subtle:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgSubtle)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Success)).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Warning)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Error)).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Info)),
	}
}
