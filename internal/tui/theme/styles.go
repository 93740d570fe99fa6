package theme

import "charm.land/lipgloss/v2"

// Styles contains all pre-built lipgloss styles for the TUI.
type Styles struct {
	HeaderTitle lipgloss.Style
	Header      lipgloss.Style
	PanelTitle  lipgloss.Style
	Text        lipgloss.Style
	Muted       lipgloss.Style
	Subtle      lipgloss.Style
	Success     lipgloss.Style
	Warning     lipgloss.Style
	Error       lipgloss.Style
	Info        lipgloss.Style
}
