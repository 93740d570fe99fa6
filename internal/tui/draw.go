package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/mark3labs/forgeloop/internal/tui/theme"
)

// row returns the one-line rectangle at offset y inside area.
func row(area uv.Rectangle, y int) uv.Rectangle {
	return uv.Rectangle{
		Min: uv.Position{X: area.Min.X, Y: area.Min.Y + y},
		Max: uv.Position{X: area.Max.X, Y: area.Min.Y + y + 1},
	}
}

// DrawText renders plain text at a position
func DrawText(scr uv.Screen, area uv.Rectangle, text string) {
	uv.NewStyledString(text).Draw(scr, area)
}

// DrawStyled renders lipgloss-styled content at a position
func DrawStyled(scr uv.Screen, area uv.Rectangle, style lipgloss.Style, text string) {
	content := style.Width(area.Dx()).Height(area.Dy()).Render(text)
	uv.NewStyledString(content).Draw(scr, area)
}

// DrawPanel renders a "Title ────────" header and returns the content area
// below it.
func DrawPanel(scr uv.Screen, area uv.Rectangle, title string) uv.Rectangle {
	if area.Dy() < 1 {
		return area
	}
	s := theme.Current().S()

	styledTitle := s.PanelTitle.Render(title)
	ruleWidth := area.Dx() - lipgloss.Width(styledTitle) - 1
	if ruleWidth < 0 {
		ruleWidth = 0
	}
	DrawText(scr, row(area, 0), styledTitle+" "+s.Muted.Render(strings.Repeat("─", ruleWidth)))

	return uv.Rectangle{
		Min: uv.Position{X: area.Min.X, Y: area.Min.Y + 1},
		Max: area.Max,
	}
}

// spread places left and right on one line of the given width.
func spread(left, right string, width int) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}
