package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dm/gridmon/internal/format"
)

// renderHeader renders the top header bar.
//
// Layout:
//
//	left:   "gridmon  <target>"
//	center: colored "● k/N REACHABLE", "● WAITING" before the first
//	        snapshot, or "● STALE" when snapshots stopped arriving
//	right:  "Gen: G  Last: HH:MM:SS  Poll: 2s"
func renderHeader(app *App) string {
	width := app.width
	if width <= 0 {
		width = 80
	}

	left := "gridmon"
	if app.target != "" {
		left += "  " + app.target
	}

	var center, right string
	switch {
	case app.current == nil:
		center = StyleStatusUnknown.Render("● WAITING")
		right = StyleDim.Render("Poll: " + format.FormatInterval(app.pollInterval))
	case app.stale():
		center = StyleError.Render("● STALE  " + format.FormatAge(app.current.GeneratedAt, app.now()))
		right = StyleError.Render(fmt.Sprintf("Gen: %d", app.current.Generation))
	default:
		total := len(app.current.Nodes)
		up := app.current.Reachable()
		center = ReachabilityStyle(up, total).Render(fmt.Sprintf("● %d/%d REACHABLE", up, total))
		right = StyleDim.Render(fmt.Sprintf("Gen: %d  Last: %s  Poll: %s",
			app.current.Generation,
			app.current.GeneratedAt.Format("15:04:05"),
			format.FormatInterval(app.pollInterval)))
	}

	// StyleHeader has Padding(0, 1) so inner content width = total width - 2.
	innerWidth := width - 2
	spacing := innerWidth - lipgloss.Width(left) - lipgloss.Width(center) - lipgloss.Width(right)
	if spacing < 0 {
		spacing = 0
	}
	leftSpacing := spacing / 2
	rightSpacing := spacing - leftSpacing

	row := left +
		strings.Repeat(" ", leftSpacing) +
		center +
		strings.Repeat(" ", rightSpacing) +
		right

	return StyleHeader.Width(width).Render(row)
}
