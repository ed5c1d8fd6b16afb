package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dm/gridmon/internal/format"
)

// renderOverview renders the four-card overview row: reachability, cache
// count, total entries with its trend, and unknown pairs.
// Narrow terminals (< 80 cols) stack the cards two per row.
// Returns empty string if no snapshot is available yet.
func renderOverview(app *App) string {
	if app.current == nil {
		return ""
	}

	width := app.width
	if width <= 0 {
		width = 80
	}
	narrowMode := width < 80

	var cardWidth int
	if narrowMode {
		cardWidth = max((width-4)/2, 10)
	} else {
		cardWidth = max((width-8)/4, 12)
	}
	// Inner width: card width minus padding (1 char each side).
	barWidth := max(cardWidth-4, 4)

	snap := app.current
	total := len(snap.Nodes)
	up := snap.Reachable()

	pct := 0.0
	if total > 0 {
		pct = float64(up) / float64(total) * 100
	}
	card1 := StyleOverviewCard.
		Foreground(ReachabilityStyle(up, total).GetForeground()).
		Bold(true).
		Width(cardWidth).
		Render(fmt.Sprintf("%d/%d", up, total) + "\n" + renderMiniBar(pct, barWidth) + "\nNodes")

	clusterWide := 0
	for _, c := range app.caches {
		if c.ClusterWide {
			clusterWide++
		}
	}
	card2 := StyleOverviewCard.
		Foreground(colorCyan).
		Width(cardWidth).
		Render(fmt.Sprintf("%d", len(app.caches)) + "\n" + fmt.Sprintf("%d cluster-wide", clusterWide) + "\nCaches")

	trend := RenderSparkline(app.history.Values("totalEntries"), barWidth, colorGreen)
	card3 := StyleOverviewCard.
		Foreground(colorWhite).
		Width(cardWidth).
		Render(format.FormatNumber(snap.TotalEntries()) + "\n" + trend + "\nEntries")

	unknown := unknownPairs(app)
	unknownStyle := StyleOverviewCard.Foreground(colorGray)
	if unknown > 0 {
		unknownStyle = StyleOverviewCard.Foreground(colorYellow)
	}
	card4 := unknownStyle.
		Width(cardWidth).
		Render(fmt.Sprintf("%d", unknown) + "\n" + strings.Repeat(" ", barWidth) + "\nUnknown")

	if narrowMode {
		row1 := lipgloss.JoinHorizontal(lipgloss.Top, card1, card2)
		row2 := lipgloss.JoinHorizontal(lipgloss.Top, card3, card4)
		return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, card1, card2, card3, card4)
}

// unknownPairs counts (node, cache) pairs in the current snapshot whose
// count could not be read.
func unknownPairs(app *App) int {
	n := 0
	for _, ns := range app.current.Nodes {
		for _, c := range app.caches {
			if !app.current.Count(ns.Endpoint.Key(), c.Name).Known {
				n++
			}
		}
	}
	return n
}

// renderMiniBar renders a mini progress bar using Unicode block characters.
// Fills proportionally using "█" (U+2588) for filled and "░" (U+2591) for empty cells.
func renderMiniBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	percent = max(0, min(percent, 100))
	filled := min(int(percent/100.0*float64(width)), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
