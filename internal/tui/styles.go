package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dm/gridmon/internal/model"
)

// Color constants.
var (
	colorGreen  = lipgloss.Color("#10b981")
	colorYellow = lipgloss.Color("#f59e0b")
	colorRed    = lipgloss.Color("#ef4444")
	colorGray   = lipgloss.Color("#6b7280")
	colorCyan   = lipgloss.Color("#06b6d4")
	colorWhite  = lipgloss.Color("#f8fafc")
	colorDark   = lipgloss.Color("#1e293b")
	colorAlt    = lipgloss.Color("#0f172a")
)

// Status styles, used for the reachability indicator.
var (
	StyleStatusGreen   = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	StyleStatusYellow  = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	StyleStatusRed     = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	StyleStatusUnknown = lipgloss.NewStyle().Foreground(colorGray)
)

// StyleHeader is the full-width dark header bar.
var StyleHeader = lipgloss.NewStyle().
	Background(colorDark).
	Foreground(colorWhite).
	Padding(0, 1)

// StyleOverviewCard is a bordered card in the overview row.
var StyleOverviewCard = lipgloss.NewStyle().
	Background(colorAlt).
	Foreground(colorWhite).
	Padding(0, 1).
	Margin(0).
	Align(lipgloss.Center)

// Table styles.
var (
	StyleTableHeader = lipgloss.NewStyle().
				Bold(true).
				Underline(true).
				Foreground(colorGray)

	StyleTableRow = lipgloss.NewStyle().
			Foreground(colorWhite)

	StyleTableRowAlt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#cbd5e1"))
)

// Utility styles.
var (
	StyleError = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	StyleDim   = lipgloss.NewStyle().Foreground(colorGray)
	StyleCyan  = lipgloss.NewStyle().Foreground(colorCyan)
)

// ReachabilityStyle colors the header indicator: green when every node
// answered, yellow when some did, red when none did.
func ReachabilityStyle(up, total int) lipgloss.Style {
	switch {
	case total == 0:
		return StyleStatusUnknown
	case up == total:
		return StyleStatusGreen
	case up > 0:
		return StyleStatusYellow
	default:
		return StyleStatusRed
	}
}

// NodeStyle renders text in a node's assigned color. Unreachable nodes are
// dimmed.
func NodeStyle(c model.Color, reachable bool) lipgloss.Style {
	if !reachable {
		return StyleDim
	}
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.Hex()))
}
