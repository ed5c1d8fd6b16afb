package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dm/gridmon/internal/format"
	"github.com/dm/gridmon/internal/model"
)

const (
	minCacheColWidth = 12
	minNodeColWidth  = 8
	totalColWidth    = 12
	rateColWidth     = 14
)

// columnDef describes a single column in the cache table.
type columnDef struct {
	Title string
	Width int
	Align lipgloss.Position
	Style lipgloss.Style
}

// cacheColumns builds the column set: cache name, one column per node in
// snapshot order headed in the node's color, then the per-cache total.
func cacheColumns(app *App, caches []model.CacheNameInfo) []columnDef {
	nameWidth := minCacheColWidth
	for _, c := range caches {
		nameWidth = max(nameWidth, lipgloss.Width(c.Name)+2)
	}
	nameWidth = min(nameWidth, 32)

	cols := []columnDef{{Title: "Cache", Width: nameWidth, Align: lipgloss.Left, Style: StyleTableHeader}}
	for _, ns := range app.current.Nodes {
		title := "● " + ns.Endpoint.Key()
		if !ns.Reachable {
			title = "✗ " + ns.Endpoint.Key()
		}
		cols = append(cols, columnDef{
			Title: title,
			Width: max(minNodeColWidth, lipgloss.Width(title)+1),
			Align: lipgloss.Right,
			Style: NodeStyle(ns.Color, ns.Reachable).Underline(true),
		})
	}
	return append(cols,
		columnDef{Title: "Total", Width: totalColWidth, Align: lipgloss.Right, Style: StyleTableHeader},
		columnDef{Title: "Δ/s", Width: rateColWidth, Align: lipgloss.Right, Style: StyleTableHeader},
	)
}

// renderCacheTable renders the current page of the cache × node entry
// table. Unknown counts render as "---"; a known zero renders as "0".
func renderCacheTable(app *App) string {
	if app.current == nil {
		return ""
	}
	caches := app.visibleCaches()
	if len(caches) == 0 {
		return StyleDim.Render("  no caches discovered yet")
	}

	cols := cacheColumns(app, caches)
	var b strings.Builder

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Style.Width(c.Width).Align(c.Align).Render(truncate(c.Title, c.Width))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, header...))

	size := app.pageSize()
	start := min(app.page*size, len(caches))
	end := min(start+size, len(caches))
	for i, c := range caches[start:end] {
		rowStyle := StyleTableRow
		if i%2 == 1 {
			rowStyle = StyleTableRowAlt
		}
		cells := make([]string, 0, len(cols))
		name := c.Name
		if !c.ClusterWide {
			name += "*"
		}
		cells = append(cells, rowStyle.Width(cols[0].Width).Align(lipgloss.Left).Render(truncate(name, cols[0].Width)))

		var sum int64
		anyKnown := false
		for j, ns := range app.current.Nodes {
			count := app.current.Count(ns.Endpoint.Key(), c.Name)
			if count.Known {
				sum += count.Value
				anyKnown = true
			}
			style := rowStyle
			if !count.Known {
				style = StyleDim
			}
			cells = append(cells, style.Width(cols[j+1].Width).Align(lipgloss.Right).Render(format.FormatCount(count)))
		}

		total := model.Unknown
		if anyKnown {
			total = model.Count(sum)
		}
		totalCol := cols[len(cols)-2]
		cells = append(cells, rowStyle.Bold(true).Width(totalCol.Width).Align(lipgloss.Right).Render(format.FormatCount(total)))

		rateCol := cols[len(cols)-1]
		rate := format.Placeholder
		rateStyle := StyleDim
		if r, ok := app.rates[c.Name]; ok {
			rate = format.FormatDelta(r)
			rateStyle = rowStyle
			if r != 0 {
				rateStyle = StyleCyan
			}
		}
		cells = append(cells, rateStyle.Width(rateCol.Width).Align(lipgloss.Right).Render(rate))

		b.WriteString("\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return b.String()
}

// truncate shortens s to fit width cells, marking the cut with "…".
func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width-1 {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width-1 {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
