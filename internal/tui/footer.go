package tui

import "fmt"

// renderFooter renders the key binding help footer at full terminal width.
// When app.showHelp is true, shows all key bindings; otherwise a brief hint
// plus the page indicator.
func renderFooter(app *App) string {
	width := app.width
	if width <= 0 {
		width = 80
	}
	text := "? for help"
	if app.showHelp {
		text = helpText
	}
	if pages := app.pageCount(); pages > 1 {
		text += fmt.Sprintf("  page %d/%d", app.page+1, pages)
	}
	if app.clusterOnly {
		text += "  [cluster-wide]"
	}
	return StyleDim.Width(width).Render(text)
}
