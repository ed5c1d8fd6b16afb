package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds all key bindings for the TUI.
type keyMap struct {
	Quit        key.Binding
	Refresh     key.Binding
	Help        key.Binding
	ClusterOnly key.Binding
	PrevPage    key.Binding
	NextPage    key.Binding
}

// keys is the global key map.
var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "redraw now"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
	ClusterOnly: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "cluster-wide caches only"),
	),
	PrevPage: key.NewBinding(
		key.WithKeys("left", "pgup"),
		key.WithHelp("←", "prev page"),
	),
	NextPage: key.NewBinding(
		key.WithKeys("right", "pgdown"),
		key.WithHelp("→", "next page"),
	),
}

// helpText is the full help string displayed in the footer when help is toggled on.
const helpText = "q/ctrl+c: quit  r: redraw  c: cluster-wide only  ←/→: page  ?: toggle help"
