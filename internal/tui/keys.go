package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the bindings for every phase. Browse bindings only apply while browsing.
type keyMap struct {
	Up             key.Binding
	Down           key.Binding
	PageUp         key.Binding
	PageDown       key.Binding
	Open           key.Binding
	Parent         key.Binding
	Toggle         key.Binding
	SelectAll      key.Binding
	SelectMatching key.Binding
	Clear          key.Binding
	Search         key.Binding
	NextMatch      key.Binding
	PrevMatch      key.Binding
	Refresh        key.Binding
	Commit         key.Binding
	Cancel         key.Binding
	Quit           key.Binding
	Help           key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "page down"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter", "right", "l"),
			key.WithHelp("enter/→", "open dir"),
		),
		Parent: key.NewBinding(
			key.WithKeys("left", "backspace", "h"),
			key.WithHelp("←/bksp", "parent"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "toggle"),
		),
		SelectAll: key.NewBinding(
			key.WithKeys("ctrl+a", "a"),
			key.WithHelp("a", "select all"),
		),
		SelectMatching: key.NewBinding(
			key.WithKeys("m", "*"),
			key.WithHelp("m", "select matches"),
		),
		Clear: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		NextMatch: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next match"),
		),
		PrevMatch: key.NewBinding(
			key.WithKeys("p", "N"),
			key.WithHelp("p/N", "prev match"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Commit: key.NewBinding(
			key.WithKeys("c", "tab"),
			key.WithHelp("c", "copy"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "q"),
			key.WithHelp("esc/q", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Open, k.Parent, k.Search, k.Commit, k.Cancel, k.Help}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Open, k.Parent, k.Refresh},
		{k.Toggle, k.SelectAll, k.Clear},
		{k.Search, k.NextMatch, k.PrevMatch, k.SelectMatching},
		{k.Commit, k.Cancel, k.Quit, k.Help},
	}
}
