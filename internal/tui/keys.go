package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the directory view. Plain runes go to
// the search box, so actions sit on control chords.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	ToggleBan key.Binding
	Reload    key.Binding
	Dismiss   key.Binding
	Quit      key.Binding
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "ctrl+p"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "ctrl+n"),
		key.WithHelp("↓", "down"),
	),
	ToggleBan: key.NewBinding(
		key.WithKeys("ctrl+b"),
		key.WithHelp("C-b", "ban/unban"),
	),
	Reload: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("C-r", "reload"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("C-x", "dismiss"),
	),
	Quit: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "quit"),
	),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.ToggleBan, k.Reload, k.Dismiss, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
