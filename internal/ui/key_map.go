package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	shorter key.Binding
	longer  key.Binding
	login   key.Binding
	find    key.Binding
	open    key.Binding
	logout  key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		shorter: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "shorter")),
		longer:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "longer")),
		login:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "log in with Spotify")),
		find:    key.NewBinding(key.WithKeys("enter", "f"), key.WithHelp("enter", "find meditation")),
		open:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open player")),
		logout:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "log out")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.shorter, k.longer, k.find},
		{k.open, k.logout, k.login},
		{k.quit},
	}
}
