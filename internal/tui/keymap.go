// ============================
// File: internal/tui/keymap.go
// ============================
package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines keyboard shortcuts for the dashboard
type KeyMap struct {
	Quit       key.Binding
	Deposit    key.Binding
	Withdraw   key.Binding
	Refresh    key.Binding
	ToggleLogs key.Binding
	Help       key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "quit"),
		),
		Deposit: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "probe deposit"),
		),
		Withdraw: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "probe withdraw"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r", "f5"),
			key.WithHelp("r/F5", "refresh"),
		),
		ToggleLogs: key.NewBinding(
			key.WithKeys("l", "ctrl+l"),
			key.WithHelp("l", "toggle logs"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

// ShortHelp returns key help text for the help bar
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Deposit, k.Withdraw, k.Refresh, k.ToggleLogs, k.Quit}
}

// FullHelp returns extended help text
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Deposit, k.Withdraw, k.Refresh},
		{k.ToggleLogs, k.Help, k.Quit},
	}
}
