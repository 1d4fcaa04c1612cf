package tui

import "charm.land/bubbles/v2/key"

// KeyMap defines the host page key bindings.
type KeyMap struct {
	Open           key.Binding
	Close          key.Binding
	Primary        key.Binding
	Secondary      key.Binding
	ToggleDisabled key.Binding
	Remount        key.Binding
	CopyID         key.Binding
	Help           key.Binding
	Quit           key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Open:           key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		Close:          key.NewBinding(key.WithKeys("c", "esc"), key.WithHelp("c", "close")),
		Primary:        key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "primary")),
		Secondary:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "secondary")),
		ToggleDisabled: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "toggle disabled")),
		Remount:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "remount")),
		CopyID:         key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy id")),
		Help:           key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Close, k.Primary, k.Secondary, k.ToggleDisabled, k.Remount, k.CopyID, k.Help, k.Quit}
}
