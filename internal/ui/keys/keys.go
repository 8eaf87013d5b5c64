// Package keys defines the key bindings shared by the screens.
package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every binding
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Enter    key.Binding
	Back     key.Binding
	Tab      key.Binding
	ShiftTab key.Binding
	Quit     key.Binding
	Submit   key.Binding

	// tab bar
	TasksTab   key.Binding
	AddTaskTab key.Binding
	ProfileTab key.Binding

	// task list
	Edit       key.Binding
	Delete     key.Binding
	Refresh    key.Binding
	Pending    key.Binding
	InProgress key.Binding
	Completed  key.Binding
	Help       key.Binding

	// auth screens
	SwitchForm key.Binding
	SignOut    key.Binding
}

// DefaultKeyMap returns the default bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("↵", "select")),
		Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		ShiftTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous field")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Submit:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "submit")),

		TasksTab:   key.NewBinding(key.WithKeys("f1"), key.WithHelp("F1", "tasks (twice to refresh)")),
		AddTaskTab: key.NewBinding(key.WithKeys("f2"), key.WithHelp("F2", "add task")),
		ProfileTab: key.NewBinding(key.WithKeys("f3"), key.WithHelp("F3", "profile")),

		Edit:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Pending:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pending")),
		InProgress: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "in progress")),
		Completed:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "completed")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),

		SwitchForm: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "switch login/register")),
		SignOut:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "sign out")),
	}
}
