package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskflow/internal/ui/styles"
)

// Sender delivers a message to the running program from any goroutine
type Sender func(tea.Msg)

// GoToRegister asks the app to show the registration screen
type GoToRegister struct{}

// GoToLogin asks the app to show the login screen
type GoToLogin struct{}

// TaskCreated is emitted after the add task screen saved a task
type TaskCreated struct{}

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func newInput(placeholder string, limit int) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	return in
}

func newPasswordInput(placeholder string) textinput.Model {
	in := newInput(placeholder, 128)
	in.EchoMode = textinput.EchoPassword
	in.EchoCharacter = '•'
	return in
}

// focusInput focuses inputs[idx] and blurs the rest
func focusInput(inputs []textinput.Model, idx int) tea.Cmd {
	var cmd tea.Cmd
	for i := range inputs {
		if i == idx {
			cmd = inputs[i].Focus()
			continue
		}
		inputs[i].Blur()
	}
	return cmd
}

// renderField draws a labelled input with its error line underneath
func renderField(s *styles.Styles, label string, in textinput.Model, focused bool, errMsg string, width int) string {
	box := s.Input
	if focused {
		box = s.InputFocused
	}
	parts := []string{s.Label.Render(label), box.Width(width).Render(in.View())}
	if errMsg != "" {
		parts = append(parts, s.FieldError.Width(width).Render(errMsg))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderHelpLine renders "key desc • key desc" pairs
func renderHelpLine(s *styles.Styles, pairs ...string) string {
	var items []string
	for i := 0; i+1 < len(pairs); i += 2 {
		items = append(items, s.HelpKey.Render(pairs[i])+" "+s.HelpDesc.Render(pairs[i+1]))
	}
	return s.Help.Render(strings.Join(items, " • "))
}

// popup centers content in a bordered box
func popup(s *styles.Styles, content string, width, height int) string {
	contentWidth := styles.ContentWidth(width)
	centered := lipgloss.Place(contentWidth, height,
		lipgloss.Center, lipgloss.Center,
		s.Popup.Render(content),
	)
	return styles.CenterView(centered, width, height)
}
