package views

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskflow/internal/apperr"
	"github.com/tgienger/taskflow/internal/tasks"
	"github.com/tgienger/taskflow/internal/ui/keys"
	"github.com/tgienger/taskflow/internal/ui/styles"
)

// field names used by tasks.Draft validation errors, in input order
var addTaskFields = []string{"title", "description", "dueDate"}

// AddTaskView is the new task form
type AddTaskView struct {
	ctx        context.Context
	controller *tasks.Controller
	styles     *styles.Styles
	keys       keys.KeyMap

	width  int
	height int

	inputs []textinput.Model
	focus  int
	busy   bool
	// fieldErr is keyed by the draft field name
	fieldErr map[string]string
	err      string
}

// NewAddTaskView creates the form
func NewAddTaskView(ctx context.Context, controller *tasks.Controller) *AddTaskView {
	return &AddTaskView{
		ctx:        ctx,
		controller: controller,
		styles:     styles.NewStyles(),
		keys:       keys.DefaultKeyMap(),
		inputs: []textinput.Model{
			newInput("Enter task title", 200),
			newInput("Enter task description", 1000),
			newInput("YYYY-MM-DD", 10),
		},
		fieldErr: make(map[string]string),
	}
}

type taskAddedMsg struct {
	err error
}

// Init focuses the first field
func (v *AddTaskView) Init() tea.Cmd {
	return tea.Batch(focusInput(v.inputs, v.focus), textinput.Blink)
}

// Update handles messages
func (v *AddTaskView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case taskAddedMsg:
		v.busy = false
		if msg.err != nil {
			var e *apperr.Error
			if errors.As(msg.err, &e) && e.Kind == apperr.KindValidation && e.Field != "" {
				v.fieldErr[e.Field] = e.Message
				return v, nil
			}
			v.err = "Failed to add task. Please try again."
			return v, nil
		}
		for i := range v.inputs {
			v.inputs[i].Reset()
		}
		v.focus = 0
		return v, tea.Batch(focusInput(v.inputs, v.focus), func() tea.Msg { return TaskCreated{} })

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, v.keys.Tab), key.Matches(msg, v.keys.Down):
			v.focus = (v.focus + 1) % len(v.inputs)
			return v, focusInput(v.inputs, v.focus)

		case key.Matches(msg, v.keys.ShiftTab), key.Matches(msg, v.keys.Up):
			v.focus = (v.focus + len(v.inputs) - 1) % len(v.inputs)
			return v, focusInput(v.inputs, v.focus)

		case key.Matches(msg, v.keys.Submit):
			return v, v.submit()

		case key.Matches(msg, v.keys.Enter):
			if v.focus < len(v.inputs)-1 {
				v.focus++
				return v, focusInput(v.inputs, v.focus)
			}
			return v, v.submit()
		}

		var cmd tea.Cmd
		v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
		delete(v.fieldErr, addTaskFields[v.focus])
		v.err = ""
		return v, cmd
	}

	return v, nil
}

func (v *AddTaskView) submit() tea.Cmd {
	if v.busy {
		return nil
	}
	v.busy = true
	v.err = ""
	v.fieldErr = make(map[string]string)

	draft := tasks.Draft{
		Title:       v.inputs[0].Value(),
		Description: v.inputs[1].Value(),
		DueDate:     v.inputs[2].Value(),
	}
	ctx, c := v.ctx, v.controller
	return func() tea.Msg {
		_, err := c.Create(ctx, draft)
		return taskAddedMsg{err: err}
	}
}

// View renders the form
func (v *AddTaskView) View() string {
	s := v.styles
	width := clamp(styles.ContentWidth(v.width)-10, 20, 50)

	labels := []string{"Title", "Description", "Due Date"}
	parts := []string{s.Title.Render("Add New Task"), ""}
	for i, in := range v.inputs {
		parts = append(parts, renderField(s, labels[i], in, v.focus == i, v.fieldErr[addTaskFields[i]], width))
	}
	if v.err != "" {
		parts = append(parts, s.Error.Render(v.err))
	}

	button := s.ButtonPrimary.Render("Add Task")
	if v.busy {
		button = s.Button.Render("Adding...")
	}
	parts = append(parts, "", button, renderHelpLine(s, "↵", "next / add", "ctrl+s", "add task", "tab", "next field"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
