package views

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskflow/internal/form"
	"github.com/tgienger/taskflow/internal/session"
	"github.com/tgienger/taskflow/internal/ui/keys"
	"github.com/tgienger/taskflow/internal/ui/styles"
)

var registerFields = []form.Field{form.FieldUsername, form.FieldEmail, form.FieldPassword, form.FieldConfirm}

var registerLabels = map[form.Field]string{
	form.FieldUsername: "Username",
	form.FieldEmail:    "Email",
	form.FieldPassword: "Password",
	form.FieldConfirm:  "Confirm Password",
}

// RegisterView is the sign up screen. Password checks are debounced by the
// form and reported back through send.
type RegisterView struct {
	ctx    context.Context
	store  *session.Store
	form   *form.Registration
	styles *styles.Styles
	keys   keys.KeyMap

	width  int
	height int

	inputs []textinput.Model
	focus  int
	busy   bool
	// formErr is the message of a failed sign up no field could take
	formErr string
}

// FieldValidated is sent when a debounced password check finished
type FieldValidated struct{}

// NewRegisterView creates the registration screen. clock may be nil for real time.
func NewRegisterView(ctx context.Context, store *session.Store, clock form.Clock, send Sender) *RegisterView {
	inputs := []textinput.Model{
		newInput("Username", 64),
		newInput("Email", 254),
		newPasswordInput("Password"),
		newPasswordInput("Confirm Password"),
	}

	return &RegisterView{
		ctx:   ctx,
		store: store,
		form: form.NewRegistration(clock, func() {
			if send != nil {
				send(FieldValidated{})
			}
		}),
		styles: styles.NewStyles(),
		keys:   keys.DefaultKeyMap(),
		inputs: inputs,
	}
}

type signUpDoneMsg struct {
	err error
}

// Init focuses the first field
func (v *RegisterView) Init() tea.Cmd {
	return tea.Batch(focusInput(v.inputs, v.focus), textinput.Blink)
}

// Close cancels pending password checks; call it when leaving the screen
func (v *RegisterView) Close() {
	v.form.Close()
}

// Update handles messages
func (v *RegisterView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case FieldValidated:
		// annotations changed; nothing to do but re-render
		return v, nil

	case signUpDoneMsg:
		v.busy = false
		if msg.err != nil && !v.form.AttributeConflict(msg.err) {
			v.formErr = v.store.State().ErrorMessage
		}
		return v, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, v.keys.SwitchForm):
			v.store.ClearError()
			return v, func() tea.Msg { return GoToLogin{} }

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

		before := v.inputs[v.focus].Value()
		var cmd tea.Cmd
		v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
		if after := v.inputs[v.focus].Value(); after != before {
			v.form.SetField(registerFields[v.focus], after)
			v.formErr = ""
		}
		return v, cmd
	}

	return v, nil
}

func (v *RegisterView) submit() tea.Cmd {
	if v.busy {
		return nil
	}
	v.formErr = ""
	if !v.form.Validate() {
		return nil
	}

	v.busy = true
	sub := v.form.Values()
	ctx, store := v.ctx, v.store
	return func() tea.Msg {
		return signUpDoneMsg{err: store.SignUp(ctx, sub.Username, sub.Email, sub.Password)}
	}
}

// View renders the screen
func (v *RegisterView) View() string {
	s := v.styles
	width := clamp(styles.ContentWidth(v.width)-8, 20, 48)

	parts := []string{
		s.Title.Render("Create Account"),
		s.TitleMuted.Render("Sign up to get started"),
		"",
	}
	for i, f := range registerFields {
		parts = append(parts, renderField(s, registerLabels[f], v.inputs[i], v.focus == i, v.form.Error(f), width))
	}
	if v.formErr != "" {
		parts = append(parts, s.Error.Render(v.formErr))
	}

	button := s.ButtonPrimary.Render("Sign Up")
	if v.busy {
		button = s.Button.Render("Creating account...")
	}
	parts = append(parts, "", button,
		renderHelpLine(s, "↵", "next / sign up", "ctrl+s", "sign up", "ctrl+r", "back to login", "ctrl+c", "quit"))

	return styles.CenterView(lipgloss.JoinVertical(lipgloss.Left, parts...), v.width, v.height)
}
