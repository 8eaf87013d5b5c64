package views

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskflow/internal/apperr"
	"github.com/tgienger/taskflow/internal/form"
	"github.com/tgienger/taskflow/internal/session"
	"github.com/tgienger/taskflow/internal/ui/keys"
	"github.com/tgienger/taskflow/internal/ui/styles"
)

const (
	loginUsername = iota
	loginPassword
	loginFieldCount
)

// LoginView is the sign in screen
type LoginView struct {
	ctx    context.Context
	store  *session.Store
	styles *styles.Styles
	keys   keys.KeyMap

	width  int
	height int

	inputs []textinput.Model
	focus  int
	// busy disables submit while a sign in is outstanding
	busy     bool
	localErr string
}

// NewLoginView creates the login screen
func NewLoginView(ctx context.Context, store *session.Store) *LoginView {
	inputs := make([]textinput.Model, loginFieldCount)
	inputs[loginUsername] = newInput("Username", 64)
	inputs[loginPassword] = newPasswordInput("Password")

	return &LoginView{
		ctx:    ctx,
		store:  store,
		styles: styles.NewStyles(),
		keys:   keys.DefaultKeyMap(),
		inputs: inputs,
	}
}

type signInDoneMsg struct {
	err error
}

// Init focuses the first field
func (v *LoginView) Init() tea.Cmd {
	return tea.Batch(focusInput(v.inputs, v.focus), textinput.Blink)
}

// Update handles messages
func (v *LoginView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case signInDoneMsg:
		v.busy = false
		return v, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, v.keys.SwitchForm):
			v.store.ClearError()
			return v, func() tea.Msg { return GoToRegister{} }

		case key.Matches(msg, v.keys.Tab), key.Matches(msg, v.keys.Down):
			v.focus = (v.focus + 1) % loginFieldCount
			return v, focusInput(v.inputs, v.focus)

		case key.Matches(msg, v.keys.ShiftTab), key.Matches(msg, v.keys.Up):
			v.focus = (v.focus + loginFieldCount - 1) % loginFieldCount
			return v, focusInput(v.inputs, v.focus)

		case key.Matches(msg, v.keys.Enter), key.Matches(msg, v.keys.Submit):
			if v.focus == loginUsername && key.Matches(msg, v.keys.Enter) {
				v.focus = loginPassword
				return v, focusInput(v.inputs, v.focus)
			}
			return v, v.submit()
		}

		var cmd tea.Cmd
		v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
		v.localErr = ""
		return v, cmd
	}

	return v, nil
}

func (v *LoginView) submit() tea.Cmd {
	if v.busy {
		return nil
	}
	username := v.inputs[loginUsername].Value()
	password := v.inputs[loginPassword].Value()
	if err := form.ValidateLogin(username, password); err != nil {
		v.localErr = apperr.MessageOf(err, form.MsgFillAllFields)
		return nil
	}

	v.busy = true
	v.localErr = ""
	ctx, store := v.ctx, v.store
	return func() tea.Msg {
		return signInDoneMsg{err: store.SignIn(ctx, username, password)}
	}
}

// View renders the screen
func (v *LoginView) View() string {
	s := v.styles
	width := clamp(styles.ContentWidth(v.width)-8, 20, 40)

	errMsg := v.localErr
	if errMsg == "" {
		errMsg = v.store.State().ErrorMessage
	}

	button := s.ButtonPrimary.Render("Login")
	if v.busy {
		button = s.Button.Render("Signing in...")
	}

	parts := []string{
		s.Title.Render("Welcome Back"),
		s.TitleMuted.Render("Sign in to continue"),
		"",
		renderField(s, "Username", v.inputs[loginUsername], v.focus == loginUsername, "", width),
		renderField(s, "Password", v.inputs[loginPassword], v.focus == loginPassword, "", width),
	}
	if errMsg != "" {
		parts = append(parts, s.Error.Render(errMsg))
	}
	parts = append(parts, "", button,
		renderHelpLine(s, "↵", "sign in", "tab", "next", "ctrl+r", "create an account", "ctrl+c", "quit"))

	return styles.CenterView(lipgloss.JoinVertical(lipgloss.Left, parts...), v.width, v.height)
}
