package ui

import (
	"context"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskflow/internal/form"
	"github.com/tgienger/taskflow/internal/gesture"
	"github.com/tgienger/taskflow/internal/session"
	"github.com/tgienger/taskflow/internal/tasks"
	"github.com/tgienger/taskflow/internal/ui/keys"
	"github.com/tgienger/taskflow/internal/ui/styles"
	"github.com/tgienger/taskflow/internal/ui/views"
)

// Screen is the top level screen on display
type Screen int

const (
	ScreenLoading Screen = iota
	ScreenLogin
	ScreenRegister
	ScreenMain
)

// Tab names of the main screen
const (
	TabTasks   = gesture.RefreshTab
	TabAddTask = "Add Task"
	TabProfile = "Profile"
)

var tabOrder = []string{TabTasks, TabAddTask, TabProfile}

// Deps are the collaborators the app drives
type Deps struct {
	Store        *session.Store
	Tasks        tasks.Backend
	Stats        views.StatsSource
	Snapshots    tasks.SnapshotStore
	FetchTimeout time.Duration
	// Clock drives the registration debounce; nil means real time
	Clock form.Clock
	// Now is the tap clock; nil means time.Now
	Now func() time.Time
}

type App struct {
	ctx    context.Context
	deps   Deps
	styles *styles.Styles
	keys   keys.KeyMap
	send   views.Sender

	screen Screen
	width  int
	height int

	login    *views.LoginView
	register *views.RegisterView

	// main screen, rebuilt on every sign in
	router     *gesture.Router
	activeTab  string
	controller *tasks.Controller
	taskList   *views.TaskListView
	addTask    *views.AddTaskView
	profile    *views.ProfileView
	// pending collects commands queued by router callbacks during Update
	pending []tea.Cmd

	unsubscribe func()
}

// sessionChangedMsg carries no state; the handler reads the store so a
// late message cannot apply an older state
type sessionChangedMsg struct{}

type restoredMsg struct{}

// NewApp creates the application. ctx bounds every request it makes.
func NewApp(ctx context.Context, deps Deps) *App {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	a := &App{
		ctx:    ctx,
		deps:   deps,
		styles: styles.NewStyles(),
		keys:   keys.DefaultKeyMap(),
		screen: ScreenLoading,
	}
	a.unsubscribe = deps.Store.Subscribe(func(session.State) {
		// dispatch may run inside Update (ClearError), where a blocking Send would deadlock
		go a.sendMsg(sessionChangedMsg{})
	})
	return a
}

// SetSender wires the program's Send; call it before Run
func (a *App) SetSender(send views.Sender) {
	a.send = send
}

func (a *App) sendMsg(msg tea.Msg) {
	if a.send != nil {
		a.send(msg)
	}
}

// Close releases timers and the store subscription
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.register != nil {
		a.register.Close()
	}
}

// Init restores a stored session before choosing the first screen
func (a *App) Init() tea.Cmd {
	ctx, store := a.ctx, a.deps.Store
	return func() tea.Msg {
		store.TryRestoreSession(ctx)
		return restoredMsg{}
	}
}

// Focused reports whether tab is showing
func (a *App) Focused(tab string) bool {
	return a.screen == ScreenMain && a.activeTab == tab
}

// Navigate shows tab
func (a *App) Navigate(tab string) {
	a.activeTab = tab
	switch tab {
	case TabTasks:
		a.pending = append(a.pending, func() tea.Msg { return views.SnapshotWarmed{} })
	case TabAddTask:
		a.pending = append(a.pending, a.addTask.Init())
	case TabProfile:
		a.pending = append(a.pending, a.profile.Init())
	}
}

func (a *App) drainPending() tea.Cmd {
	cmds := a.pending
	a.pending = nil
	return tea.Batch(cmds...)
}

func (a *App) resize() tea.Cmd {
	w, h := a.width, a.height
	return func() tea.Msg { return tea.WindowSizeMsg{Width: w, Height: h} }
}

// applySession moves between the auth screens and the main screen
func (a *App) applySession(s session.State) tea.Cmd {
	switch {
	case s.LoggedIn() && a.screen != ScreenMain:
		return a.enterMain(s)
	case !s.LoggedIn() && a.screen == ScreenMain:
		return a.leaveMain()
	case !s.LoggedIn() && a.screen == ScreenLoading:
		return a.showLogin()
	}
	return nil
}

func (a *App) showLogin() tea.Cmd {
	a.closeRegister()
	a.screen = ScreenLogin
	a.login = views.NewLoginView(a.ctx, a.deps.Store)
	return tea.Batch(a.login.Init(), a.resize())
}

func (a *App) showRegister() tea.Cmd {
	a.closeRegister()
	a.screen = ScreenRegister
	a.register = views.NewRegisterView(a.ctx, a.deps.Store, a.deps.Clock, a.send)
	return tea.Batch(a.register.Init(), a.resize())
}

func (a *App) closeRegister() {
	if a.register != nil {
		a.register.Close()
		a.register = nil
	}
}

func (a *App) enterMain(s session.State) tea.Cmd {
	a.closeRegister()
	a.login = nil
	a.screen = ScreenMain
	log.Printf("[ui] signed in as %s", s.User.Username)

	a.controller = tasks.NewController(a.deps.Tasks, tasks.Config{
		FetchTimeout: a.deps.FetchTimeout,
		Snapshots:    a.deps.Snapshots,
		UserID:       s.User.ID,
	})
	a.taskList = views.NewTaskListView(a.ctx, a.controller, s.User.ID)
	a.addTask = views.NewAddTaskView(a.ctx, a.controller)
	a.profile = views.NewProfileView(a.ctx, a.deps.Store, a.deps.Stats)

	a.activeTab = TabTasks
	a.router = gesture.NewRouter(a)
	list := a.taskList
	a.router.SetRefresher(TabTasks, func() {
		a.pending = append(a.pending, list.Refresh())
	})

	ctx, c := a.ctx, a.controller
	warm := func() tea.Msg {
		if err := c.Warm(ctx); err != nil {
			log.Printf("[ui] warning: %v", err)
		}
		return views.SnapshotWarmed{}
	}
	return tea.Batch(warm, a.taskList.Init(), a.resize())
}

func (a *App) leaveMain() tea.Cmd {
	log.Printf("[ui] signed out")
	c := a.controller
	a.controller, a.taskList, a.addTask, a.profile, a.router = nil, nil, nil, nil, nil
	a.pending = nil

	ctx := a.ctx
	reset := func() tea.Msg {
		if err := c.Reset(ctx); err != nil {
			log.Printf("[ui] warning: failed to drop task snapshot: %v", err)
		}
		return nil
	}
	return tea.Batch(reset, a.showLogin())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, a.forward(tea.WindowSizeMsg{Width: msg.Width, Height: max(msg.Height-2, 0)})

	case restoredMsg, sessionChangedMsg:
		return a, a.applySession(a.deps.Store.State())

	case views.GoToRegister:
		return a, a.showRegister()

	case views.GoToLogin:
		return a, a.showLogin()

	case views.TaskCreated:
		if a.screen == ScreenMain {
			a.activeTab = TabTasks
			_, cmd := a.taskList.Update(msg)
			return a, cmd
		}
		return a, nil

	case tea.KeyMsg:
		if key.Matches(msg, a.keys.Quit) {
			return a, tea.Quit
		}
		if a.screen == ScreenMain {
			for i, b := range []key.Binding{a.keys.TasksTab, a.keys.AddTaskTab, a.keys.ProfileTab} {
				if key.Matches(msg, b) {
					a.router.Tap(tabOrder[i], a.deps.Now())
					return a, a.drainPending()
				}
			}
		}
		return a, a.updateActive(msg)
	}

	return a, a.forward(msg)
}

// updateActive sends a key to the view on display
func (a *App) updateActive(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.screen {
	case ScreenLogin:
		_, cmd = a.login.Update(msg)
	case ScreenRegister:
		_, cmd = a.register.Update(msg)
	case ScreenMain:
		switch a.activeTab {
		case TabTasks:
			_, cmd = a.taskList.Update(msg)
		case TabAddTask:
			_, cmd = a.addTask.Update(msg)
		case TabProfile:
			_, cmd = a.profile.Update(msg)
		}
	}
	return cmd
}

// forward delivers a non-key message to every live view of the current screen
func (a *App) forward(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	update := func(m tea.Model) {
		_, cmd := m.Update(msg)
		cmds = append(cmds, cmd)
	}
	switch a.screen {
	case ScreenLogin:
		update(a.login)
	case ScreenRegister:
		update(a.register)
	case ScreenMain:
		update(a.taskList)
		update(a.addTask)
		update(a.profile)
	}
	return tea.Batch(cmds...)
}

func (a *App) View() string {
	switch a.screen {
	case ScreenLogin:
		return a.login.View()
	case ScreenRegister:
		return a.register.View()
	case ScreenMain:
		return a.renderMain()
	}
	return a.styles.TitleMuted.Render("Loading...")
}

func (a *App) renderMain() string {
	var body string
	switch a.activeTab {
	case TabTasks:
		body = a.taskList.View()
	case TabAddTask:
		body = a.addTask.View()
	case TabProfile:
		body = a.profile.View()
	}

	content := lipgloss.JoinVertical(lipgloss.Left, a.renderTabs(), "", body)
	return styles.CenterView(content, a.width, a.height)
}

func (a *App) renderTabs() string {
	var tabs []string
	for i, name := range tabOrder {
		style := a.styles.Tab
		if name == a.activeTab {
			style = a.styles.TabActive
		}
		tabs = append(tabs, style.Render("F"+string(rune('1'+i))+" "+name))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}
