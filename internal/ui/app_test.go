package ui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgienger/taskflow/internal/api"
	"github.com/tgienger/taskflow/internal/api/apitest"
	"github.com/tgienger/taskflow/internal/db"
	"github.com/tgienger/taskflow/internal/session"
)

type harness struct {
	app   *App
	srv   *apitest.Server
	store *session.Store
	now   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := apitest.NewServer(t)
	database, err := db.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	client := api.New(srv.URL, 5*time.Second)
	store := session.New(database, client)
	authed := client.WithTokenSource(store)

	h := &harness{srv: srv, store: store, now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	h.app = NewApp(context.Background(), Deps{
		Store:     store,
		Tasks:     authed,
		Stats:     authed,
		Snapshots: database,
		Now:       func() time.Time { return h.now },
	})
	t.Cleanup(h.app.Close)
	return h
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	_, cmd := h.app.Update(msg)
	return cmd
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	h.srv.SeedUser("alice", "alice@example.com", "Abcdef1!")
	require.NoError(t, h.store.SignIn(context.Background(), "alice", "Abcdef1!"))
	h.update(sessionChangedMsg{})
	require.Equal(t, ScreenMain, h.app.screen)
}

// run executes cmd and any batch it expands to
func run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if batch, ok := cmd().(tea.BatchMsg); ok {
		for _, c := range batch {
			run(c)
		}
	}
}

func TestStartsOnLoginWithoutStoredSession(t *testing.T) {
	h := newHarness(t)
	msg := h.app.Init()()
	assert.IsType(t, restoredMsg{}, msg)

	h.update(msg)
	assert.Equal(t, ScreenLogin, h.app.screen)
	assert.Contains(t, h.app.View(), "Welcome Back")
}

func TestSignInAndOutSwitchScreens(t *testing.T) {
	h := newHarness(t)
	h.update(h.app.Init()())
	h.signIn(t)
	assert.Equal(t, TabTasks, h.app.activeTab)
	assert.NotNil(t, h.app.controller)

	require.NoError(t, h.store.SignOut(context.Background()))
	h.update(sessionChangedMsg{})
	assert.Equal(t, ScreenLogin, h.app.screen)
	assert.Nil(t, h.app.controller)
}

func TestLoginRegisterNavigation(t *testing.T) {
	h := newHarness(t)
	h.update(h.app.Init()())

	// the login view answers with a command producing GoToRegister
	cmd := h.update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	h.update(cmd())
	assert.Equal(t, ScreenRegister, h.app.screen)
	require.NotNil(t, h.app.register)

	cmd = h.update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	h.update(cmd())
	assert.Equal(t, ScreenLogin, h.app.screen)
	assert.Nil(t, h.app.register, "leaving the form closes it")
}

func TestTabTaps(t *testing.T) {
	h := newHarness(t)
	h.update(h.app.Init()())
	h.signIn(t)
	f1 := tea.KeyMsg{Type: tea.KeyF1}

	h.update(tea.KeyMsg{Type: tea.KeyF3})
	assert.Equal(t, TabProfile, h.app.activeTab)

	h.now = h.now.Add(time.Second)
	h.update(f1)
	assert.Equal(t, TabTasks, h.app.activeTab)

	before := h.srv.ListCalls()
	h.now = h.now.Add(100 * time.Millisecond)
	cmd := h.update(f1)
	require.NotNil(t, cmd, "double tap queues a refresh")
	run(cmd)
	assert.Equal(t, before+1, h.srv.ListCalls())
	assert.Equal(t, TabTasks, h.app.activeTab)

	h.now = h.now.Add(time.Second)
	assert.Nil(t, h.update(f1), "single tap on the focused tab does nothing")
}
