package views

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskflow/internal/apperr"
	"github.com/tgienger/taskflow/internal/models"
	"github.com/tgienger/taskflow/internal/session"
	"github.com/tgienger/taskflow/internal/ui/keys"
	"github.com/tgienger/taskflow/internal/ui/styles"
)

// StatsSource loads the profile counters
type StatsSource interface {
	UserStats(ctx context.Context, userID string) (*models.UserStats, error)
}

// ProfileView shows the signed-in user and signs out
type ProfileView struct {
	ctx    context.Context
	store  *session.Store
	stats  StatsSource
	styles *styles.Styles
	keys   keys.KeyMap

	width  int
	height int

	counters *models.UserStats
	loading  bool
	err      string

	confirmingSignOut bool
}

// NewProfileView creates the profile screen
func NewProfileView(ctx context.Context, store *session.Store, stats StatsSource) *ProfileView {
	return &ProfileView{
		ctx:    ctx,
		store:  store,
		stats:  stats,
		styles: styles.NewStyles(),
		keys:   keys.DefaultKeyMap(),
	}
}

type statsLoadedMsg struct {
	stats *models.UserStats
	err   error
}

type signOutDoneMsg struct {
	err error
}

// Init loads the counters; the app calls it every time the tab is shown
func (v *ProfileView) Init() tea.Cmd {
	user := v.store.State().User
	if user == nil {
		return nil
	}
	v.loading = true
	ctx, src, id := v.ctx, v.stats, user.ID
	return func() tea.Msg {
		st, err := src.UserStats(ctx, id)
		return statsLoadedMsg{stats: st, err: err}
	}
}

// Update handles messages
func (v *ProfileView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case statsLoadedMsg:
		v.loading = false
		if msg.err != nil {
			v.err = "Failed to load stats: " + apperr.MessageOf(msg.err, "network error")
			return v, nil
		}
		v.err = ""
		v.counters = msg.stats
		return v, nil

	case signOutDoneMsg:
		if msg.err != nil {
			v.err = v.store.State().ErrorMessage
		}
		return v, nil

	case tea.KeyMsg:
		if v.confirmingSignOut {
			switch msg.String() {
			case "y", "Y":
				v.confirmingSignOut = false
				ctx, store := v.ctx, v.store
				return v, func() tea.Msg { return signOutDoneMsg{err: store.SignOut(ctx)} }
			case "n", "N", "esc":
				v.confirmingSignOut = false
			}
			return v, nil
		}

		switch {
		case key.Matches(msg, v.keys.SignOut):
			v.confirmingSignOut = true
		case key.Matches(msg, v.keys.Refresh):
			return v, v.Init()
		}
	}

	return v, nil
}

// View renders the profile
func (v *ProfileView) View() string {
	s := v.styles
	if v.confirmingSignOut {
		return popup(s, lipgloss.JoinVertical(lipgloss.Center,
			s.Title.Render("Sign Out"),
			"",
			s.TitleMuted.Render("Are you sure you want to sign out?"),
			"",
			lipgloss.JoinHorizontal(lipgloss.Center,
				s.ButtonPrimary.Render(" Y - Sign Out "),
				"  ",
				s.Button.Render(" N - Cancel "),
			),
		), v.width, v.height)
	}

	user := v.store.State().User
	if user == nil {
		return s.TitleMuted.Render("Not signed in")
	}

	bio := user.Bio
	if bio == "" {
		bio = "No bio added yet"
	}

	parts := []string{
		s.Title.Render(user.Username),
		s.TitleMuted.Render(user.Email),
		bio,
		"",
		v.renderStats(),
	}
	if v.err != "" {
		parts = append(parts, s.Error.Render(v.err))
	}
	parts = append(parts, "", renderHelpLine(s, "r", "reload stats", "o", "sign out"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (v *ProfileView) renderStats() string {
	s := v.styles
	if v.loading && v.counters == nil {
		return s.TitleMuted.Render("Loading stats...")
	}
	st := models.UserStats{}
	if v.counters != nil {
		st = *v.counters
	}
	card := func(title string, value int) string {
		return s.Card.Width(14).Render(lipgloss.JoinVertical(lipgloss.Center,
			s.Title.Render(fmt.Sprint(value)),
			s.TitleMuted.Render(title),
		))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		card("Posts", st.TotalPosts),
		card("Followers", st.Followers),
		card("Following", st.Following),
	)
}
