package views

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/taskflow/internal/apperr"
	"github.com/tgienger/taskflow/internal/models"
	"github.com/tgienger/taskflow/internal/tasks"
	"github.com/tgienger/taskflow/internal/ui/keys"
	"github.com/tgienger/taskflow/internal/ui/styles"
)

const (
	editTitle = iota
	editDescription
	editDueDate
	editFieldCount
)

// TaskListView shows every task with quick status actions
type TaskListView struct {
	ctx        context.Context
	controller *tasks.Controller
	userID     string
	styles     *styles.Styles
	keys       keys.KeyMap
	spinner    spinner.Model

	width  int
	height int

	list    []models.Task
	cursor  int
	scrollY int

	// loading is true until the first fetch or snapshot arrives
	loading    bool
	refreshing bool
	flash      string
	err        string

	// Edit form
	editing    bool
	editInputs []textinput.Model
	editFocus  int
	editTarget string
	editErr    string

	// Delete confirmation
	confirmingDelete bool
	deleteTarget     models.Task

	showHelpPopup bool
}

// NewTaskListView creates the task list for the signed-in user
func NewTaskListView(ctx context.Context, controller *tasks.Controller, userID string) *TaskListView {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Current.Primary)

	return &TaskListView{
		ctx:        ctx,
		controller: controller,
		userID:     userID,
		styles:     styles.NewStyles(),
		keys:       keys.DefaultKeyMap(),
		spinner:    sp,
		loading:    true,
		editInputs: []textinput.Model{
			newInput("Task Title", 200),
			newInput("Description", 1000),
			newInput("Due Date (YYYY-MM-DD)", 10),
		},
	}
}

type tasksLoadedMsg struct {
	err error
}

type taskMutatedMsg struct {
	done string
	err  error
	// fromEdit routes validation errors to the edit form
	fromEdit bool
}

// SnapshotWarmed is sent once the stored collection was loaded into the controller
type SnapshotWarmed struct{}

// Init starts the first fetch
func (v *TaskListView) Init() tea.Cmd {
	return tea.Batch(v.spinner.Tick, v.Refresh())
}

// Refresh fetches the collection again. Calls made while a fetch is running
// share its result.
func (v *TaskListView) Refresh() tea.Cmd {
	v.refreshing = true
	ctx, c := v.ctx, v.controller
	return func() tea.Msg {
		_, err := c.List(ctx)
		return tasksLoadedMsg{err: err}
	}
}

// sync copies the controller's collection into the view
func (v *TaskListView) sync() {
	snap := v.controller.Snapshot()
	v.list = snap.Tasks
	if !snap.FetchedAt.IsZero() {
		v.loading = false
	}
	if v.cursor >= len(v.list) {
		v.cursor = max(0, len(v.list)-1)
	}
	if v.scrollY > v.cursor {
		v.scrollY = v.cursor
	}
}

// Update handles messages
func (v *TaskListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case SnapshotWarmed:
		v.sync()
		return v, nil

	case TaskCreated:
		v.sync()
		return v, nil

	case tasksLoadedMsg:
		v.refreshing = false
		v.loading = false
		v.sync()
		if msg.err != nil {
			v.err = "Failed to load tasks: " + apperr.MessageOf(msg.err, "network error")
		} else {
			v.err = ""
		}
		return v, nil

	case taskMutatedMsg:
		v.sync()
		if msg.err != nil {
			if msg.fromEdit && apperr.Is(msg.err, apperr.KindValidation) {
				v.editErr = apperr.MessageOf(msg.err, "")
				return v, nil
			}
			v.flash = ""
			v.err = apperr.MessageOf(msg.err, "Request failed")
			return v, nil
		}
		if msg.fromEdit {
			v.editing = false
		}
		v.flash = msg.done
		v.err = ""
		if snapErr := v.controller.Snapshot().Err; snapErr != nil {
			v.err = "Failed to load tasks: " + apperr.MessageOf(snapErr, "network error")
		}
		return v, nil

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}
		if v.editing {
			return v.updateEditing(msg)
		}
		return v.updateNormal(msg)
	}

	return v, nil
}

func (v *TaskListView) selected() (models.Task, bool) {
	if v.cursor < 0 || v.cursor >= len(v.list) {
		return models.Task{}, false
	}
	return v.list[v.cursor], true
}

func (v *TaskListView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(v.list)-1 {
			v.cursor++
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Refresh):
		v.flash = ""
		return v, v.Refresh()

	case key.Matches(msg, v.keys.Pending):
		return v, v.setStatus(models.StatusPending)

	case key.Matches(msg, v.keys.InProgress):
		return v, v.setStatus(models.StatusInProgress)

	case key.Matches(msg, v.keys.Completed):
		return v, v.setStatus(models.StatusCompleted)

	case key.Matches(msg, v.keys.Edit):
		if task, ok := v.selected(); ok && task.OwnedBy(v.userID) {
			return v, v.startEdit(task)
		}
		return v, nil

	case key.Matches(msg, v.keys.Delete):
		if task, ok := v.selected(); ok && task.OwnedBy(v.userID) {
			v.confirmingDelete = true
			v.deleteTarget = task
		}
		return v, nil

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}

	return v, nil
}

func (v *TaskListView) setStatus(status models.Status) tea.Cmd {
	task, ok := v.selected()
	if !ok || task.Status == status {
		return nil
	}
	ctx, c := v.ctx, v.controller
	return func() tea.Msg {
		_, err := c.SetStatus(ctx, task.ID, status)
		return taskMutatedMsg{done: fmt.Sprintf("%q is now %s", task.Title, status.Label()), err: err}
	}
}

func (v *TaskListView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		confirmed := tasks.Confirm(v.deleteTarget.ID)
		ctx, c := v.ctx, v.controller
		return v, func() tea.Msg {
			return taskMutatedMsg{done: "Task deleted successfully", err: c.Delete(ctx, confirmed)}
		}
	case "n", "N", "esc":
		v.confirmingDelete = false
		return v, nil
	}
	return v, nil
}

func (v *TaskListView) startEdit(task models.Task) tea.Cmd {
	v.editing = true
	v.editTarget = task.ID
	v.editErr = ""
	v.editFocus = editTitle
	v.editInputs[editTitle].SetValue(task.Title)
	v.editInputs[editDescription].SetValue(task.Description)
	v.editInputs[editDueDate].SetValue(task.DueDate.String())
	return tea.Batch(focusInput(v.editInputs, v.editFocus), textinput.Blink)
}

func (v *TaskListView) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.editing = false
		return v, nil

	case key.Matches(msg, v.keys.Submit):
		return v, v.saveEdit()

	case key.Matches(msg, v.keys.Tab), key.Matches(msg, v.keys.Down):
		v.editFocus = (v.editFocus + 1) % editFieldCount
		return v, focusInput(v.editInputs, v.editFocus)

	case key.Matches(msg, v.keys.ShiftTab), key.Matches(msg, v.keys.Up):
		v.editFocus = (v.editFocus + editFieldCount - 1) % editFieldCount
		return v, focusInput(v.editInputs, v.editFocus)

	case key.Matches(msg, v.keys.Enter):
		if v.editFocus < editFieldCount-1 {
			v.editFocus++
			return v, focusInput(v.editInputs, v.editFocus)
		}
		return v, v.saveEdit()
	}

	var cmd tea.Cmd
	v.editInputs[v.editFocus], cmd = v.editInputs[v.editFocus].Update(msg)
	return v, cmd
}

func (v *TaskListView) saveEdit() tea.Cmd {
	draft := tasks.Draft{
		Title:       v.editInputs[editTitle].Value(),
		Description: v.editInputs[editDescription].Value(),
		DueDate:     v.editInputs[editDueDate].Value(),
	}
	id := v.editTarget
	ctx, c := v.ctx, v.controller
	return func() tea.Msg {
		_, err := c.Update(ctx, id, draft)
		return taskMutatedMsg{done: "Task updated successfully", err: err, fromEdit: true}
	}
}

// visibleItems is how many cards fit; a card is five lines with its border
func (v *TaskListView) visibleItems() int {
	return max((v.height-8)/5, 1)
}

func (v *TaskListView) ensureVisible() {
	visible := v.visibleItems()
	if v.cursor < v.scrollY {
		v.scrollY = v.cursor
	} else if v.cursor >= v.scrollY+visible {
		v.scrollY = v.cursor - visible + 1
	}
}

// View renders the list
func (v *TaskListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if v.confirmingDelete {
		return v.renderDeleteConfirm()
	}
	if v.editing {
		return v.renderEditForm()
	}

	s := v.styles
	title := s.Title.Render("My Tasks")
	if v.refreshing {
		title += " " + v.spinner.View()
	}

	parts := []string{title}
	if v.err != "" {
		parts = append(parts, s.Error.Render(v.err))
	} else if v.flash != "" {
		parts = append(parts, s.Success.Render(v.flash))
	}
	parts = append(parts, "", v.renderTaskList(), v.renderHelp())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (v *TaskListView) renderTaskList() string {
	s := v.styles
	if v.loading {
		return v.spinner.View() + " " + s.TitleMuted.Render("Loading tasks...")
	}
	if len(v.list) == 0 {
		return s.TitleMuted.Render("No tasks yet")
	}

	var items []string
	end := min(v.scrollY+v.visibleItems(), len(v.list))
	for i := v.scrollY; i < end; i++ {
		items = append(items, v.renderTaskItem(v.list[i], i == v.cursor))
	}
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (v *TaskListView) renderTaskItem(task models.Task, selected bool) string {
	s := v.styles
	width := max(styles.ContentWidth(v.width)-4, 20)

	header := lipgloss.JoinHorizontal(lipgloss.Center, s.Title.Render(task.Title), "  ", s.StatusBadge(task.Status))
	if task.OwnedBy(v.userID) {
		header += "  " + s.Owner.Render("(yours)")
	}

	due := "no due date"
	if !task.DueDate.IsZero() {
		due = "Due: " + task.DueDate.String()
	}

	card := s.Card
	if selected {
		card = s.CardSelected
	}
	return card.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left,
		header,
		task.Description,
		s.TitleMuted.Render(due),
	))
}

func (v *TaskListView) renderEditForm() string {
	s := v.styles
	width := clamp(styles.ContentWidth(v.width)-10, 20, 50)

	parts := []string{s.Title.Render("Edit Task"), ""}
	labels := []string{"Title", "Description", "Due Date"}
	for i, in := range v.editInputs {
		parts = append(parts, renderField(s, labels[i], in, v.editFocus == i, "", width))
	}
	if v.editErr != "" {
		parts = append(parts, s.Error.Render(v.editErr))
	}
	parts = append(parts, "", renderHelpLine(s, "ctrl+s", "update", "tab", "next field", "esc", "cancel"))
	return popup(s, lipgloss.JoinVertical(lipgloss.Left, parts...), v.width, v.height)
}

func (v *TaskListView) renderDeleteConfirm() string {
	s := v.styles
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Delete Task"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("Are you sure you want to delete %q?", v.deleteTarget.Title)),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Delete "),
			"  ",
			s.Button.Render(" N - Cancel "),
		),
	)
	return popup(s, content, v.width, v.height)
}

func (v *TaskListView) renderHelp() string {
	if w := styles.ContentWidth(v.width); w > 0 && w < 60 {
		return renderHelpLine(v.styles, "?", "help")
	}
	return renderHelpLine(v.styles,
		"p/i/c", "status",
		"e", "edit",
		"d", "delete",
		"r", "refresh",
		"F1 F1", "refresh",
		"?", "help",
	)
}

func (v *TaskListView) renderHelpPopup() string {
	s := v.styles
	k := v.keys
	bindings := []key.Binding{k.Up, k.Down, k.Pending, k.InProgress, k.Completed, k.Edit, k.Delete, k.Refresh, k.TasksTab, k.AddTaskTab, k.ProfileTab, k.Quit}

	items := []string{s.Title.Render("Keyboard Shortcuts"), ""}
	for _, b := range bindings {
		h := b.Help()
		items = append(items, s.HelpKey.Width(8).Render(h.Key)+s.HelpDesc.Render(h.Desc))
	}
	items = append(items, "", s.TitleMuted.Render("Edit and delete apply to your own tasks"), s.TitleMuted.Render("Press any key to close"))
	return popup(s, lipgloss.JoinVertical(lipgloss.Left, items...), v.width, v.height)
}
