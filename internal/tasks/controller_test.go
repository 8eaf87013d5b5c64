package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgienger/taskflow/internal/api"
	"github.com/tgienger/taskflow/internal/api/apitest"
	"github.com/tgienger/taskflow/internal/apperr"
	"github.com/tgienger/taskflow/internal/db"
	"github.com/tgienger/taskflow/internal/models"
)

type fakeBackend struct {
	mu      sync.Mutex
	tasks   []models.Task
	listErr error
	lists   atomic.Int64
	calls   []string
	// gate, when set, holds ListTasks until it is closed
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeBackend) ListTasks(ctx context.Context) ([]models.Task, error) {
	f.lists.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Task(nil), f.tasks...), nil
}

func (f *fakeBackend) CreateTask(_ context.Context, in models.TaskInput) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	t := models.Task{ID: "new", Title: in.Title, Description: in.Description, DueDate: in.DueDate, Status: in.Status}
	f.tasks = append(f.tasks, t)
	return &t, nil
}

func (f *fakeBackend) UpdateTask(_ context.Context, id string, in models.TaskInput) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update")
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Title, f.tasks[i].Description, f.tasks[i].DueDate = in.Title, in.Description, in.DueDate
			t := f.tasks[i]
			return &t, nil
		}
	}
	return nil, &apperr.Error{Kind: apperr.KindNetwork, Status: 404, Message: "Task not found"}
}

func (f *fakeBackend) SetTaskStatus(_ context.Context, id string, status models.Status) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "status")
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Status = status
			t := f.tasks[i]
			return &t, nil
		}
	}
	return nil, &apperr.Error{Kind: apperr.KindNetwork, Status: 404, Message: "Task not found"}
}

func (f *fakeBackend) DeleteTask(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete:"+id)
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return nil
}

func mustDate(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func seedTasks(t *testing.T) []models.Task {
	return []models.Task{
		{ID: "t1", Title: "Write", Description: "draft", DueDate: mustDate(t, "2025-01-10"), Status: models.StatusPending, OwnerID: "u1"},
		{ID: "t2", Title: "Review", Description: "notes", DueDate: mustDate(t, "2025-01-12"), Status: models.StatusInProgress, OwnerID: "u2"},
	}
}

func TestListReplacesCache(t *testing.T) {
	backend := &fakeBackend{tasks: seedTasks(t)}
	c := NewController(backend, Config{})

	got, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, seedTasks(t), got)

	snap := c.Snapshot()
	assert.Equal(t, seedTasks(t), snap.Tasks)
	assert.False(t, snap.FetchedAt.IsZero())
	assert.NoError(t, snap.Err)
}

func TestListFailureKeepsCache(t *testing.T) {
	backend := &fakeBackend{tasks: seedTasks(t)}
	c := NewController(backend, Config{})
	_, err := c.List(context.Background())
	require.NoError(t, err)

	backend.listErr = apperr.Network(errors.New("timeout"))
	_, err = c.List(context.Background())
	require.Error(t, err)

	snap := c.Snapshot()
	assert.Equal(t, seedTasks(t), snap.Tasks, "cached collection survives a failed refresh")
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(snap.Err))

	backend.listErr = nil
	_, err = c.List(context.Background())
	require.NoError(t, err)
	assert.NoError(t, c.Snapshot().Err)
}

func TestConcurrentListIsCoalesced(t *testing.T) {
	backend := &fakeBackend{
		tasks:   seedTasks(t),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 4),
	}
	c := NewController(backend, Config{})

	results := make(chan error, 2)
	go func() {
		_, err := c.List(context.Background())
		results <- err
	}()
	<-backend.entered

	go func() {
		_, err := c.List(context.Background())
		results <- err
	}()
	// give the second caller time to join the flight before releasing it
	time.Sleep(50 * time.Millisecond)
	close(backend.gate)

	require.NoError(t, <-results)
	require.NoError(t, <-results)
	assert.EqualValues(t, 1, backend.lists.Load())
}

func TestListCallerCanStopWaiting(t *testing.T) {
	backend := &fakeBackend{tasks: seedTasks(t), gate: make(chan struct{})}
	c := NewController(backend, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(backend.gate)
	assert.Eventually(t, func() bool { return len(c.Snapshot().Tasks) == 2 }, time.Second, 10*time.Millisecond,
		"the shared fetch still lands in the cache")
}

func TestCreateValidatesBeforeNetwork(t *testing.T) {
	cases := []struct {
		draft Draft
		field string
	}{
		{Draft{Title: "  ", Description: "d", DueDate: "2025-01-01"}, "title"},
		{Draft{Title: "t", Description: "", DueDate: "2025-01-01"}, "description"},
		{Draft{Title: "t", Description: "d", DueDate: " "}, "dueDate"},
		{Draft{Title: "t", Description: "d", DueDate: "tomorrow"}, "dueDate"},
	}
	for _, tc := range cases {
		backend := &fakeBackend{}
		c := NewController(backend, Config{})

		_, err := c.Create(context.Background(), tc.draft)
		var e *apperr.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, apperr.KindValidation, e.Kind)
		assert.Equal(t, tc.field, e.Field)
		assert.Empty(t, backend.calls)
		assert.Zero(t, backend.lists.Load())
	}
}

func TestCreateDefaultsToPendingAndRefreshes(t *testing.T) {
	backend := &fakeBackend{}
	c := NewController(backend, Config{})

	task, err := c.Create(context.Background(), Draft{Title: " Plan ", Description: " sprint ", DueDate: "2025-02-01"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, task.Status)
	assert.Equal(t, "Plan", task.Title)
	assert.Equal(t, "sprint", task.Description)

	assert.EqualValues(t, 1, backend.lists.Load(), "mutation triggers a re-fetch")
	assert.Len(t, c.Snapshot().Tasks, 1)
}

func TestSetStatusChangesOnlyStatus(t *testing.T) {
	backend := &fakeBackend{tasks: seedTasks(t)}
	c := NewController(backend, Config{})
	_, err := c.List(context.Background())
	require.NoError(t, err)
	before := c.Snapshot().Tasks[0]

	_, err = c.SetStatus(context.Background(), "t1", models.StatusCompleted)
	require.NoError(t, err)

	after := c.Snapshot().Tasks[0]
	assert.Equal(t, models.StatusCompleted, after.Status)
	before.Status = after.Status
	assert.Equal(t, before, after)

	_, err = c.SetStatus(context.Background(), "t1", models.Status("archived"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUpdateKeepsStatus(t *testing.T) {
	backend := &fakeBackend{tasks: seedTasks(t)}
	c := NewController(backend, Config{})

	_, err := c.Update(context.Background(), "t2", Draft{Title: "Review v2", Description: "notes", DueDate: "2025-01-20"})
	require.NoError(t, err)

	got := c.Snapshot().Tasks[1]
	assert.Equal(t, "Review v2", got.Title)
	assert.Equal(t, mustDate(t, "2025-01-20"), got.DueDate)
	assert.Equal(t, models.StatusInProgress, got.Status)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	backend := &fakeBackend{tasks: seedTasks(t)}
	c := NewController(backend, Config{})

	err := c.Delete(context.Background(), Confirmation{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, backend.calls)

	require.NoError(t, c.Delete(context.Background(), Confirm("t1")))
	assert.Equal(t, []string{"delete:t1"}, backend.calls)
	require.Len(t, c.Snapshot().Tasks, 1)
	assert.Equal(t, "t2", c.Snapshot().Tasks[0].ID)
}

func TestMutationSucceedsWhenRefreshFails(t *testing.T) {
	backend := &fakeBackend{tasks: seedTasks(t)}
	c := NewController(backend, Config{})
	_, err := c.List(context.Background())
	require.NoError(t, err)

	backend.listErr = apperr.Network(errors.New("offline"))
	_, err = c.SetStatus(context.Background(), "t1", models.StatusCompleted)
	require.NoError(t, err)

	snap := c.Snapshot()
	assert.Error(t, snap.Err)
	assert.Equal(t, models.StatusPending, snap.Tasks[0].Status, "cache is not patched locally")
}

func TestSnapshotsSurviveRestartAndReset(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	defer database.Close()

	backend := &fakeBackend{tasks: seedTasks(t)}
	first := NewController(backend, Config{Snapshots: database, UserID: "u1"})
	_, err = first.List(ctx)
	require.NoError(t, err)

	cold := NewController(backend, Config{Snapshots: database, UserID: "u1"})
	require.NoError(t, cold.Warm(ctx))
	assert.Equal(t, seedTasks(t), cold.Snapshot().Tasks)

	other := NewController(backend, Config{Snapshots: database, UserID: "u2"})
	require.NoError(t, other.Warm(ctx))
	assert.Empty(t, other.Snapshot().Tasks)

	require.NoError(t, cold.Reset(ctx))
	assert.Empty(t, cold.Snapshot().Tasks)
	again := NewController(backend, Config{Snapshots: database, UserID: "u1"})
	require.NoError(t, again.Warm(ctx))
	assert.Empty(t, again.Snapshot().Tasks)
}

func TestAgainstService(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer(t)
	_, token := srv.SeedUser("alice", "alice@example.com", "Abcdef1!")
	client := api.New(srv.URL, 5*time.Second).WithTokenSource(staticToken(token))
	c := NewController(client, Config{})

	created, err := c.Create(ctx, Draft{Title: "Ship", Description: "v1", DueDate: "2025-03-01"})
	require.NoError(t, err)
	require.Len(t, c.Snapshot().Tasks, 1)

	release := make(chan struct{})
	srv.HoldList(func() { <-release })

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.List(ctx)
			assert.NoError(t, err)
		}()
	}
	assert.Eventually(t, func() bool { return srv.ListCalls() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.EqualValues(t, 2, srv.ListCalls(), "one post-create refresh plus one coalesced fetch")

	srv.HoldList(nil)
	_, err = c.SetStatus(ctx, created.ID, models.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, c.Snapshot().Tasks[0].Status)

	srv.FailList.Store(true)
	_, err = c.List(ctx)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.Len(t, c.Snapshot().Tasks, 1)
	assert.Error(t, c.Snapshot().Err)
}

type staticToken string

func (s staticToken) Token() string { return string(s) }
