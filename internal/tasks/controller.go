// Package tasks keeps the client's copy of the task collection in step with
// the server. The server is authoritative: mutations are sent as-is and the
// collection is re-fetched afterwards instead of being patched locally.
package tasks

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/tgienger/taskflow/internal/apperr"
	"github.com/tgienger/taskflow/internal/models"
	"golang.org/x/sync/singleflight"
)

// Backend is the subset of the API client the controller needs
type Backend interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, in models.TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, in models.TaskInput) (*models.Task, error)
	SetTaskStatus(ctx context.Context, id string, status models.Status) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// SnapshotStore keeps the last fetched collection across restarts
type SnapshotStore interface {
	SaveTasks(ctx context.Context, userID string, tasks []models.Task) error
	LoadTasks(ctx context.Context, userID string) ([]models.Task, time.Time, bool, error)
	DeleteTasks(ctx context.Context) error
}

// Collection is the cached task list
type Collection struct {
	Tasks     []models.Task
	FetchedAt time.Time
	// Err is the last refresh failure, nil once a refresh succeeds
	Err error
}

// Config tunes a Controller
type Config struct {
	// FetchTimeout bounds a shared fetch, which outlives the callers that wait on it
	FetchTimeout time.Duration
	// Snapshots is optional
	Snapshots SnapshotStore
	// UserID scopes the snapshot
	UserID string
}

const listKey = "tasks"

// Controller fetches and mutates tasks. At most one list request is in
// flight at a time; callers arriving while it runs share its result.
type Controller struct {
	backend Backend
	cfg     Config
	group   singleflight.Group

	mu    sync.Mutex
	cache Collection
	// gen changes on Reset so a fetch started before it cannot repopulate the cache
	gen uint64
}

// NewController creates a controller with an empty cache
func NewController(backend Backend, cfg Config) *Controller {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &Controller{backend: backend, cfg: cfg}
}

// Snapshot returns a copy of the cached collection
func (c *Controller) Snapshot() Collection {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.cache
	out.Tasks = append([]models.Task(nil), c.cache.Tasks...)
	return out
}

// Warm fills an empty cache from the snapshot store. It never overwrites a fetched list.
func (c *Controller) Warm(ctx context.Context) error {
	if c.cfg.Snapshots == nil || c.cfg.UserID == "" {
		return nil
	}
	tasks, fetchedAt, ok, err := c.cfg.Snapshots.LoadTasks(ctx, c.cfg.UserID)
	if err != nil {
		return fmt.Errorf("load task snapshot: %w", err)
	}
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache.FetchedAt.IsZero() {
		c.cache.Tasks = tasks
		c.cache.FetchedAt = fetchedAt
	}
	return nil
}

// List fetches the whole collection and replaces the cache. On failure the
// cache is left as it was. The caller stops waiting when ctx ends; the shared
// fetch carries on and still updates the cache.
func (c *Controller) List(ctx context.Context) ([]models.Task, error) {
	ch := c.group.DoChan(listKey, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
		defer cancel()
		return c.fetch(fetchCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		tasks := res.Val.([]models.Task)
		return append([]models.Task(nil), tasks...), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Controller) fetch(ctx context.Context) ([]models.Task, error) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	tasks, err := c.backend.ListTasks(ctx)
	if err != nil {
		log.Printf("[tasks] list failed, keeping cached collection: %v", err)
		c.mu.Lock()
		if c.gen == gen {
			c.cache.Err = err
		}
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	current := c.gen == gen
	if current {
		c.cache = Collection{Tasks: tasks, FetchedAt: time.Now()}
	}
	c.mu.Unlock()
	if !current {
		return tasks, nil
	}
	log.Printf("[tasks] fetched %d tasks", len(tasks))

	if c.cfg.Snapshots != nil && c.cfg.UserID != "" {
		if err := c.cfg.Snapshots.SaveTasks(ctx, c.cfg.UserID, tasks); err != nil {
			log.Printf("[tasks] warning: failed to save snapshot: %v", err)
		}
	}
	return tasks, nil
}

// Draft is the user's input for a task, before validation
type Draft struct {
	Title       string
	Description string
	DueDate     string
}

// validate trims every field and requires all three; the due date must parse
func (d Draft) validate() (models.TaskInput, error) {
	title := strings.TrimSpace(d.Title)
	desc := strings.TrimSpace(d.Description)
	due := strings.TrimSpace(d.DueDate)

	switch {
	case title == "":
		return models.TaskInput{}, apperr.Validation("title", "Title is required")
	case desc == "":
		return models.TaskInput{}, apperr.Validation("description", "Description is required")
	case due == "":
		return models.TaskInput{}, apperr.Validation("dueDate", "Due date is required")
	}

	date, err := models.ParseDate(due)
	if err != nil {
		return models.TaskInput{}, apperr.Validation("dueDate", "Due date must be YYYY-MM-DD")
	}
	return models.TaskInput{Title: title, Description: desc, DueDate: date}, nil
}

// Create validates the draft and creates a pending task
func (c *Controller) Create(ctx context.Context, d Draft) (*models.Task, error) {
	in, err := d.validate()
	if err != nil {
		return nil, err
	}
	in.Status = models.StatusPending

	task, err := c.backend.CreateTask(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	c.refreshAfter(ctx, "create")
	return task, nil
}

// Update replaces title, description and due date; status is untouched
func (c *Controller) Update(ctx context.Context, id string, d Draft) (*models.Task, error) {
	in, err := d.validate()
	if err != nil {
		return nil, err
	}

	task, err := c.backend.UpdateTask(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	c.refreshAfter(ctx, "update")
	return task, nil
}

// SetStatus moves a task to any status
func (c *Controller) SetStatus(ctx context.Context, id string, status models.Status) (*models.Task, error) {
	if _, err := models.ParseStatus(string(status)); err != nil {
		return nil, apperr.Validation("status", err.Error())
	}

	task, err := c.backend.SetTaskStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("set status of task %s: %w", id, err)
	}
	c.refreshAfter(ctx, "set status")
	return task, nil
}

// Confirmation is the caller's proof that the user agreed to a delete
type Confirmation struct {
	taskID string
}

// Confirm records that the user confirmed deleting taskID
func Confirm(taskID string) Confirmation {
	return Confirmation{taskID: taskID}
}

// Delete removes the confirmed task
func (c *Controller) Delete(ctx context.Context, confirmed Confirmation) error {
	if confirmed.taskID == "" {
		return apperr.Validation("id", "delete was not confirmed")
	}
	if err := c.backend.DeleteTask(ctx, confirmed.taskID); err != nil {
		return fmt.Errorf("delete task %s: %w", confirmed.taskID, err)
	}
	c.refreshAfter(ctx, "delete")
	return nil
}

// refreshAfter re-fetches after a successful mutation. A failure is kept in
// the snapshot; the mutation itself already succeeded.
func (c *Controller) refreshAfter(ctx context.Context, op string) {
	if _, err := c.List(ctx); err != nil {
		log.Printf("[tasks] refresh after %s failed: %v", op, err)
	}
}

// Reset drops the cache and any stored snapshot; used when the user signs out
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.cache = Collection{}
	c.gen++
	c.mu.Unlock()
	c.group.Forget(listKey)

	if c.cfg.Snapshots != nil {
		return c.cfg.Snapshots.DeleteTasks(ctx)
	}
	return nil
}
