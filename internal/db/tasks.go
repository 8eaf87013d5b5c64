package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/tgienger/taskflow/internal/models"
)

// SaveTasks stores the collection last returned by the server for userID
func (db *DB) SaveTasks(ctx context.Context, userID string, tasks []models.Task) error {
	if tasks == nil {
		tasks = []models.Task{}
	}
	payload, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO task_snapshot (user_id, payload, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at
	`, userID, string(payload), time.Now().UTC())
	return err
}

// LoadTasks returns the stored collection for userID. ok is false when nothing was stored.
func (db *DB) LoadTasks(ctx context.Context, userID string) (tasks []models.Task, fetchedAt time.Time, ok bool, err error) {
	var payload string
	err = db.QueryRowContext(ctx, `
		SELECT payload, fetched_at FROM task_snapshot WHERE user_id = ?
	`, userID).Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}

	if err := json.Unmarshal([]byte(payload), &tasks); err != nil {
		return nil, time.Time{}, false, err
	}
	return tasks, fetchedAt, true, nil
}

// DeleteTasks drops every stored collection
func (db *DB) DeleteTasks(ctx context.Context) error {
	_, err := db.ExecContext(ctx, "DELETE FROM task_snapshot")
	return err
}
