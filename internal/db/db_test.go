package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgienger/taskflow/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	value, err := database.Get(ctx, "token")
	require.NoError(t, err)
	assert.Empty(t, value, "missing key should read as empty")

	require.NoError(t, database.Set(ctx, map[string]string{"token": "abc", "user": `{"_id":"u1"}`}))
	require.NoError(t, database.Set(ctx, map[string]string{"token": "def"}))

	value, err = database.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "def", value)

	require.NoError(t, database.Delete(ctx, "token", "user"))
	for _, key := range []string{"token", "user"} {
		value, err := database.Get(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, value, key)
	}
}

func TestSetCancelledWritesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	database := openTestDB(t)

	cancel()
	err := database.Set(ctx, map[string]string{"token": "abc", "user": "{}"})
	require.Error(t, err)

	for _, key := range []string{"token", "user"} {
		value, err := database.Get(context.Background(), key)
		require.NoError(t, err)
		assert.Empty(t, value, key)
	}
}

func TestTaskSnapshot(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	_, _, ok, err := database.LoadTasks(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	due, err := models.ParseDate("2025-03-01")
	require.NoError(t, err)
	tasks := []models.Task{{
		ID: "t1", Title: "Write report", Description: "Q1", DueDate: due,
		Status: models.StatusInProgress, OwnerID: "u1",
	}}
	require.NoError(t, database.SaveTasks(ctx, "u1", tasks))

	loaded, fetchedAt, ok, err := database.LoadTasks(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tasks, loaded)
	assert.False(t, fetchedAt.IsZero())

	_, _, ok, err = database.LoadTasks(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, ok, "snapshots are per user")

	require.NoError(t, database.DeleteTasks(ctx))
	_, _, ok, err = database.LoadTasks(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}
