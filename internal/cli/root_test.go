package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgienger/taskflow/internal/db"
	"github.com/tgienger/taskflow/internal/models"
	"github.com/tgienger/taskflow/internal/session"
)

func TestVersionCommand(t *testing.T) {
	cmd := NewRootCommand(BuildInfo{Version: "1.2.3", Commit: "abc", Date: "today"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "taskflow 1.2.3 (commit: abc, built: today)\n", out.String())
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: http://file/api\nrequest_timeout: 3s\n"), 0o644))

	cfg, err := loadConfig(&options{configPath: path, timeout: 7 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "http://file/api", cfg.ServerURL)
	assert.Equal(t, 7*time.Second, cfg.RequestTimeout)

	cfg, err = loadConfig(&options{configPath: path, serverURL: "http://flag/api"})
	require.NoError(t, err)
	assert.Equal(t, "http://flag/api", cfg.ServerURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
}

func TestLogoutClearsStoredSession(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	database, err := db.New(dir)
	require.NoError(t, err)
	require.NoError(t, database.Set(ctx, map[string]string{
		session.TokenKey: "tok",
		session.UserKey:  `{"_id":"u1","username":"alice","email":"a@example.com"}`,
	}))
	require.NoError(t, database.SaveTasks(ctx, "u1", []models.Task{{ID: "t1", Title: "x", Status: models.StatusPending}}))
	require.NoError(t, database.Close())

	cmd := NewRootCommand(BuildInfo{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"logout", "--data-dir", dir, "--config", filepath.Join(dir, "none.yaml")})
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, out.String(), "Signed out.")

	database, err = db.New(dir)
	require.NoError(t, err)
	defer database.Close()
	token, err := database.Get(ctx, session.TokenKey)
	require.NoError(t, err)
	assert.Empty(t, token)
	_, _, ok, err := database.LoadTasks(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}
