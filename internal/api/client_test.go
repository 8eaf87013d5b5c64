package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgienger/taskflow/internal/api"
	"github.com/tgienger/taskflow/internal/api/apitest"
	"github.com/tgienger/taskflow/internal/apperr"
	"github.com/tgienger/taskflow/internal/models"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer(t)
	client := api.New(srv.URL, 5*time.Second)

	res, err := client.Register(ctx, "alice", "alice@example.com", "Abcdef1!")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "alice", res.User.Username)
	assert.NotEmpty(t, res.User.ID)

	res, err = client.Login(ctx, "alice", "Abcdef1!")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = client.Login(ctx, "alice", "wrong")
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	assert.Equal(t, "Invalid username or password", apperr.MessageOf(err, ""))
}

func TestRegisterConflict(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer(t)
	srv.SeedUser("alice", "alice@example.com", "Abcdef1!")
	client := api.New(srv.URL, 5*time.Second)

	_, err := client.Register(ctx, "alice", "other@example.com", "Abcdef1!")
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.KindConflict, e.Kind)
	assert.Equal(t, "username_taken", e.Code)
	assert.Equal(t, http.StatusConflict, e.Status)
}

func TestTaskEndpoints(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer(t)
	user, token := srv.SeedUser("alice", "alice@example.com", "Abcdef1!")
	client := api.New(srv.URL, 5*time.Second).WithTokenSource(staticToken(token))

	due, err := models.ParseDate("2025-06-30")
	require.NoError(t, err)

	created, err := client.CreateTask(ctx, models.TaskInput{Title: "Ship", Description: "v1", DueDate: due, Status: models.StatusPending})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, user.ID, created.OwnerID)
	assert.Equal(t, models.StatusPending, created.Status)

	updated, err := client.UpdateTask(ctx, created.ID, models.TaskInput{Title: "Ship it", Description: "v1.1", DueDate: due})
	require.NoError(t, err)
	assert.Equal(t, "Ship it", updated.Title)
	assert.Equal(t, models.StatusPending, updated.Status)

	moved, err := client.SetTaskStatus(ctx, created.ID, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, moved.Status)

	tasks, err := client.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, due, tasks[0].DueDate)

	stats, err := client.UserStats(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalPosts)

	require.NoError(t, client.DeleteTask(ctx, created.ID))
	tasks, err = client.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestAuthenticatedCallWithoutToken(t *testing.T) {
	srv := apitest.NewServer(t)
	client := api.New(srv.URL, 5*time.Second)

	_, err := client.ListTasks(context.Background())
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	assert.Zero(t, srv.ListCalls(), "no request should be sent without a token")
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   apperr.Kind
	}{
		{http.StatusBadRequest, apperr.KindValidation},
		{http.StatusUnauthorized, apperr.KindAuth},
		{http.StatusConflict, apperr.KindConflict},
		{http.StatusNotFound, apperr.KindNetwork},
		{http.StatusBadGateway, apperr.KindNetwork},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"message":"nope"}`))
			}))
			defer srv.Close()

			client := api.New(srv.URL, time.Second).WithTokenSource(staticToken("t"))
			_, err := client.ListTasks(context.Background())
			assert.Equal(t, tc.want, apperr.KindOf(err))
			assert.Equal(t, "nope", apperr.MessageOf(err, ""))
		})
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := api.New(url, time.Second).Login(context.Background(), "a", "b")
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}
