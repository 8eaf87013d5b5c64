// Package api is the REST client for the task service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tgienger/taskflow/internal/apperr"
	"github.com/tgienger/taskflow/internal/models"
)

// DefaultBaseURL is used when no server is configured
const DefaultBaseURL = "http://localhost:5000/api"

// TokenSource yields the current bearer token, "" when signed out
type TokenSource interface {
	Token() string
}

// Client performs the HTTP calls. Timeouts are the client's concern,
// callers only pass a context.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// New creates a client for baseURL with a per-request timeout
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// WithTokenSource returns a copy of the client that authenticates with ts
func (c *Client) WithTokenSource(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// errorBody is the server's error envelope
type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

type endpoint struct {
	method string
	path   string
	auth   bool
}

func (c *Client) do(ctx context.Context, ep endpoint, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", ep.method, ep.path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, ep.method, c.baseURL+ep.path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", ep.method, ep.path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ep.auth {
		token := ""
		if c.tokens != nil {
			token = c.tokens.Token()
		}
		if token == "" {
			return &apperr.Error{Kind: apperr.KindAuth, Message: "not signed in"}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("[api] %s %s failed (request %s): %v", ep.method, ep.path, requestID, err)
		return apperr.Network(err)
	}
	defer resp.Body.Close()
	log.Printf("[api] %s %s -> %d (request %s)", ep.method, ep.path, resp.StatusCode, requestID)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Network(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw, ep.auth)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &apperr.Error{Kind: apperr.KindNetwork, Status: resp.StatusCode, Message: "unexpected response from server", Err: err}
	}
	return nil
}

// decodeError maps a non-2xx response into the error taxonomy
func decodeError(status int, raw []byte, authenticated bool) error {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}

	e := &apperr.Error{Status: status, Code: eb.Code, Message: msg}
	switch {
	case status == http.StatusConflict:
		e.Kind = apperr.KindConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = apperr.KindValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = apperr.KindAuth
	case status >= 500:
		e.Kind = apperr.KindNetwork
	case !authenticated:
		e.Kind = apperr.KindAuth
	default:
		e.Kind = apperr.KindNetwork
	}
	if e.Message == "" {
		e.Err = errors.New(http.StatusText(status))
	}
	return e
}

// Register creates an account
func (c *Client) Register(ctx context.Context, username, email, password string) (*models.AuthResult, error) {
	in := map[string]string{"username": username, "email": email, "password": password}
	var out models.AuthResult
	if err := c.do(ctx, endpoint{http.MethodPost, "/users/register", false}, in, &out); err != nil {
		return nil, err
	}
	return checkAuth(&out)
}

// Login exchanges credentials for a token
func (c *Client) Login(ctx context.Context, username, password string) (*models.AuthResult, error) {
	in := map[string]string{"username": username, "password": password}
	var out models.AuthResult
	if err := c.do(ctx, endpoint{http.MethodPost, "/users/login", false}, in, &out); err != nil {
		return nil, err
	}
	return checkAuth(&out)
}

func checkAuth(res *models.AuthResult) (*models.AuthResult, error) {
	if res.Token == "" || res.User.ID == "" {
		return nil, &apperr.Error{Kind: apperr.KindAuth, Message: "server returned an incomplete session"}
	}
	return res, nil
}

// UserStats loads the profile statistics of userID
func (c *Client) UserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	var out models.UserStats
	path := "/users/" + url.PathEscape(userID) + "/stats"
	if err := c.do(ctx, endpoint{http.MethodGet, path, true}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks returns the full collection in server order
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var out []models.Task
	if err := c.do(ctx, endpoint{http.MethodGet, "/tasks", true}, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTask creates a task; the server assigns the id
func (c *Client) CreateTask(ctx context.Context, in models.TaskInput) (*models.Task, error) {
	var out models.Task
	if err := c.do(ctx, endpoint{http.MethodPost, "/tasks", true}, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTask replaces title, description and due date
func (c *Client) UpdateTask(ctx context.Context, id string, in models.TaskInput) (*models.Task, error) {
	in.Status = ""
	var out models.Task
	if err := c.do(ctx, endpoint{http.MethodPut, taskPath(id), true}, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetTaskStatus changes only the status of a task
func (c *Client) SetTaskStatus(ctx context.Context, id string, status models.Status) (*models.Task, error) {
	in := map[string]models.Status{"status": status}
	var out models.Task
	if err := c.do(ctx, endpoint{http.MethodPut, taskPath(id) + "/status", true}, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTask removes a task
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, endpoint{http.MethodDelete, taskPath(id), true}, nil, nil)
}

func taskPath(id string) string {
	return "/tasks/" + url.PathEscape(id)
}
