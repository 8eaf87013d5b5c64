package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// User is the account record returned by the auth endpoints
type User struct {
	ID           string `json:"_id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	ProfileImage string `json:"profileImage,omitempty"`
	Bio          string `json:"bio,omitempty"`
}

// AuthResult is the body of a successful register or login call
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// UserStats is shown on the profile screen
type UserStats struct {
	TotalPosts int `json:"totalPosts"`
	Followers  int `json:"followers"`
	Following  int `json:"following"`
}

// Status is the workflow state of a task
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists every valid status in display order
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// ParseStatus converts a raw string into a Status, rejecting unknown values
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Label returns the human readable form, e.g. "In Progress"
func (s Status) Label() string {
	switch s {
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	default:
		return "Pending"
	}
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Date is a calendar date without time of day or zone
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp, keeping only the date part
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, s)
		if tsErr != nil {
			return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
		}
		t = ts.UTC()
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Task represents a single task as returned by the server
type Task struct {
	ID          string
	Title       string
	Description string
	DueDate     Date
	Status      Status
	OwnerID     string
}

// OwnedBy reports whether edit and delete controls should be offered to userID.
// The server enforces ownership on its own.
func (t Task) OwnedBy(userID string) bool {
	return userID != "" && t.OwnerID == userID
}

type taskWire struct {
	ID          string          `json:"_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	DueDate     Date            `json:"dueDate"`
	Status      Status          `json:"status"`
	User        json.RawMessage `json:"user,omitempty"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	owner, err := json.Marshal(t.OwnerID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taskWire{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Status:      t.Status,
		User:        owner,
	})
}

// UnmarshalJSON accepts the owner either as a plain id or as a populated user object
func (t *Task) UnmarshalJSON(data []byte) error {
	var w taskWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Status == "" {
		w.Status = StatusPending
	}
	*t = Task{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		DueDate:     w.DueDate,
		Status:      w.Status,
	}

	user := bytes.TrimSpace(w.User)
	if len(user) == 0 || bytes.Equal(user, []byte("null")) {
		return nil
	}
	if user[0] == '"' {
		return json.Unmarshal(user, &t.OwnerID)
	}
	var owner struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(user, &owner); err != nil {
		return fmt.Errorf("task owner: %w", err)
	}
	t.OwnerID = owner.ID
	return nil
}

// TaskInput is the body of create and update calls
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     Date   `json:"dueDate"`
	Status      Status `json:"status,omitempty"`
}
