// Package apitest runs an in-memory task service speaking the same REST
// contract as the production server. Tests use it in place of the network.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/tgienger/taskflow/internal/models"
	"golang.org/x/crypto/bcrypt"
)

type account struct {
	user models.User
	hash []byte
}

// Server is the fake service. The exported hooks let tests stall or fail calls.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]*account // by username
	tokens   map[string]string   // token -> user id
	tasks    []models.Task

	listCalls  atomic.Int64
	beforeList func()

	// FailList makes GET /tasks answer 500 while set
	FailList atomic.Bool
}

// NewServer starts the fake service; it is closed when the test ends
func NewServer(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
	}

	r := mux.NewRouter()
	r.HandleFunc("/users/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/users/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/stats", s.auth(s.handleStats)).Methods(http.MethodGet)
	r.HandleFunc("/tasks", s.auth(s.handleListTasks)).Methods(http.MethodGet)
	r.HandleFunc("/tasks", s.auth(s.handleCreateTask)).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}", s.auth(s.handleUpdateTask)).Methods(http.MethodPut)
	r.HandleFunc("/tasks/{id}/status", s.auth(s.handleSetStatus)).Methods(http.MethodPut)
	r.HandleFunc("/tasks/{id}", s.auth(s.handleDeleteTask)).Methods(http.MethodDelete)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// ListCalls reports how many GET /tasks requests reached the server
func (s *Server) ListCalls() int64 { return s.listCalls.Load() }

// HoldList installs fn to run before GET /tasks is answered; tests block in
// it to hold a fetch open. nil removes the hook.
func (s *Server) HoldList(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeList = fn
}

// SeedUser registers an account directly and returns a valid token for it
func (s *Server) SeedUser(username, email, password string) (models.User, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.createAccount(username, email, password)
	return acc.user, s.issueToken(acc.user.ID)
}

// SeedTask stores a task owned by ownerID
func (s *Server) SeedTask(task models.Task) models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = models.StatusPending
	}
	s.tasks = append(s.tasks, task)
	return task
}

// Tasks returns a copy of the stored tasks
func (s *Server) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Task(nil), s.tasks...)
}

func (s *Server) createAccount(username, email, password string) *account {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	acc := &account{
		user: models.User{ID: uuid.NewString(), Username: username, Email: email},
		hash: hash,
	}
	s.accounts[username] = acc
	return acc
}

func (s *Server) issueToken(userID string) string {
	token := uuid.NewString()
	s.tokens[token] = userID
	return token
}

type authedHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (s *Server) auth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		userID, known := s.tokens[token]
		s.mu.Unlock()
		if !ok || !known {
			writeError(w, http.StatusUnauthorized, "", "Not authorized, token failed")
			return
		}
		next(w, r, userID)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct{ Username, Email, Password string }
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Username == "" || in.Email == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "", "Please provide username, email and password")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.accounts[in.Username]; taken {
		writeError(w, http.StatusConflict, "username_taken", "User with this username already exists")
		return
	}
	for _, acc := range s.accounts {
		if strings.EqualFold(acc.user.Email, in.Email) {
			writeError(w, http.StatusConflict, "email_taken", "User with this email already exists")
			return
		}
	}

	acc := s.createAccount(in.Username, in.Email, in.Password)
	writeJSON(w, http.StatusCreated, models.AuthResult{Token: s.issueToken(acc.user.ID), User: acc.user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct{ Username, Password string }
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "", "Malformed request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[in.Username]
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(in.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return
	}
	writeJSON(w, http.StatusOK, models.AuthResult{Token: s.issueToken(acc.user.ID), User: acc.user})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, userID string) {
	if mux.Vars(r)["id"] != userID {
		writeError(w, http.StatusForbidden, "", "Not allowed")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats models.UserStats
	for _, t := range s.tasks {
		if t.OwnerID == userID {
			stats.TotalPosts++
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request, _ string) {
	s.listCalls.Add(1)
	s.mu.Lock()
	hold := s.beforeList
	s.mu.Unlock()
	if hold != nil {
		hold()
	}
	if s.FailList.Load() {
		writeError(w, http.StatusInternalServerError, "", "Server error")
		return
	}
	writeJSON(w, http.StatusOK, s.Tasks())
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, userID string) {
	var in models.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "", err.Error())
		return
	}
	if in.Status == "" {
		in.Status = models.StatusPending
	}
	task := s.SeedTask(models.Task{
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Status:      in.Status,
		OwnerID:     userID,
	})
	writeJSON(w, http.StatusCreated, task)
}

// withOwnedTask runs fn on the stored task when userID owns it
func (s *Server) withOwnedTask(w http.ResponseWriter, r *http.Request, userID string, fn func(i int)) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID != id {
			continue
		}
		if s.tasks[i].OwnerID != userID {
			writeError(w, http.StatusForbidden, "", "Not authorized to modify this task")
			return
		}
		fn(i)
		return
	}
	writeError(w, http.StatusNotFound, "", "Task not found")
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request, userID string) {
	var in models.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "", err.Error())
		return
	}
	s.withOwnedTask(w, r, userID, func(i int) {
		s.tasks[i].Title = in.Title
		s.tasks[i].Description = in.Description
		s.tasks[i].DueDate = in.DueDate
		writeJSON(w, http.StatusOK, s.tasks[i])
	})
}

// handleSetStatus lets any signed-in user move any task between states
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request, _ string) {
	var in struct {
		Status models.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid status")
		return
	}
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Status = in.Status
			writeJSON(w, http.StatusOK, s.tasks[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "", "Task not found")
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request, userID string) {
	s.withOwnedTask(w, r, userID, func(i int) {
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Task removed"})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"message": message, "code": code})
}
