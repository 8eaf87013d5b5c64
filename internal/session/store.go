// Package session holds the authentication state of the client and keeps
// it in step with the persisted copy.
//
// Every action writes to storage before it changes memory, so a process that
// dies between the two steps restarts into whatever storage says. Actions
// are not serialized against each other: if two run at once, the last one
// to finish decides the final state.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/tgienger/taskflow/internal/apperr"
	"github.com/tgienger/taskflow/internal/models"
)

// Persisted keys. They are always written and deleted together.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// User-facing messages for failures the server does not describe
const (
	SignUpFailed   = "Something went wrong with sign up"
	SignInFailed   = "Invalid username or password"
	RestoreFailed  = "error restoring session"
	SignOutFailed  = "Error signing out"
	storageFailure = "Could not save your session on this device"
)

// Persistence is key/value storage for the session
type Persistence interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, pairs map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// Authenticator exchanges credentials for a session
type Authenticator interface {
	Register(ctx context.Context, username, email, password string) (*models.AuthResult, error)
	Login(ctx context.Context, username, password string) (*models.AuthResult, error)
}

// Store is the session state container
type Store struct {
	persist Persistence
	auth    Authenticator

	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

// New creates a store in the logged-out shape
func New(persist Persistence, auth Authenticator) *Store {
	return &Store{
		persist: persist,
		auth:    auth,
		state:   loggedOut,
		subs:    make(map[int]func(State)),
	}
}

// State returns a snapshot of the current state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Token returns the bearer token, "" when logged out
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token
}

// Subscribe registers fn to receive every new state. Call the returned
// function to stop receiving.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) dispatch(a action) {
	s.mu.Lock()
	s.state = reduce(s.state, a)
	st := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

// SignUp registers a new account and signs it in. Failures end up in
// ErrorMessage; the error is also returned so the form can attribute
// conflicts to a field.
func (s *Store) SignUp(ctx context.Context, username, email, password string) error {
	return s.authenticate(ctx, "sign up", SignUpFailed, func() (*models.AuthResult, error) {
		return s.auth.Register(ctx, username, email, password)
	})
}

// SignIn logs into an existing account
func (s *Store) SignIn(ctx context.Context, username, password string) error {
	return s.authenticate(ctx, "sign in", SignInFailed, func() (*models.AuthResult, error) {
		return s.auth.Login(ctx, username, password)
	})
}

func (s *Store) authenticate(ctx context.Context, op, fallback string, call func() (*models.AuthResult, error)) error {
	res, err := call()
	if err != nil {
		log.Printf("[session] %s failed: %v", op, err)
		s.dispatch(addError{message: apperr.MessageOf(err, fallback)})
		return err
	}

	userJSON, err := json.Marshal(res.User)
	if err != nil {
		s.dispatch(addError{message: fallback})
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.persist.Set(ctx, map[string]string{
		TokenKey: res.Token,
		UserKey:  string(userJSON),
	}); err != nil {
		log.Printf("[session] %s: persist session: %v", op, err)
		s.dispatch(addError{message: storageFailure})
		return fmt.Errorf("persist session: %w", err)
	}

	log.Printf("[session] %s succeeded for user %s", op, res.User.ID)
	s.dispatch(signedIn{token: res.Token, user: res.User})
	return nil
}

// TryRestoreSession loads a saved session. A missing session is not an
// error and leaves the state untouched.
func (s *Store) TryRestoreSession(ctx context.Context) {
	token, err := s.persist.Get(ctx, TokenKey)
	if err != nil {
		log.Printf("[session] restore: read token: %v", err)
		s.dispatch(addError{message: RestoreFailed})
		return
	}
	rawUser, err := s.persist.Get(ctx, UserKey)
	if err != nil {
		log.Printf("[session] restore: read user: %v", err)
		s.dispatch(addError{message: RestoreFailed})
		return
	}
	if token == "" || rawUser == "" {
		return
	}

	user, err := parseUser(rawUser)
	if err != nil {
		log.Printf("[session] restore: %v", err)
		s.dispatch(addError{message: RestoreFailed})
		return
	}

	log.Printf("[session] restored session for user %s", user.ID)
	s.dispatch(restored{token: token, user: user})
}

// SignOut clears the stored session and logs out. The in-memory session is
// dropped even when storage cannot be cleared; that failure is reported in
// ErrorMessage and returned.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.persist.Delete(ctx, TokenKey, UserKey)
	if err != nil {
		log.Printf("[session] sign out: clear storage: %v", err)
		s.dispatch(signedOut{message: SignOutFailed})
		return fmt.Errorf("clear stored session: %w", err)
	}
	s.dispatch(signedOut{})
	return nil
}

// ClearError empties ErrorMessage and nothing else
func (s *Store) ClearError() {
	s.dispatch(clearError{})
}
