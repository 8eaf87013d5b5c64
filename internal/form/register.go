// Package form holds the client-side validation of the login and
// registration screens.
package form

import (
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/tgienger/taskflow/internal/apperr"
)

// Field names a registration input
type Field string

const (
	FieldUsername Field = "username"
	FieldEmail    Field = "email"
	FieldPassword Field = "password"
	FieldConfirm  Field = "confirmPassword"
)

// ValidationDelay is the quiet period before a password field is checked
const ValidationDelay = 500 * time.Millisecond

const (
	MsgUsernameRequired = "Username is required"
	MsgUsernameShort    = "Username must be at least 3 characters"
	MsgEmailRequired    = "Email is required"
	MsgEmailInvalid     = "Please enter a valid email address"
	MsgConfirmRequired  = "Please confirm your password"
	MsgPasswordMismatch = "Passwords do not match"
	MsgUsernameTaken    = "Username already exists"
	MsgEmailTaken       = "Email already registered"
	MsgFillAllFields    = "Please fill in all fields"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Registration is the state of the sign-up form. Username and email are
// committed as typed. Password fields keep a raw buffer and are committed
// only after a debounced check passes.
type Registration struct {
	debounce *Debouncer

	mu        sync.Mutex
	confirmed map[Field]string
	raw       map[Field]string
	errors    map[Field]string
	onChange  func()
}

// NewRegistration creates an empty form. onChange, if set, is called after
// every debounced validation, from the timer's goroutine.
func NewRegistration(clock Clock, onChange func()) *Registration {
	return &Registration{
		debounce:  NewDebouncer(clock, ValidationDelay),
		confirmed: make(map[Field]string),
		raw:       make(map[Field]string),
		errors:    make(map[Field]string),
		onChange:  onChange,
	}
}

func isPasswordField(f Field) bool {
	return f == FieldPassword || f == FieldConfirm
}

// SetField records a keystroke into any field
func (r *Registration) SetField(f Field, value string) {
	if isPasswordField(f) {
		r.SetPassword(f, value)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed[f] = value
	delete(r.errors, f)
}

// SetPassword updates the raw buffer now and schedules validation of value
func (r *Registration) SetPassword(f Field, value string) {
	r.mu.Lock()
	r.raw[f] = value
	r.mu.Unlock()

	r.debounce.Schedule(string(f), func() { r.validatePassword(f, value) })
}

func (r *Registration) validatePassword(f Field, value string) {
	r.mu.Lock()
	violations := CheckPassword(value)

	if f == FieldPassword {
		if len(violations) > 0 {
			r.errors[FieldPassword] = strings.Join(violations, ", ")
		} else {
			delete(r.errors, FieldPassword)
		}
	}

	if f == FieldConfirm || r.raw[FieldConfirm] != "" {
		if r.raw[FieldPassword] != r.raw[FieldConfirm] {
			r.errors[FieldConfirm] = MsgPasswordMismatch
		} else {
			delete(r.errors, FieldConfirm)
		}
	}

	if len(violations) == 0 {
		r.confirmed[f] = value
	}
	onChange := r.onChange
	r.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

// Validate checks every field synchronously from the raw input, replacing
// the error annotations. Pending debounced checks are cancelled so they cannot
// overwrite the result.
func (r *Registration) Validate() bool {
	r.debounce.Cancel(string(FieldPassword))
	r.debounce.Cancel(string(FieldConfirm))

	r.mu.Lock()
	defer r.mu.Unlock()

	errs := make(map[Field]string)

	username := strings.TrimSpace(r.confirmed[FieldUsername])
	switch {
	case username == "":
		errs[FieldUsername] = MsgUsernameRequired
	case utf8.RuneCountInString(username) < 3:
		errs[FieldUsername] = MsgUsernameShort
	}

	email := strings.TrimSpace(r.confirmed[FieldEmail])
	switch {
	case email == "":
		errs[FieldEmail] = MsgEmailRequired
	case !emailPattern.MatchString(email):
		errs[FieldEmail] = MsgEmailInvalid
	}

	if violations := CheckPassword(r.raw[FieldPassword]); len(violations) > 0 {
		errs[FieldPassword] = strings.Join(violations, ", ")
	}

	switch {
	case r.raw[FieldConfirm] == "":
		errs[FieldConfirm] = MsgConfirmRequired
	case r.raw[FieldPassword] != r.raw[FieldConfirm]:
		errs[FieldConfirm] = MsgPasswordMismatch
	}

	r.errors = errs
	if len(errs) == 0 {
		r.confirmed[FieldPassword] = r.raw[FieldPassword]
		r.confirmed[FieldConfirm] = r.raw[FieldConfirm]
	}
	return len(errs) == 0
}

// Submission is what the form sends to sign up
type Submission struct {
	Username string
	Email    string
	Password string
}

// Values returns the trimmed username and email and the raw password
func (r *Registration) Values() Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Submission{
		Username: strings.TrimSpace(r.confirmed[FieldUsername]),
		Email:    strings.TrimSpace(r.confirmed[FieldEmail]),
		Password: r.raw[FieldPassword],
	}
}

// Confirmed returns the committed value of f
func (r *Registration) Confirmed(f Field) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.confirmed[f]
}

// Error returns the annotation of f, "" when it has none
func (r *Registration) Error(f Field) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors[f]
}

// Errors returns a copy of every annotation
func (r *Registration) Errors() map[Field]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Field]string, len(r.errors))
	for f, msg := range r.errors {
		out[f] = msg
	}
	return out
}

// AttributeConflict maps a rejected registration onto the username or email
// field. A structured code wins; otherwise the server message is searched for
// the field name. Reports whether a field was annotated.
func (r *Registration) AttributeConflict(err error) bool {
	var e *apperr.Error
	if !errors.As(err, &e) {
		return false
	}

	msg := strings.ToLower(e.Message)
	var field Field
	switch {
	case e.Code == "username_taken":
		field = FieldUsername
	case e.Code == "email_taken":
		field = FieldEmail
	case strings.Contains(msg, "username"):
		field = FieldUsername
	case strings.Contains(msg, "email"):
		field = FieldEmail
	default:
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if field == FieldUsername {
		r.errors[FieldUsername] = MsgUsernameTaken
	} else {
		r.errors[FieldEmail] = MsgEmailTaken
	}
	return true
}

// Reset empties the form and drops pending checks
func (r *Registration) Reset() {
	r.debounce.Cancel(string(FieldPassword))
	r.debounce.Cancel(string(FieldConfirm))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = make(map[Field]string)
	r.raw = make(map[Field]string)
	r.errors = make(map[Field]string)
}

// Close cancels every pending check. The form must not be used afterwards.
func (r *Registration) Close() {
	r.debounce.Stop()
}

// ValidateLogin requires both credentials before anything is sent
func ValidateLogin(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return apperr.Validation("", MsgFillAllFields)
	}
	return nil
}
