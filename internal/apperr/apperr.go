// Package apperr defines the error taxonomy shared by the session store,
// the task controller and the forms.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the UI should present it
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is a local or server-side input rejection, shown inline
	KindValidation
	// KindAuth means credentials were rejected or restored session data is corrupt
	KindAuth
	// KindNetwork is a transport, timeout or server failure; shown as a dismissible notice
	KindNetwork
	// KindConflict means a registration collided with an existing username or email
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error carries a kind, the HTTP status (0 when none) and the server's message and code
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a local validation error, optionally tied to a form field
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// Network wraps a transport failure
func Network(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the server or validation message carried by err, or fallback when there is none
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
