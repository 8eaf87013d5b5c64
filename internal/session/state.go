package session

import "github.com/tgienger/taskflow/internal/models"

// State is the authentication state. Token and User are set together and
// cleared together; ErrorMessage moves independently.
type State struct {
	Token        string
	User         *models.User
	ErrorMessage string
}

// LoggedIn reports whether the state carries a session
func (s State) LoggedIn() bool {
	return s.Token != "" && s.User != nil
}

// loggedOut is the shape the store starts in
var loggedOut = State{}

type action interface{ isAction() }

type (
	// signedIn replaces the session and clears the error
	signedIn struct {
		token string
		user  models.User
	}
	// restored replaces the session and leaves the error alone
	restored struct {
		token string
		user  models.User
	}
	addError struct{ message string }
	clearError struct{}
	// signedOut drops the session; message is non-empty when storage could not be cleared
	signedOut struct{ message string }
)

func (signedIn) isAction()   {}
func (restored) isAction()   {}
func (addError) isAction()   {}
func (clearError) isAction() {}
func (signedOut) isAction()  {}

func reduce(s State, a action) State {
	switch a := a.(type) {
	case signedIn:
		user := a.user
		return State{Token: a.token, User: &user}
	case restored:
		user := a.user
		return State{Token: a.token, User: &user, ErrorMessage: s.ErrorMessage}
	case addError:
		s.ErrorMessage = a.message
		return s
	case clearError:
		s.ErrorMessage = ""
		return s
	case signedOut:
		return State{ErrorMessage: a.message}
	default:
		return s
	}
}
