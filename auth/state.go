package auth

import "github.com/SIR2425/go-oauth20/sessions"

// State is a position in the login state machine.
type State int

const (
	// Anonymous sessions have no principal and no pending request
	Anonymous State = iota
	// AuthorizationRequested sessions hold a pending state token
	AuthorizationRequested
	// Authenticated sessions hold a principal
	Authenticated
	// AuthenticationFailed is the terminal state of a rejected callback; it is never persisted
	AuthenticationFailed
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case AuthorizationRequested:
		return "authorization_requested"
	case Authenticated:
		return "authenticated"
	case AuthenticationFailed:
		return "authentication_failed"
	default:
		return "unknown"
	}
}

// StateOf derives the persisted state of a session. A pending request wins
// over an existing principal because a new attempt is in flight.
func StateOf(s *sessions.Session) State {
	switch {
	case s == nil:
		return Anonymous
	case s.Flow != nil:
		return AuthorizationRequested
	case s.Authenticated():
		return Authenticated
	default:
		return Anonymous
	}
}
