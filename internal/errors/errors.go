package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the login flow
var (
	// Provider errors
	ErrProvider          = errors.New("provider rejected the request")
	ErrNetwork           = errors.New("provider unreachable")
	ErrMalformedResponse = errors.New("malformed provider response")

	// Flow errors
	ErrStateMismatch       = errors.New("state mismatch")
	ErrIncompleteAssertion = errors.New("incomplete identity assertion")

	// Session errors
	ErrUnknownSession = errors.New("unknown session")
	ErrAccessDenied   = errors.New("access denied")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Class returns the taxonomy name of err for logs and metric labels.
func Class(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrStateMismatch):
		return "state_mismatch"
	case errors.Is(err, ErrIncompleteAssertion):
		return "incomplete_assertion"
	case errors.Is(err, ErrUnknownSession):
		return "unknown_session"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	default:
		return "internal"
	}
}
