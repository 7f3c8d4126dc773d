package auth

import (
	"net/url"
	"strings"
	"time"
)

const (
	defaultStateTTL = 5 * time.Minute
)

// DefaultScopes are requested when none are configured.
var DefaultScopes = []string{"profile", "email"}

// LoginConfig holds the static settings of the login flow.
type LoginConfig struct {
	Scopes               []string      // Requested scopes, DefaultScopes when empty
	StateTTL             time.Duration // Lifetime of a state token
	RotateSessionOnLogin bool          // Issue a new session id on successful login
}

// CallbackParams are the query parameters the provider sends back.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseCallback reads the callback parameters from a query string.
func ParseCallback(values url.Values) CallbackParams {
	return CallbackParams{
		Code:             strings.TrimSpace(values.Get("code")),
		State:            values.Get("state"),
		Error:            strings.TrimSpace(values.Get("error")),
		ErrorDescription: values.Get("error_description"),
	}
}
