package auth

// Reason names why a callback ended in AuthenticationFailed.
// It is used for operator logs and metric labels, never shown to the user.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonUnknownSession      Reason = "unknown_session"
	ReasonProviderDenied      Reason = "provider_denied"
	ReasonStateMismatch       Reason = "state_mismatch"
	ReasonStateExpired        Reason = "state_expired"
	ReasonMissingCode         Reason = "missing_code"
	ReasonExchangeFailed      Reason = "exchange_failed"
	ReasonIncompleteAssertion Reason = "incomplete_assertion"
	ReasonSessionError        Reason = "session_error"
)

func (r Reason) String() string {
	if r == ReasonNone {
		return "none"
	}
	return string(r)
}
