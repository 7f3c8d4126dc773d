package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	apperrors "github.com/SIR2425/go-oauth20/internal/errors"
	"github.com/SIR2425/go-oauth20/internal/utils"
	"github.com/SIR2425/go-oauth20/sessions"
)

const stateTokenLength = 32

func newStateToken() (string, error) {
	return utils.RandomString(stateTokenLength)
}

// hashState is what gets stored; the raw token only lives in the redirect.
func hashState(state string) string {
	hash := sha256.Sum256([]byte(state))
	return base64.URLEncoding.EncodeToString(hash[:])
}

// ValidateState checks a returned state against the pending request.
// It returns the failure reason alongside an ErrStateMismatch-wrapped error.
func ValidateState(flow *sessions.AuthFlow, state string, now time.Time, ttl time.Duration) (Reason, error) {
	if flow == nil {
		return ReasonStateMismatch, fmt.Errorf("%w: no pending authorization request", apperrors.ErrStateMismatch)
	}
	if state == "" {
		return ReasonStateMismatch, fmt.Errorf("%w: callback carried no state", apperrors.ErrStateMismatch)
	}
	if subtle.ConstantTimeCompare([]byte(hashState(state)), []byte(flow.StateHash)) != 1 {
		return ReasonStateMismatch, fmt.Errorf("%w: state does not match the issued token", apperrors.ErrStateMismatch)
	}
	if ttl > 0 && now.Sub(flow.IssuedAt) > ttl {
		return ReasonStateExpired, fmt.Errorf("%w: state issued %s ago", apperrors.ErrStateMismatch, now.Sub(flow.IssuedAt).Round(time.Second))
	}
	return ReasonNone, nil
}
