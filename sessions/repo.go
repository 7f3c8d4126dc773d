package sessions

import (
	"context"

	"github.com/SIR2425/go-oauth20/identity"
)

// Repo owns the mapping from session id to Session.
// Mutations are atomic per session.
type Repo interface {
	// Create allocates and stores a new anonymous session
	Create(ctx context.Context) (*Session, error)

	// Get returns the session, or nil with no error when it is unknown or expired
	Get(ctx context.Context, sessionID string) (*Session, error)

	// BeginFlow records a pending authorization request, replacing any earlier one
	BeginFlow(ctx context.Context, sessionID string, flow AuthFlow) error

	// ConsumeFlow removes and returns the pending authorization request (nil if none)
	ConsumeFlow(ctx context.Context, sessionID string) (*AuthFlow, error)

	// AttachPrincipal stores the principal on the session
	AttachPrincipal(ctx context.Context, sessionID string, principal identity.Principal) error

	// Touch refreshes the last access time
	Touch(ctx context.Context, sessionID string) error

	// Destroy removes the session; unknown ids are not an error
	Destroy(ctx context.Context, sessionID string) error

	// DeleteExpired removes sessions the policy has expired and returns how many went
	DeleteExpired(ctx context.Context) (int, error)

	// Close releases the backing storage
	Close() error
}
