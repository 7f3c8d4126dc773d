// Package providers defines the identity provider capability used by the login flow.
package providers

import (
	"context"

	"github.com/SIR2425/go-oauth20/identity"
	"golang.org/x/oauth2"
)

// IdentityProvider is an OAuth2 authorization code provider.
// Implementations own the provider-specific URL shape, token exchange and
// normalization of the returned identity.
type IdentityProvider interface {
	// Name is the provider identifier recorded on assertions
	Name() string

	// BuildAuthorizationURL returns the provider consent URL for the given
	// scopes and state. It has no side effects.
	BuildAuthorizationURL(scopes []string, state string, opts ...oauth2.AuthCodeOption) string

	// ExchangeCodeForAssertion trades a single-use authorization code for the
	// provider's identity assertion. Errors wrap ErrProvider, ErrNetwork or
	// ErrMalformedResponse. The exchange is never retried.
	ExchangeCodeForAssertion(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*identity.Assertion, error)
}
