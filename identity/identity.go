// Package identity holds the provider identity assertion and the minimal
// principal persisted in a session.
package identity

// Assertion is the identity a provider returns for a successful code exchange.
type Assertion struct {
	Provider    string         // provider that issued the assertion, e.g. "google"
	Subject     string         // provider-scoped, opaque user id ("sub")
	DisplayName string         // optional
	Email       string         // optional
	Raw         map[string]any // provider-specific claims as received
}

// Principal is the application's view of the logged-in user.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}
