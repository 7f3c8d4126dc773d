package server

import (
	"context"
	"net/http"

	"github.com/SIR2425/go-oauth20/identity"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyPrincipal stores the authenticated principal
	ContextKeyPrincipal ContextKey = "principal"
	// ContextKeySessionID stores the verified session id
	ContextKeySessionID ContextKey = "session_id"
)

// RequireSessionAuth is middleware for protected HTML routes. It asks the
// access guard for the session's principal and redirects to the entry page
// when access is denied. With sliding expiry the cookie is reissued so the
// browser keeps it as long as the store does.
func (s *Server) RequireSessionAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sessionID, _ := s.cookies.Read(r)

			principal, err := s.guard.Authorize(r.Context(), sessionID)
			if err != nil {
				http.Redirect(w, r, RouteIndex, http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			ctx = context.WithValue(ctx, ContextKeySessionID, sessionID)
			r = r.WithContext(ctx)

			if s.sliding {
				s.refreshSessionCookie(w, r)
			}
			next(w, r)
		}
	}
}

// PrincipalFromContext returns the principal set by RequireSessionAuth.
func PrincipalFromContext(ctx context.Context) (*identity.Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(*identity.Principal)
	return p, ok && p != nil
}

// SessionIDFromContext returns the session id verified by RequireSessionAuth.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeySessionID).(string)
	return id, ok && id != ""
}
