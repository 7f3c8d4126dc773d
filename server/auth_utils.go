package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ensureSession returns the caller's live session id, creating a session and
// issuing its cookie when the request carries none.
func (s *Server) ensureSession(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, error) {
	if sessionID, ok := s.cookies.Read(r); ok {
		existing, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			return "", err
		}
		if existing != nil {
			return sessionID, nil
		}
	}

	created, err := s.sessions.Create(ctx)
	if err != nil {
		return "", err
	}
	if err := s.cookies.Write(w, created.ID); err != nil {
		_ = s.sessions.Destroy(ctx, created.ID)
		return "", err
	}
	log.Ctx(ctx).Debug().Msg("session created")
	return created.ID, nil
}

// refreshSessionCookie reissues the cookie for the session verified by
// RequireSessionAuth, restarting its Max-Age alongside the store's idle clock.
func (s *Server) refreshSessionCookie(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok {
		return
	}
	if err := s.cookies.Write(w, sessionID); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("failed to refresh session cookie")
	}
}

// redirectToIndex is the single exit for every failed flow; no detail reaches the user.
func redirectToIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, RouteIndex, http.StatusFound)
}
