package server

import (
	"net/http"

	"github.com/SIR2425/go-oauth20/auth"
	"github.com/rs/zerolog/log"
)

// AuthStartHandler begins the login flow and redirects to the provider
func (s *Server) AuthStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sessionID, err := s.ensureSession(ctx, w, r)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to establish session")
			redirectToIndex(w, r)
			return
		}

		providerURL, err := s.login.Start(ctx, sessionID)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to start login")
			redirectToIndex(w, r)
			return
		}
		http.Redirect(w, r, providerURL, http.StatusFound)
	}
}

// AuthCallbackHandler completes the login flow. Success lands on the
// profile page; any failure lands on the entry page.
func (s *Server) AuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sessionID, _ := s.cookies.Read(r)

		result := s.login.Callback(ctx, sessionID, auth.ParseCallback(r.URL.Query()))
		if !result.Authenticated() {
			redirectToIndex(w, r)
			return
		}

		// Reissued even without rotation so the cookie lifetime starts at login.
		if err := s.cookies.Write(w, result.SessionID); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to issue session cookie")
			s.guard.Logout(ctx, result.SessionID)
			redirectToIndex(w, r)
			return
		}
		http.Redirect(w, r, RouteProfile, http.StatusFound)
	}
}

// LogoutHandler destroys the session and clears the cookie. It never fails.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessionID, ok := s.cookies.Read(r); ok {
			s.guard.Logout(r.Context(), sessionID)
		}
		s.cookies.Clear(w)
		redirectToIndex(w, r)
	}
}
