package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// IndexHandler renders the entry page with the sign-in link
func (s *Server) IndexHandler() (http.HandlerFunc, error) {
	tmpl, err := ParseTemplate("index.html")
	if err != nil {
		return nil, err
	}

	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"AppName":  s.config.GetAppName(),
			"LoginURL": RouteAuthStart,
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("failed to render index")
		}
	}, nil
}

// ProfileHandler renders the protected page for the principal set by RequireSessionAuth
func (s *Server) ProfileHandler() (http.HandlerFunc, error) {
	tmpl, err := ParseTemplate("profile.html")
	if err != nil {
		return nil, err
	}

	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			redirectToIndex(w, r)
			return
		}

		name := principal.DisplayName
		if name == "" {
			name = principal.ID
		}
		data := map[string]any{
			"AppName":   s.config.GetAppName(),
			"Name":      name,
			"LogoutURL": RouteLogout,
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("failed to render profile")
		}
	}, nil
}
