package server

import (
	"net/http"
)

func (s *Server) initRoutes() error {
	index, err := s.IndexHandler()
	if err != nil {
		return err
	}
	profile, err := s.ProfileHandler()
	if err != nil {
		return err
	}

	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(index, s.HTMLMiddleWare()...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteAuthStart, ChainMiddleware(s.AuthStartHandler(), s.HTMLMiddleWare(s.NoStoreMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.AuthCallbackHandler(), s.HTMLMiddleWare(s.NoStoreMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare(s.NoStoreMiddleware)...))

	// Protected routes
	s.RegisterRouteHandler("GET "+RouteProfile, ChainMiddleware(profile, s.HTMLMiddleWare(s.NoStoreMiddleware, s.RequireSessionAuth())...))

	// Operational routes
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())

	return nil
}

// HealthHandler reports liveness
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
