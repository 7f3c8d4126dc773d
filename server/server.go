package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/SIR2425/go-oauth20/auth"
	"github.com/SIR2425/go-oauth20/internal/config"
	"github.com/SIR2425/go-oauth20/internal/metrics"
	"github.com/SIR2425/go-oauth20/providers"
	"github.com/SIR2425/go-oauth20/sessions"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	metrics *metrics.Metrics

	sessions sessions.Repo
	cookies  *sessions.CookieCodec
	sliding  bool // reissue the cookie whenever the guard extends the session
	login    *auth.LoginService
	guard    *auth.Guard
}

func New(config config.Config, repo sessions.Repo, provider providers.IdentityProvider, m *metrics.Metrics) (*Server, error) {
	cookies, err := sessions.NewCookieCodec(config.GetSessionSecret(), config.GetCookieSecure(), config.GetIdleTimeout())
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create cookie codec: %w", err)
	}

	login, err := auth.NewLoginService(repo, provider, auth.LoginConfig{
		Scopes:               config.GetScopes(),
		StateTTL:             config.GetStateTTL(),
		RotateSessionOnLogin: config.GetRotateSessionOnLogin(),
	}, auth.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create login service: %w", err)
	}

	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		metrics:  m,
		sessions: repo,
		cookies:  cookies,
		sliding:  config.GetSlidingExpiry(),
		login:    login,
		guard:    auth.NewGuard(repo, config.GetSlidingExpiry(), auth.WithGuardMetrics(m)),
	}

	if err := s.initRoutes(); err != nil {
		return nil, fmt.Errorf("[Server New] failed to register routes: %w", err)
	}
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(fmt.Sprintf(" %-7s", method), method), path)
}
