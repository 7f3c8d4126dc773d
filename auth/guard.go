package auth

import (
	"context"
	"fmt"

	"github.com/SIR2425/go-oauth20/identity"
	apperrors "github.com/SIR2425/go-oauth20/internal/errors"
	"github.com/SIR2425/go-oauth20/internal/metrics"
	"github.com/SIR2425/go-oauth20/sessions"
	"github.com/rs/zerolog/log"
)

// Guard decides whether a session may reach a protected resource.
type Guard struct {
	sessions sessions.Repo
	sliding  bool
	metrics  *metrics.Metrics
}

// GuardOption defines a function type to modify the Guard instance.
type GuardOption func(*Guard)

// WithGuardMetrics records decisions on m
func WithGuardMetrics(m *metrics.Metrics) GuardOption {
	return func(g *Guard) {
		g.metrics = m
	}
}

// NewGuard creates a Guard. With sliding set, every allowed request
// refreshes the session's idle window.
func NewGuard(repo sessions.Repo, sliding bool, options ...GuardOption) *Guard {
	g := &Guard{sessions: repo, sliding: sliding}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Authorize returns the session's principal, or ErrAccessDenied.
func (g *Guard) Authorize(ctx context.Context, sessionID string) (*identity.Principal, error) {
	if sessionID == "" {
		return g.deny(ctx, "no session", nil)
	}

	s, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		return g.deny(ctx, "session lookup failed", err)
	}
	if s == nil {
		return g.deny(ctx, "session unknown or expired", nil)
	}
	if !s.Authenticated() {
		return g.deny(ctx, "session not authenticated", nil)
	}

	principal, err := identity.Expand(s.Principal)
	if err != nil {
		return g.deny(ctx, "stored principal unreadable", err)
	}

	if g.sliding {
		if err := g.sessions.Touch(ctx, sessionID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to refresh session")
		}
	}

	g.metrics.IncrementGuardDecision("allow")
	return &principal, nil
}

// Logout destroys the session. Failures are logged and otherwise ignored:
// the visible outcome is the same either way.
func (g *Guard) Logout(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := g.sessions.Destroy(ctx, sessionID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("session destroy failed, treating as logged out")
	}
}

func (g *Guard) deny(ctx context.Context, why string, err error) (*identity.Principal, error) {
	g.metrics.IncrementGuardDecision("deny")
	event := log.Ctx(ctx).Debug()
	if err != nil {
		event = log.Ctx(ctx).Warn().Err(err)
	}
	event.Str("why", why).Msg("access denied")
	return nil, fmt.Errorf("%w: %s", apperrors.ErrAccessDenied, why)
}
