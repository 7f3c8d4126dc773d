package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SIR2425/go-oauth20/identity"
	apperrors "github.com/SIR2425/go-oauth20/internal/errors"
	"github.com/SIR2425/go-oauth20/internal/metrics"
	"github.com/SIR2425/go-oauth20/providers"
	"github.com/SIR2425/go-oauth20/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Result is the outcome of a callback. It is always returned, never an error.
type Result struct {
	State     State               // Authenticated or AuthenticationFailed
	SessionID string              // Session id the cookie must carry after the callback
	Principal *identity.Principal // Set when Authenticated
	Reason    Reason              // Set when AuthenticationFailed
	Err       error               // Operator-facing detail, never shown to the user
}

// Authenticated reports whether the callback logged the user in.
func (r Result) Authenticated() bool {
	return r.State == Authenticated
}

// LoginService drives the authorization code flow for a session.
type LoginService struct {
	sessions sessions.Repo
	provider providers.IdentityProvider
	config   LoginConfig
	metrics  *metrics.Metrics
	nowTime  func() time.Time
}

// LoginServiceOption defines a function type to modify the LoginService instance.
type LoginServiceOption func(*LoginService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) LoginServiceOption {
	return func(ls *LoginService) {
		ls.nowTime = nowFunc
	}
}

// WithMetrics records flow outcomes on m
func WithMetrics(m *metrics.Metrics) LoginServiceOption {
	return func(ls *LoginService) {
		ls.metrics = m
	}
}

// NewLoginService initializes a LoginService with required dependencies.
func NewLoginService(repo sessions.Repo, provider providers.IdentityProvider, config LoginConfig, options ...LoginServiceOption) (*LoginService, error) {
	if repo == nil {
		return nil, errors.New("[NewLoginService] session repo is required")
	}
	if provider == nil {
		return nil, errors.New("[NewLoginService] identity provider is required")
	}
	if len(config.Scopes) == 0 {
		config.Scopes = DefaultScopes
	}
	if config.StateTTL <= 0 {
		config.StateTTL = defaultStateTTL
	}

	ls := &LoginService{
		sessions: repo,
		provider: provider,
		config:   config,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(ls)
	}
	return ls, nil
}

// Start issues a state token and PKCE verifier for the session and returns
// the provider URL to redirect to. A pending request is replaced.
func (ls *LoginService) Start(ctx context.Context, sessionID string) (string, error) {
	state, err := newStateToken()
	if err != nil {
		return "", fmt.Errorf("[LoginService.Start] state token: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	flow := sessions.AuthFlow{
		StateHash:    hashState(state),
		CodeVerifier: verifier,
		IssuedAt:     ls.nowTime(),
	}
	if err := ls.sessions.BeginFlow(ctx, sessionID, flow); err != nil {
		return "", apperrors.Wrapf(err, "[LoginService.Start] begin flow")
	}

	ls.metrics.IncrementFlowStarted()
	log.Ctx(ctx).Debug().Str("provider", ls.provider.Name()).Msg("authorization request issued")

	return ls.provider.BuildAuthorizationURL(ls.config.Scopes, state, oauth2.S256ChallengeOption(verifier)), nil
}

// Callback validates the provider's response and, on success, attaches the
// principal to the session. The pending request is consumed first, so a
// replayed callback never reaches the provider.
func (ls *LoginService) Callback(ctx context.Context, sessionID string, params CallbackParams) Result {
	flow, err := ls.sessions.ConsumeFlow(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnknownSession) {
			return ls.fail(ctx, sessionID, ReasonUnknownSession, err)
		}
		return ls.fail(ctx, sessionID, ReasonSessionError, err)
	}

	if params.Error != "" {
		return ls.fail(ctx, sessionID, ReasonProviderDenied,
			fmt.Errorf("%w: %s: %s", apperrors.ErrProvider, params.Error, params.ErrorDescription))
	}

	if reason, err := ValidateState(flow, params.State, ls.nowTime(), ls.config.StateTTL); err != nil {
		return ls.fail(ctx, sessionID, reason, err)
	}

	if params.Code == "" {
		return ls.fail(ctx, sessionID, ReasonMissingCode,
			fmt.Errorf("%w: callback carried no code", apperrors.ErrMalformedResponse))
	}

	start := time.Now()
	assertion, err := ls.provider.ExchangeCodeForAssertion(ctx, params.Code, oauth2.VerifierOption(flow.CodeVerifier))
	ls.metrics.ObserveExchange(start)
	if err != nil {
		return ls.fail(ctx, sessionID, ReasonExchangeFailed, err)
	}

	principal, err := identity.Reduce(assertion)
	if err != nil {
		return ls.fail(ctx, sessionID, ReasonIncompleteAssertion, err)
	}

	newID, err := ls.attach(ctx, sessionID, principal)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnknownSession) {
			return ls.fail(ctx, sessionID, ReasonUnknownSession, err)
		}
		return ls.fail(ctx, sessionID, ReasonSessionError, err)
	}

	ls.metrics.IncrementFlowCompleted(Authenticated.String())
	log.Ctx(ctx).Info().
		Str("provider", ls.provider.Name()).
		Bool("rotated", newID != sessionID).
		Msg("login succeeded")

	return Result{State: Authenticated, SessionID: newID, Principal: &principal}
}

// attach stores the principal, on a fresh session when rotation is enabled
// so the pre-login id cannot be fixed by an attacker.
func (ls *LoginService) attach(ctx context.Context, sessionID string, principal identity.Principal) (string, error) {
	if !ls.config.RotateSessionOnLogin {
		return sessionID, ls.sessions.AttachPrincipal(ctx, sessionID, principal)
	}

	current, err := ls.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", apperrors.ErrUnknownSession
	}

	fresh, err := ls.sessions.Create(ctx)
	if err != nil {
		return "", err
	}
	if err := ls.sessions.AttachPrincipal(ctx, fresh.ID, principal); err != nil {
		_ = ls.sessions.Destroy(ctx, fresh.ID)
		return "", err
	}
	if err := ls.sessions.Destroy(ctx, sessionID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to destroy pre-login session")
	}
	return fresh.ID, nil
}

func (ls *LoginService) fail(ctx context.Context, sessionID string, reason Reason, err error) Result {
	ls.metrics.IncrementFlowCompleted(AuthenticationFailed.String())
	ls.metrics.IncrementLoginFailure(reason.String())

	level := zerolog.InfoLevel
	msg := "login failed"
	switch reason {
	case ReasonStateMismatch:
		level = zerolog.WarnLevel
		msg = "callback state mismatch, possible request forgery"
	case ReasonSessionError:
		level = zerolog.ErrorLevel
	}
	log.Ctx(ctx).WithLevel(level).
		Err(err).
		Str("reason", reason.String()).
		Str("class", apperrors.Class(err)).
		Str("provider", ls.provider.Name()).
		Msg(msg)

	return Result{State: AuthenticationFailed, SessionID: sessionID, Reason: reason, Err: err}
}
