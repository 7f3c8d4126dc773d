// Package google implements the Google OAuth2 + OIDC identity provider.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/SIR2425/go-oauth20/identity"
	apperrors "github.com/SIR2425/go-oauth20/internal/errors"
	"github.com/SIR2425/go-oauth20/providers"
	"github.com/coreos/go-oidc/v3/oidc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"
)

const (
	// Name identifies assertions issued through this provider
	Name = "google"

	// DefaultIssuer is Google's OIDC discovery issuer
	DefaultIssuer = "https://accounts.google.com"

	tracerName = "github.com/SIR2425/go-oauth20/providers/google"
)

var _ providers.IdentityProvider = (*Provider)(nil)

// Config holds the static client configuration
type Config struct {
	ClientID        string
	ClientSecret    string
	RedirectURL     string
	IssuerURL       string        // Defaults to DefaultIssuer
	ExchangeTimeout time.Duration // Zero means no client-side timeout
}

// Provider implements providers.IdentityProvider using Google's OIDC
// discovery and the authorization code flow.
type Provider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
	client   *http.Client
}

// New creates a Provider by fetching the issuer's OIDC discovery document.
// Makes an outbound request at startup and fails if the issuer is unreachable.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("[google.New] client id and secret are required")
	}
	issuer := cfg.IssuerURL
	if issuer == "" {
		issuer = DefaultIssuer
	}

	client := &http.Client{Timeout: cfg.ExchangeTimeout}
	p, err := oidc.NewProvider(oidc.ClientContext(ctx, client), issuer)
	if err != nil {
		return nil, fmt.Errorf("[google.New] oidc discovery: %w", err)
	}

	return NewWithVerifier(&oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     p.Endpoint(),
	}, p.Verifier(&oidc.Config{ClientID: cfg.ClientID}), client), nil
}

// NewWithVerifier builds a Provider from explicit endpoints and an ID token verifier.
// The token endpoint auth style is pinned to HTTP basic so a rejected code is never re-posted.
func NewWithVerifier(oauthConfig *oauth2.Config, verifier *oidc.IDTokenVerifier, client *http.Client) *Provider {
	cfg := *oauthConfig
	cfg.Endpoint.AuthStyle = oauth2.AuthStyleInHeader
	if client == nil {
		client = http.DefaultClient
	}
	return &Provider{config: &cfg, verifier: verifier, client: client}
}

// Name returns "google".
func (p *Provider) Name() string { return Name }

// BuildAuthorizationURL builds the consent URL. openid is always requested
// because the exchange relies on the ID token.
func (p *Provider) BuildAuthorizationURL(scopes []string, state string, opts ...oauth2.AuthCodeOption) string {
	cfg := *p.config
	cfg.Scopes = withOpenID(scopes)
	return cfg.AuthCodeURL(state, opts...)
}

// ExchangeCodeForAssertion trades the code for tokens, verifies the ID token
// signature, audience and expiry, and projects its claims into an assertion.
func (p *Provider) ExchangeCodeForAssertion(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (_ *identity.Assertion, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "google.ExchangeCodeForAssertion")
	span.SetAttributes(attribute.String("oauth.provider", Name))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, apperrors.Class(err))
		}
		span.End()
	}()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.config.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, providers.ClassifyExchangeError(err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: no id_token in token response", apperrors.ErrMalformedResponse)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: verifying id token: %w", apperrors.ErrMalformedResponse, err)
	}

	var c struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("%w: extracting id token claims: %w", apperrors.ErrMalformedResponse, err)
	}
	var raw map[string]any
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("%w: extracting raw claims: %w", apperrors.ErrMalformedResponse, err)
	}
	span.SetAttributes(attribute.Bool("oauth.subject_present", idToken.Subject != ""))

	return &identity.Assertion{
		Provider:    Name,
		Subject:     idToken.Subject,
		DisplayName: c.Name,
		Email:       c.Email,
		Raw:         raw,
	}, nil
}

func withOpenID(scopes []string) []string {
	out := make([]string, 0, len(scopes)+1)
	out = append(out, oidc.ScopeOpenID)
	for _, scope := range scopes {
		if scope == "" || slices.Contains(out, scope) {
			continue
		}
		out = append(out, scope)
	}
	return out
}
