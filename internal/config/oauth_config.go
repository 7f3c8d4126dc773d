package config

import (
	"errors"
	"strings"
	"time"
)

// DefaultCallbackPath is joined to BASE_URL when OAUTH_CALLBACK_URL is unset.
const DefaultCallbackPath = "/auth/provider/callback"

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetCallbackURL() string
	GetIssuerURL() string
	GetScopes() []string
	GetStateTTL() time.Duration
	GetExchangeTimeout() time.Duration
}

// OAuth holds the identity provider client registration.
type OAuth struct {
	ClientID        string        `env:"GOOGLE_CLIENT_ID,required"`
	ClientSecret    string        `env:"GOOGLE_CLIENT_SECRET,required"`
	CallbackURL     string        `env:"OAUTH_CALLBACK_URL"` // defaults to BASE_URL + DefaultCallbackPath
	IssuerURL       string        `env:"OAUTH_ISSUER_URL" envDefault:"https://accounts.google.com"`
	Scopes          []string      `env:"OAUTH_SCOPES" envDefault:"profile,email" envSeparator:","`
	StateTTL        time.Duration `env:"OAUTH_STATE_TTL" envDefault:"5m"`
	ExchangeTimeout time.Duration `env:"OAUTH_EXCHANGE_TIMEOUT" envDefault:"10s"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetClientID() string {
	return o.ClientID
}

func (o OAuth) GetClientSecret() string {
	return o.ClientSecret
}

func (o OAuth) GetCallbackURL() string {
	return o.CallbackURL
}

func (o OAuth) GetIssuerURL() string {
	return o.IssuerURL
}

// GetScopes returns the requested scopes, trimmed and without duplicates.
func (o OAuth) GetScopes() []string {
	seen := make(map[string]struct{}, len(o.Scopes))
	scopes := make([]string, 0, len(o.Scopes))
	for _, s := range o.Scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		scopes = append(scopes, s)
	}
	return scopes
}

func (o OAuth) GetStateTTL() time.Duration {
	return o.StateTTL
}

func (o OAuth) GetExchangeTimeout() time.Duration {
	return o.ExchangeTimeout
}

func (o OAuth) validate() error {
	if strings.TrimSpace(o.CallbackURL) == "" {
		return errors.New("OAUTH_CALLBACK_URL is required")
	}
	if len(o.GetScopes()) == 0 {
		return errors.New("OAUTH_SCOPES must name at least one scope")
	}
	if o.StateTTL <= 0 {
		return errors.New("OAUTH_STATE_TTL must be positive")
	}
	if o.ExchangeTimeout <= 0 {
		return errors.New("OAUTH_EXCHANGE_TIMEOUT must be positive")
	}
	return nil
}
