package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	OAuthConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	OAuth
	Session
}

var _ Config = (*mainConfig)(nil)

// New loads the configuration from the process environment.
func New() (Config, error) {
	return parse(env.Options{})
}

// NewFromMap loads the configuration from the given variables only, ignoring
// the process environment.
func NewFromMap(vars map[string]string) (Config, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var c mainConfig
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return nil, fmt.Errorf("[config] parse env: %w", err)
	}
	if strings.TrimSpace(c.OAuth.CallbackURL) == "" {
		c.OAuth.CallbackURL = c.GetBaseURL() + DefaultCallbackPath
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("[config] %w", err)
	}
	return &c, nil
}

func (c *mainConfig) validate() error {
	if err := c.OAuth.validate(); err != nil {
		return err
	}
	return c.Session.validate()
}
