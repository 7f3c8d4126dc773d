package config

import (
	"errors"
	"fmt"
	"time"
)

const minSessionSecretLength = 32

// Session store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

type SessionConfig interface {
	GetSessionSecret() string
	GetIdleTimeout() time.Duration
	GetMaxSessionAge() time.Duration
	GetSlidingExpiry() bool
	GetRotateSessionOnLogin() bool
	GetCookieSecure() bool
	GetSessionStore() string
	GetSweepInterval() time.Duration
	GetRedisURL() string
	GetSQLitePath() string
}

type Session struct {
	Secret        string        `env:"SESSION_SECRET,required"`
	IdleTimeout   time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	MaxAge        time.Duration `env:"SESSION_MAX_AGE" envDefault:"24h"`
	Sliding       bool          `env:"SESSION_SLIDING" envDefault:"true"`
	RotateOnLogin bool          `env:"SESSION_ROTATE_ON_LOGIN" envDefault:"true"`
	CookieSecure  bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	Store         string        `env:"SESSION_STORE" envDefault:"memory"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	RedisURL      string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SQLitePath    string        `env:"SQLITE_PATH" envDefault:"./data/sessions.db"`
}

var _ SessionConfig = Session{}

func (s Session) GetSessionSecret() string {
	return s.Secret
}

func (s Session) GetIdleTimeout() time.Duration {
	return s.IdleTimeout
}

// GetMaxSessionAge returns the absolute session lifetime, zero when disabled.
func (s Session) GetMaxSessionAge() time.Duration {
	return s.MaxAge
}

func (s Session) GetSlidingExpiry() bool {
	return s.Sliding
}

func (s Session) GetRotateSessionOnLogin() bool {
	return s.RotateOnLogin
}

func (s Session) GetCookieSecure() bool {
	return s.CookieSecure
}

func (s Session) GetSessionStore() string {
	return s.Store
}

func (s Session) GetSweepInterval() time.Duration {
	return s.SweepInterval
}

func (s Session) GetRedisURL() string {
	return s.RedisURL
}

func (s Session) GetSQLitePath() string {
	return s.SQLitePath
}

func (s Session) validate() error {
	if len(s.Secret) < minSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLength)
	}
	if s.IdleTimeout <= 0 {
		return errors.New("SESSION_IDLE_TIMEOUT must be positive")
	}
	if s.MaxAge < 0 {
		return errors.New("SESSION_MAX_AGE must not be negative")
	}
	if s.SweepInterval <= 0 {
		return errors.New("SESSION_SWEEP_INTERVAL must be positive")
	}
	switch s.Store {
	case StoreMemory, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("SESSION_STORE %q is not one of memory, redis, sqlite", s.Store)
	}
	return nil
}
