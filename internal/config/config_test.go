package config_test

import (
	"testing"
	"time"

	"github.com/SIR2425/go-oauth20/internal/config"
	"github.com/stretchr/testify/require"
)

func requiredVars() map[string]string {
	return map[string]string{
		"GOOGLE_CLIENT_ID":     "client-id",
		"GOOGLE_CLIENT_SECRET": "client-secret",
		"SESSION_SECRET":       "0123456789abcdef0123456789abcdef",
	}
}

func TestNewFromMap_Defaults(t *testing.T) {
	c, err := config.NewFromMap(requiredVars())
	require.NoError(t, err)

	require.Equal(t, ":3000", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "client-id", c.GetClientID())
	require.Equal(t, "client-secret", c.GetClientSecret())
	require.Equal(t, "http://localhost:3000/auth/provider/callback", c.GetCallbackURL())
	require.Equal(t, "https://accounts.google.com", c.GetIssuerURL())
	require.Equal(t, []string{"profile", "email"}, c.GetScopes())
	require.Equal(t, 5*time.Minute, c.GetStateTTL())
	require.Equal(t, 10*time.Second, c.GetExchangeTimeout())
	require.Equal(t, 30*time.Minute, c.GetIdleTimeout())
	require.Equal(t, 24*time.Hour, c.GetMaxSessionAge())
	require.True(t, c.GetSlidingExpiry())
	require.True(t, c.GetRotateSessionOnLogin())
	require.False(t, c.GetCookieSecure())
	require.Equal(t, config.StoreMemory, c.GetSessionStore())
}

func TestNewFromMap_Overrides(t *testing.T) {
	vars := requiredVars()
	vars["PORT"] = ":8080"
	vars["ENV"] = "prod"
	vars["OAUTH_SCOPES"] = "profile, email,profile,openid"
	vars["SESSION_IDLE_TIMEOUT"] = "90s"
	vars["SESSION_SLIDING"] = "false"
	vars["SESSION_STORE"] = "sqlite"
	vars["BASE_URL"] = "https://login.example.com/"

	c, err := config.NewFromMap(vars)
	require.NoError(t, err)

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "PROD", c.GetEnv())
	require.Equal(t, []string{"profile", "email", "openid"}, c.GetScopes())
	require.Equal(t, 90*time.Second, c.GetIdleTimeout())
	require.False(t, c.GetSlidingExpiry())
	require.Equal(t, config.StoreSQLite, c.GetSessionStore())
	require.Equal(t, "https://login.example.com", c.GetBaseURL())
	require.Equal(t, "https://login.example.com/auth/provider/callback", c.GetCallbackURL())
}

func TestNewFromMap_ExplicitCallbackURL(t *testing.T) {
	vars := requiredVars()
	vars["BASE_URL"] = "https://login.example.com"
	vars["OAUTH_CALLBACK_URL"] = "https://edge.example.com/cb"

	c, err := config.NewFromMap(vars)
	require.NoError(t, err)
	require.Equal(t, "https://edge.example.com/cb", c.GetCallbackURL())
}

func TestNewFromMap_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]string)
		message string
	}{
		{
			name:    "missing client id",
			mutate:  func(m map[string]string) { delete(m, "GOOGLE_CLIENT_ID") },
			message: "GOOGLE_CLIENT_ID",
		},
		{
			name:    "short session secret",
			mutate:  func(m map[string]string) { m["SESSION_SECRET"] = "short" },
			message: "SESSION_SECRET",
		},
		{
			name:    "unknown store",
			mutate:  func(m map[string]string) { m["SESSION_STORE"] = "memcached" },
			message: "SESSION_STORE",
		},
		{
			name:    "zero idle timeout",
			mutate:  func(m map[string]string) { m["SESSION_IDLE_TIMEOUT"] = "0s" },
			message: "SESSION_IDLE_TIMEOUT",
		},
		{
			name:    "zero state ttl",
			mutate:  func(m map[string]string) { m["OAUTH_STATE_TTL"] = "0s" },
			message: "OAUTH_STATE_TTL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := requiredVars()
			tt.mutate(vars)
			_, err := config.NewFromMap(vars)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.message)
		})
	}
}
