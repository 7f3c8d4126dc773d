//go:build integration

package redisrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/SIR2425/go-oauth20/sessions"
	"github.com/SIR2425/go-oauth20/sessions/redisrepo"
	"github.com/SIR2425/go-oauth20/sessions/sessiontest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return url
}

func TestRepo_Conformance(t *testing.T) {
	url := startRedis(t)

	sessiontest.Run(t, func(t *testing.T, policy sessions.Policy, now func() time.Time) sessions.Repo {
		client, err := redisrepo.Dial(context.Background(), url)
		require.NoError(t, err)
		return redisrepo.New(client, policy,
			redisrepo.WithClock(now),
			redisrepo.WithKeyPrefix("test:"+uuid.NewString()+":"),
		)
	})
}

func TestRepo_KeyExpiresWithPolicy(t *testing.T) {
	url := startRedis(t)
	ctx := context.Background()

	client, err := redisrepo.Dial(ctx, url)
	require.NoError(t, err)
	repo := redisrepo.New(client, sessions.Policy{IdleTimeout: time.Second})
	defer repo.Close()

	s, err := repo.Create(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := client.Exists(ctx, "session:"+s.ID).Result()
		return err == nil && n == 0
	}, 5*time.Second, 100*time.Millisecond)
}
