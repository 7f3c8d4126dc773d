// Package sessiontest holds the behaviour every sessions.Repo backend must share.
package sessiontest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SIR2425/go-oauth20/identity"
	apperrors "github.com/SIR2425/go-oauth20/internal/errors"
	"github.com/SIR2425/go-oauth20/sessions"
	"github.com/stretchr/testify/require"
)

// Factory builds a fresh, empty repo using the given policy and clock.
type Factory func(t *testing.T, policy sessions.Policy, now func() time.Time) sessions.Repo

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at a fixed, millisecond-aligned instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testPolicy = sessions.Policy{IdleTimeout: 30 * time.Minute, MaxAge: 24 * time.Hour}

// Run exercises the Repo contract against a backend.
func Run(t *testing.T, newRepo Factory) {
	t.Helper()
	ctx := context.Background()

	setup := func(t *testing.T) (sessions.Repo, *Clock) {
		t.Helper()
		clock := NewClock()
		repo := newRepo(t, testPolicy, clock.Now)
		t.Cleanup(func() { _ = repo.Close() })
		return repo, clock
	}

	t.Run("create returns an anonymous session", func(t *testing.T) {
		repo, clock := setup(t)

		s, err := repo.Create(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, s.ID)
		require.GreaterOrEqual(t, len(s.ID), 22) // >= 128 bits base64url
		require.False(t, s.Authenticated())
		require.Nil(t, s.Flow)
		require.True(t, s.CreatedAt.Equal(clock.Now()))

		got, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, s.ID, got.ID)
		require.False(t, got.Authenticated())
	})

	t.Run("session ids are unique", func(t *testing.T) {
		repo, _ := setup(t)

		seen := make(map[string]struct{})
		for i := 0; i < 50; i++ {
			s, err := repo.Create(ctx)
			require.NoError(t, err)
			_, dup := seen[s.ID]
			require.False(t, dup)
			seen[s.ID] = struct{}{}
		}
	})

	t.Run("get unknown session is absent without error", func(t *testing.T) {
		repo, _ := setup(t)

		got, err := repo.Get(ctx, "does-not-exist")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("attach principal", func(t *testing.T) {
		repo, _ := setup(t)
		s, err := repo.Create(ctx)
		require.NoError(t, err)

		p := identity.Principal{ID: "u123", DisplayName: "Ada"}
		require.NoError(t, repo.AttachPrincipal(ctx, s.ID, p))

		got, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.True(t, got.Authenticated())
		expanded, err := identity.Expand(got.Principal)
		require.NoError(t, err)
		require.Equal(t, p, expanded)
	})

	t.Run("attach principal to unknown session", func(t *testing.T) {
		repo, _ := setup(t)

		err := repo.AttachPrincipal(ctx, "does-not-exist", identity.Principal{ID: "u123"})
		require.ErrorIs(t, err, apperrors.ErrUnknownSession)
	})

	t.Run("begin and consume flow", func(t *testing.T) {
		repo, clock := setup(t)
		s, err := repo.Create(ctx)
		require.NoError(t, err)

		flow := sessions.AuthFlow{StateHash: "hash-1", CodeVerifier: "verifier-1", IssuedAt: clock.Now()}
		require.NoError(t, repo.BeginFlow(ctx, s.ID, flow))

		got, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Flow)
		require.Equal(t, "hash-1", got.Flow.StateHash)

		consumed, err := repo.ConsumeFlow(ctx, s.ID)
		require.NoError(t, err)
		require.NotNil(t, consumed)
		require.Equal(t, flow.StateHash, consumed.StateHash)
		require.Equal(t, flow.CodeVerifier, consumed.CodeVerifier)
		require.True(t, flow.IssuedAt.Equal(consumed.IssuedAt))

		again, err := repo.ConsumeFlow(ctx, s.ID)
		require.NoError(t, err)
		require.Nil(t, again)
	})

	t.Run("begin flow replaces the pending flow", func(t *testing.T) {
		repo, clock := setup(t)
		s, err := repo.Create(ctx)
		require.NoError(t, err)

		require.NoError(t, repo.BeginFlow(ctx, s.ID, sessions.AuthFlow{StateHash: "first", IssuedAt: clock.Now()}))
		require.NoError(t, repo.BeginFlow(ctx, s.ID, sessions.AuthFlow{StateHash: "second", IssuedAt: clock.Now()}))

		consumed, err := repo.ConsumeFlow(ctx, s.ID)
		require.NoError(t, err)
		require.Equal(t, "second", consumed.StateHash)
	})

	t.Run("flow operations on unknown session", func(t *testing.T) {
		repo, _ := setup(t)

		require.ErrorIs(t, repo.BeginFlow(ctx, "nope", sessions.AuthFlow{StateHash: "x"}), apperrors.ErrUnknownSession)
		_, err := repo.ConsumeFlow(ctx, "nope")
		require.ErrorIs(t, err, apperrors.ErrUnknownSession)
		require.ErrorIs(t, repo.Touch(ctx, "nope"), apperrors.ErrUnknownSession)
	})

	t.Run("concurrent consume hands the flow to one caller", func(t *testing.T) {
		repo, clock := setup(t)
		s, err := repo.Create(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.BeginFlow(ctx, s.ID, sessions.AuthFlow{StateHash: "h", IssuedAt: clock.Now()}))

		var winners atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				flow, err := repo.ConsumeFlow(ctx, s.ID)
				if err == nil && flow != nil {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), winners.Load())
	})

	t.Run("destroy is idempotent", func(t *testing.T) {
		repo, _ := setup(t)
		s, err := repo.Create(ctx)
		require.NoError(t, err)

		require.NoError(t, repo.Destroy(ctx, s.ID))
		require.NoError(t, repo.Destroy(ctx, s.ID))
		require.NoError(t, repo.Destroy(ctx, "never-created"))

		got, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("idle sessions expire", func(t *testing.T) {
		repo, clock := setup(t)
		s, err := repo.Create(ctx)
		require.NoError(t, err)

		clock.Advance(testPolicy.IdleTimeout - time.Second)
		got, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.NotNil(t, got)

		clock.Advance(2 * time.Second)
		got, err = repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.Nil(t, got)

		require.ErrorIs(t, repo.AttachPrincipal(ctx, s.ID, identity.Principal{ID: "u1"}), apperrors.ErrUnknownSession)
	})

	t.Run("touch slides the idle window", func(t *testing.T) {
		repo, clock := setup(t)
		s, err := repo.Create(ctx)
		require.NoError(t, err)

		clock.Advance(20 * time.Minute)
		require.NoError(t, repo.Touch(ctx, s.ID))
		clock.Advance(20 * time.Minute)

		got, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.True(t, got.LastAccessAt.After(got.CreatedAt))
	})

	t.Run("max age caps sliding sessions", func(t *testing.T) {
		repo, clock := setup(t)
		s, err := repo.Create(ctx)
		require.NoError(t, err)

		for elapsed := time.Duration(0); elapsed < testPolicy.MaxAge; elapsed += 20 * time.Minute {
			clock.Advance(20 * time.Minute)
			_ = repo.Touch(ctx, s.ID)
		}

		got, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("delete expired keeps live sessions", func(t *testing.T) {
		repo, clock := setup(t)
		old, err := repo.Create(ctx)
		require.NoError(t, err)

		clock.Advance(testPolicy.IdleTimeout + time.Minute)
		fresh, err := repo.Create(ctx)
		require.NoError(t, err)

		_, err = repo.DeleteExpired(ctx)
		require.NoError(t, err)

		got, err := repo.Get(ctx, old.ID)
		require.NoError(t, err)
		require.Nil(t, got)

		got, err = repo.Get(ctx, fresh.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
	})
}
