// Package redisrepo stores sessions in Redis so several instances can share them.
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SIR2425/go-oauth20/identity"
	apperrors "github.com/SIR2425/go-oauth20/internal/errors"
	"github.com/SIR2425/go-oauth20/sessions"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "session:"
	// maxTxRetries bounds optimistic-lock retries when two requests race on one session
	maxTxRetries = 10
)

var _ sessions.Repo = (*Repo)(nil)

// Repo is a Redis-backed sessions.Repo. Each session is one JSON value whose
// TTL follows the expiry policy; updates run under WATCH/MULTI.
type Repo struct {
	client *redis.Client
	policy sessions.Policy
	prefix string
	now    func() time.Time
}

// Option configures a Repo
type Option func(*Repo)

// WithClock overrides the time source used for the expiry policy
func WithClock(now func() time.Time) Option {
	return func(r *Repo) {
		if now != nil {
			r.now = now
		}
	}
}

// WithKeyPrefix namespaces the keys, default "session:"
func WithKeyPrefix(prefix string) Option {
	return func(r *Repo) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// Dial parses a redis:// URL and pings the server.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// New wraps client. The repo owns the client and closes it on Close.
func New(client *redis.Client, policy sessions.Policy, opts ...Option) *Repo {
	r := &Repo{
		client: client,
		policy: policy,
		prefix: defaultKeyPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type record struct {
	ID           string          `json:"id"`
	Principal    json.RawMessage `json:"principal,omitempty"`
	Flow         *flowRecord     `json:"flow,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	LastAccessAt time.Time       `json:"last_access_at"`
}

type flowRecord struct {
	StateHash    string    `json:"state_hash"`
	CodeVerifier string    `json:"code_verifier"`
	IssuedAt     time.Time `json:"issued_at"`
}

func (r *Repo) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *Repo) Create(ctx context.Context) (*sessions.Session, error) {
	id, err := sessions.NewID()
	if err != nil {
		return nil, err
	}
	now := r.now()
	s := &sessions.Session{ID: id, CreatedAt: now, LastAccessAt: now}

	data, err := encode(s)
	if err != nil {
		return nil, err
	}
	ok, err := r.client.SetNX(ctx, r.key(id), data, r.ttl(s, now)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisrepo: create session: %w", err)
	}
	if !ok {
		return nil, errors.New("redisrepo: session id collision")
	}
	return s, nil
}

func (r *Repo) Get(ctx context.Context, sessionID string) (*sessions.Session, error) {
	raw, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisrepo: get session: %w", err)
	}
	s, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if r.policy.Expired(s, r.now()) {
		return nil, nil
	}
	return s, nil
}

func (r *Repo) BeginFlow(ctx context.Context, sessionID string, flow sessions.AuthFlow) error {
	return r.update(ctx, sessionID, func(s *sessions.Session, now time.Time) {
		s.Flow = &flow
		s.LastAccessAt = now
	})
}

func (r *Repo) ConsumeFlow(ctx context.Context, sessionID string) (*sessions.AuthFlow, error) {
	var flow *sessions.AuthFlow
	err := r.update(ctx, sessionID, func(s *sessions.Session, _ time.Time) {
		flow = s.Flow
		s.Flow = nil
	})
	if err != nil {
		return nil, err
	}
	return flow, nil
}

func (r *Repo) AttachPrincipal(ctx context.Context, sessionID string, principal identity.Principal) error {
	data, err := identity.Serialize(principal)
	if err != nil {
		return err
	}
	return r.update(ctx, sessionID, func(s *sessions.Session, now time.Time) {
		s.Principal = data
		s.LastAccessAt = now
	})
}

func (r *Repo) Touch(ctx context.Context, sessionID string) error {
	return r.update(ctx, sessionID, func(s *sessions.Session, now time.Time) {
		s.LastAccessAt = now
	})
}

func (r *Repo) Destroy(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redisrepo: destroy session: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts keys when their TTL runs out.
func (r *Repo) DeleteExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func (r *Repo) Close() error {
	return r.client.Close()
}

// update applies fn to the stored session under an optimistic lock.
func (r *Repo) update(ctx context.Context, sessionID string, fn func(*sessions.Session, time.Time)) error {
	key := r.key(sessionID)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return apperrors.ErrUnknownSession
		}
		if err != nil {
			return err
		}
		s, err := decode(raw)
		if err != nil {
			return err
		}
		now := r.now()
		if r.policy.Expired(s, now) {
			return apperrors.ErrUnknownSession
		}

		fn(s, now)

		data, err := encode(s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl(s, now))
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, apperrors.ErrUnknownSession) {
			return fmt.Errorf("redisrepo: update session: %w", err)
		}
		return err
	}
	return fmt.Errorf("redisrepo: update session: %w", redis.TxFailedErr)
}

// ttl is the Redis expiry for s; zero means no expiry when the policy sets no limit.
func (r *Repo) ttl(s *sessions.Session, now time.Time) time.Duration {
	if r.policy.IdleTimeout <= 0 && r.policy.MaxAge <= 0 {
		return 0
	}
	remaining := r.policy.Remaining(s, now)
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}
	return remaining
}

func encode(s *sessions.Session) ([]byte, error) {
	rec := record{
		ID:           s.ID,
		Principal:    s.Principal,
		CreatedAt:    s.CreatedAt,
		LastAccessAt: s.LastAccessAt,
	}
	if s.Flow != nil {
		rec.Flow = &flowRecord{
			StateHash:    s.Flow.StateHash,
			CodeVerifier: s.Flow.CodeVerifier,
			IssuedAt:     s.Flow.IssuedAt,
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("redisrepo: marshal session: %w", err)
	}
	return data, nil
}

func decode(raw []byte) (*sessions.Session, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("redisrepo: unmarshal session: %w", err)
	}
	s := &sessions.Session{
		ID:           rec.ID,
		CreatedAt:    rec.CreatedAt,
		LastAccessAt: rec.LastAccessAt,
	}
	if len(rec.Principal) > 0 {
		s.Principal = []byte(rec.Principal)
	}
	if rec.Flow != nil {
		s.Flow = &sessions.AuthFlow{
			StateHash:    rec.Flow.StateHash,
			CodeVerifier: rec.Flow.CodeVerifier,
			IssuedAt:     rec.Flow.IssuedAt,
		}
	}
	return s, nil
}
