package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/SIR2425/go-oauth20/identity"
	apperrors "github.com/SIR2425/go-oauth20/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory Repo
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	policy   Policy
	now      func() time.Time
}

// InMemoryOption configures an InMemoryRepo
type InMemoryOption func(*InMemoryRepo)

// WithClock overrides the time source
func WithClock(now func() time.Time) InMemoryOption {
	return func(r *InMemoryRepo) {
		if now != nil {
			r.now = now
		}
	}
}

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo(policy Policy, opts ...InMemoryOption) *InMemoryRepo {
	r := &InMemoryRepo{
		sessions: make(map[string]*Session),
		policy:   policy,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *InMemoryRepo) Create(ctx context.Context) (*Session, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s := &Session{ID: id, CreatedAt: now, LastAccessAt: now}
	r.sessions[id] = s
	return s.Clone(), nil
}

func (r *InMemoryRepo) Get(ctx context.Context, sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.live(sessionID)
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (r *InMemoryRepo) BeginFlow(ctx context.Context, sessionID string, flow AuthFlow) error {
	return r.update(sessionID, func(s *Session) {
		s.Flow = &flow
		s.LastAccessAt = r.now()
	})
}

func (r *InMemoryRepo) ConsumeFlow(ctx context.Context, sessionID string) (*AuthFlow, error) {
	var flow *AuthFlow
	err := r.update(sessionID, func(s *Session) {
		flow = s.Flow
		s.Flow = nil
	})
	return flow, err
}

func (r *InMemoryRepo) AttachPrincipal(ctx context.Context, sessionID string, principal identity.Principal) error {
	data, err := identity.Serialize(principal)
	if err != nil {
		return err
	}
	return r.update(sessionID, func(s *Session) {
		s.Principal = data
		s.LastAccessAt = r.now()
	})
}

func (r *InMemoryRepo) Touch(ctx context.Context, sessionID string) error {
	return r.update(sessionID, func(s *Session) {
		s.LastAccessAt = r.now()
	})
}

func (r *InMemoryRepo) Destroy(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

func (r *InMemoryRepo) DeleteExpired(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, s := range r.sessions {
		if r.policy.Expired(s, now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (r *InMemoryRepo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions = make(map[string]*Session)
	return nil
}

// live returns the stored session if it exists and has not expired.
// Callers hold the lock.
func (r *InMemoryRepo) live(sessionID string) (*Session, bool) {
	s, ok := r.sessions[sessionID]
	if !ok || r.policy.Expired(s, r.now()) {
		return nil, false
	}
	return s, true
}

func (r *InMemoryRepo) update(sessionID string, fn func(*Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.live(sessionID)
	if !ok {
		delete(r.sessions, sessionID)
		return apperrors.ErrUnknownSession
	}
	fn(s)
	return nil
}
