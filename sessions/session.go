package sessions

import (
	"time"
)

// Session is the server-side record behind the session cookie.
// A nil Principal means the session is not authenticated.
type Session struct {
	ID           string    // Opaque, random session identifier
	Principal    []byte    // Serialized identity.Principal, set by a successful callback
	Flow         *AuthFlow // Pending authorization request, cleared when the callback consumes it
	CreatedAt    time.Time // When the session was created
	LastAccessAt time.Time // Last authorized use, drives idle expiry
}

// AuthFlow is the per-session authorization request state issued at login start.
type AuthFlow struct {
	StateHash    string    // SHA-256 of the state parameter sent to the provider
	CodeVerifier string    // PKCE code verifier
	IssuedAt     time.Time // When the state was issued
}

// Authenticated reports whether a principal is attached.
func (s *Session) Authenticated() bool {
	return s != nil && len(s.Principal) > 0
}

// Clone returns a deep copy so callers can't mutate stored records.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Principal != nil {
		c.Principal = append([]byte(nil), s.Principal...)
	}
	if s.Flow != nil {
		flow := *s.Flow
		c.Flow = &flow
	}
	return &c
}

// Policy is the session expiry policy.
type Policy struct {
	IdleTimeout time.Duration // Maximum inactivity
	MaxAge      time.Duration // Absolute lifetime, zero disables it
}

// Expired reports whether s is eligible for removal at now.
func (p Policy) Expired(s *Session, now time.Time) bool {
	return p.Remaining(s, now) <= 0
}

// Remaining returns how long s stays valid after now.
func (p Policy) Remaining(s *Session, now time.Time) time.Duration {
	remaining := time.Duration(1<<63 - 1)
	if p.IdleTimeout > 0 {
		remaining = s.LastAccessAt.Add(p.IdleTimeout).Sub(now)
	}
	if p.MaxAge > 0 {
		if byAge := s.CreatedAt.Add(p.MaxAge).Sub(now); byAge < remaining {
			remaining = byAge
		}
	}
	return remaining
}
