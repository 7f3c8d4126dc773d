// Package sqliterepo provides a SQLite-backed sessions.Repo that survives restarts.
package sqliterepo

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SIR2425/go-oauth20/identity"
	apperrors "github.com/SIR2425/go-oauth20/internal/errors"
	"github.com/SIR2425/go-oauth20/sessions"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

var _ sessions.Repo = (*Repo)(nil)

// Repo persists sessions in SQLite. All access goes through a single
// connection, so each transaction sees a consistent session row.
type Repo struct {
	db     *sql.DB
	policy sessions.Policy
	now    func() time.Time
}

// Option configures a Repo
type Option func(*Repo)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Repo) {
		if now != nil {
			r.now = now
		}
	}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, policy sessions.Policy, opts ...Option) (*Repo, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqliterepo: storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqliterepo: create data dir: %w", err)
		}
	}

	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqliterepo: open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqliterepo: ping db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqliterepo: apply schema: %w", err)
	}

	r := &Repo{db: db, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Repo) clock() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

func (r *Repo) Create(ctx context.Context) (*sessions.Session, error) {
	id, err := sessions.NewID()
	if err != nil {
		return nil, err
	}
	now := r.clock()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, last_access_at) VALUES (?, ?, ?)`,
		id, toMillis(now), toMillis(now),
	)
	if err != nil {
		return nil, fmt.Errorf("sqliterepo: create session: %w", err)
	}
	return &sessions.Session{ID: id, CreatedAt: now, LastAccessAt: now}, nil
}

func (r *Repo) Get(ctx context.Context, sessionID string) (*sessions.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, selectSession, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqliterepo: get session: %w", err)
	}
	if r.policy.Expired(s, r.clock()) {
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
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("sqliterepo: destroy session: %w", err)
	}
	return nil
}

func (r *Repo) DeleteExpired(ctx context.Context) (int, error) {
	now := r.clock()
	var (
		clauses []string
		args    []any
	)
	if r.policy.IdleTimeout > 0 {
		clauses = append(clauses, "last_access_at <= ?")
		args = append(args, toMillis(now.Add(-r.policy.IdleTimeout)))
	}
	if r.policy.MaxAge > 0 {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, toMillis(now.Add(-r.policy.MaxAge)))
	}
	if len(clauses) == 0 {
		return 0, nil
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE `+strings.Join(clauses, " OR "), args...)
	if err != nil {
		return 0, fmt.Errorf("sqliterepo: delete expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqliterepo: delete expired: %w", err)
	}
	return int(n), nil
}

// Close flushes and closes the database.
func (r *Repo) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

const selectSession = `SELECT id, principal, state_hash, code_verifier, flow_issued_at, created_at, last_access_at
FROM sessions WHERE id = ?`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*sessions.Session, error) {
	var (
		s            sessions.Session
		principal    []byte
		stateHash    sql.NullString
		codeVerifier sql.NullString
		flowIssuedAt sql.NullInt64
		createdAt    int64
		lastAccessAt int64
	)
	if err := row.Scan(&s.ID, &principal, &stateHash, &codeVerifier, &flowIssuedAt, &createdAt, &lastAccessAt); err != nil {
		return nil, err
	}
	if len(principal) > 0 {
		s.Principal = principal
	}
	if stateHash.Valid {
		s.Flow = &sessions.AuthFlow{
			StateHash:    stateHash.String,
			CodeVerifier: codeVerifier.String,
			IssuedAt:     fromMillis(flowIssuedAt.Int64),
		}
	}
	s.CreatedAt = fromMillis(createdAt)
	s.LastAccessAt = fromMillis(lastAccessAt)
	return &s, nil
}

func (r *Repo) update(ctx context.Context, sessionID string, fn func(*sessions.Session, time.Time)) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqliterepo: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	s, err := scanSession(tx.QueryRowContext(ctx, selectSession, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrUnknownSession
	}
	if err != nil {
		return fmt.Errorf("sqliterepo: load session: %w", err)
	}
	now := r.clock()
	if r.policy.Expired(s, now) {
		return apperrors.ErrUnknownSession
	}

	fn(s, now)

	var (
		stateHash    sql.NullString
		codeVerifier sql.NullString
		flowIssuedAt sql.NullInt64
	)
	if s.Flow != nil {
		stateHash = sql.NullString{String: s.Flow.StateHash, Valid: true}
		codeVerifier = sql.NullString{String: s.Flow.CodeVerifier, Valid: true}
		flowIssuedAt = sql.NullInt64{Int64: toMillis(s.Flow.IssuedAt), Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE sessions
		 SET principal = ?, state_hash = ?, code_verifier = ?, flow_issued_at = ?, last_access_at = ?
		 WHERE id = ?`,
		s.Principal, stateHash, codeVerifier, flowIssuedAt, toMillis(s.LastAccessAt), sessionID,
	)
	if err != nil {
		return fmt.Errorf("sqliterepo: update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqliterepo: commit: %w", err)
	}
	return nil
}
