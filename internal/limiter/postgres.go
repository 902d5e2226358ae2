package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool the limiter needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG is a PostgreSQL-backed limiter with sliding window and lockout.
type PG struct {
	q   Querier
	s   Settings
	now func() time.Time
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(q Querier, s Settings) *PG {
	return &PG{q: q, s: s, now: time.Now}
}

// Allow reports the remaining block for (username, client), or zero.
func (l *PG) Allow(ctx context.Context, username string, client []byte) (time.Duration, error) {
	const q = `SELECT blocked_until FROM auth_limiter WHERE username=$1 AND client_hash=$2`
	var blockedUntil time.Time
	err := l.q.QueryRow(ctx, q, username, client).Scan(&blockedUntil)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, err
	}
	if wait := blockedUntil.Sub(l.now()); wait > 0 {
		return wait, nil
	}
	return 0, nil
}

// Success resets counters for (username, client).
func (l *PG) Success(ctx context.Context, username string, client []byte) error {
	const q = `
INSERT INTO auth_limiter (username, client_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 0, 'epoch', $3)
ON CONFLICT (username, client_hash)
DO UPDATE SET fail_count=0, blocked_until='epoch', updated_at=$3`
	_, err := l.q.Exec(ctx, q, username, client, l.now())
	return err
}

// Failure records a failed attempt and blocks once MaxFails is reached within Window.
func (l *PG) Failure(ctx context.Context, username string, client []byte) (time.Duration, error) {
	now := l.now()

	const q = `
INSERT INTO auth_limiter (username, client_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, 'epoch', $3)
ON CONFLICT (username, client_hash) DO UPDATE SET
  fail_count = CASE WHEN $3 - auth_limiter.updated_at > $4::interval THEN 1 ELSE auth_limiter.fail_count + 1 END,
  updated_at = $3
RETURNING fail_count`
	var fails int
	if err := l.q.QueryRow(ctx, q, username, client, now, l.s.Window).Scan(&fails); err != nil {
		return 0, err
	}
	if l.s.MaxFails <= 0 || fails < l.s.MaxFails {
		return 0, nil
	}

	const upd = `UPDATE auth_limiter SET blocked_until=$3 WHERE username=$1 AND client_hash=$2`
	if _, err := l.q.Exec(ctx, upd, username, client, now.Add(l.s.Block)); err != nil {
		return 0, err
	}
	return l.s.Block, nil
}
