package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/makerhub/internal/errs"
	"github.com/and161185/makerhub/internal/model"
)

// TokenRepo implements TokenRepository using PostgreSQL.
type TokenRepo struct{ db *DB }

// NewTokenRepo constructs a refresh token repository.
func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

// Create stores the hash of a newly issued refresh token.
func (r *TokenRepo) Create(ctx context.Context, t *model.RefreshToken) error {
	const q = `INSERT INTO refresh_tokens (hash, user_id, expires_at) VALUES ($1, $2, $3)`
	_, err := r.db.Pool.Exec(ctx, q, t.Hash, t.UserID, t.ExpiresAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Consume atomically revokes an active token and returns its owner.
func (r *TokenRepo) Consume(ctx context.Context, hash string, now time.Time) (uuid.UUID, error) {
	const q = `
UPDATE refresh_tokens SET revoked=true
WHERE hash=$1 AND NOT revoked AND expires_at > $2
RETURNING user_id`
	var userID uuid.UUID
	if err := r.db.Pool.QueryRow(ctx, q, hash, now).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, errs.ErrNotFound
		}
		return uuid.Nil, err
	}
	return userID, nil
}

// Revoke marks the token revoked whether or not it is still active.
func (r *TokenRepo) Revoke(ctx context.Context, hash string) error {
	const q = `UPDATE refresh_tokens SET revoked=true WHERE hash=$1`
	_, err := r.db.Pool.Exec(ctx, q, hash)
	return err
}
