// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/makerhub/internal/model"
)

// UserRepository provides access to accounts.
type UserRepository interface {
	// Create inserts a new user. Duplicate username or email yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByUsername loads a user by username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// UpdateProfile stores email, full name and bio.
	UpdateProfile(ctx context.Context, u *model.User) error
	// List returns one page of users ordered by username and the total matching count.
	List(ctx context.Context, f model.UserFilter) ([]model.User, int, error)
	// SetRole changes a user's role.
	SetRole(ctx context.Context, id uuid.UUID, role string) error
	// SetActive enables or disables sign-in for a user.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// Delete removes a user along with their refresh tokens.
	Delete(ctx context.Context, id uuid.UUID) error
}

// TokenRepository stores refresh token hashes.
type TokenRepository interface {
	// Create records a newly issued refresh token.
	Create(ctx context.Context, t *model.RefreshToken) error
	// Consume revokes an active token and returns its owner. Unknown, revoked or
	// expired tokens yield errs.ErrNotFound. Each token is consumed at most once.
	Consume(ctx context.Context, hash string, now time.Time) (uuid.UUID, error)
	// Revoke marks a token revoked. Idempotent.
	Revoke(ctx context.Context, hash string) error
}
