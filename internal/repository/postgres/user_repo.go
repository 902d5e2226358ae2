package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/makerhub/internal/errs"
	"github.com/and161185/makerhub/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, username, email, full_name, bio, role, is_active, pwd_hash, created_at`

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, username, email, full_name, bio, role, is_active, pwd_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Username, u.Email, u.FullName, u.Bio, u.Role, u.IsActive, u.PwdHash)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx, q, arg))
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.Bio, &u.Role, &u.IsActive, &u.PwdHash, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpdateProfile updates the editable profile columns.
func (r *UserRepo) UpdateProfile(ctx context.Context, u *model.User) error {
	const q = `UPDATE users SET email=$2, full_name=$3, bio=$4 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, u.ID, u.Email, u.FullName, u.Bio)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// List selects a page of users matching f.
func (r *UserRepo) List(ctx context.Context, f model.UserFilter) ([]model.User, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Role != "" {
		args = append(args, f.Role)
		where = append(where, fmt.Sprintf("role=$%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, escapeLike(f.Search))
		n := len(args)
		where = append(where, fmt.Sprintf(
			`(username ILIKE '%%' || $%[1]d || '%%' ESCAPE '\' OR email ILIKE '%%' || $%[1]d || '%%' ESCAPE '\' OR full_name ILIKE '%%' || $%[1]d || '%%' ESCAPE '\')`, n))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM users`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Size, (f.Page-1)*f.Size)
	q := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY username LIMIT $%d OFFSET $%d`,
		userColumns, cond, len(args)-1, len(args))
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.User, 0, f.Size)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

// SetRole updates the role column.
func (r *UserRepo) SetRole(ctx context.Context, id uuid.UUID, role string) error {
	return r.db.execOne(ctx, `UPDATE users SET role=$2 WHERE id=$1`, id, role)
}

// SetActive updates the is_active column.
func (r *UserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.execOne(ctx, `UPDATE users SET is_active=$2 WHERE id=$1`, id, active)
}

// Delete removes the user row; refresh tokens cascade.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.execOne(ctx, `DELETE FROM users WHERE id=$1`, id)
}
