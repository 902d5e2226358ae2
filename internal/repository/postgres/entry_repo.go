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

// EntryRepo implements EntryRepository using PostgreSQL.
type EntryRepo struct{ db *DB }

// NewEntryRepo constructs an entry repository.
func NewEntryRepo(db *DB) *EntryRepo { return &EntryRepo{db: db} }

const entryColumns = `id, kind, slug, title, status, featured, data, ver, created_by, created_at, updated_at`

// Create inserts a new entry with ver=1 and fills in the timestamps.
func (r *EntryRepo) Create(ctx context.Context, e *model.Entry) error {
	const q = `
INSERT INTO entries (id, kind, slug, title, status, featured, data, ver, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8)
RETURNING created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q, e.ID, e.Kind, e.Slug, e.Title, e.Status, e.Featured, e.Data, e.CreatedBy).
		Scan(&e.CreatedAt, &e.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	e.Ver = 1
	return nil
}

const lockEntry = `SELECT ver FROM entries WHERE id=$1 AND kind=$2 AND NOT deleted FOR UPDATE`

// lockVersion row-locks a live entry and returns its version.
func lockVersion(ctx context.Context, tx pgx.Tx, kind string, id uuid.UUID) (int64, error) {
	var ver int64
	err := tx.QueryRow(ctx, lockEntry, id, kind).Scan(&ver)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errs.ErrNotFound
	}
	return ver, err
}

// Update writes the entry fields under optimistic concurrency.
func (r *EntryRepo) Update(ctx context.Context, e *model.Entry, baseVer int64) (int64, error) {
	const upd = `
UPDATE entries SET slug=$3, title=$4, status=$5, featured=$6, data=$7, ver=$8, updated_at=now()
WHERE id=$1 AND kind=$2`

	var newVer int64
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		curVer, err := lockVersion(ctx, tx, e.Kind, e.ID)
		if err != nil {
			return err
		}
		if curVer != baseVer {
			return fmt.Errorf("entry %s at ver %d, base %d: %w", e.ID, curVer, baseVer, errs.ErrVersionConflict)
		}
		newVer = curVer + 1
		_, err = tx.Exec(ctx, upd, e.ID, e.Kind, e.Slug, e.Title, e.Status, e.Featured, e.Data, newVer)
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return newVer, nil
}

// Delete tombstones an entry and bumps its version. baseVer 0 skips the version check.
func (r *EntryRepo) Delete(ctx context.Context, kind string, id uuid.UUID, baseVer int64) (int64, error) {
	const upd = `UPDATE entries SET deleted=true, ver=$3, updated_at=now() WHERE id=$1 AND kind=$2`

	var newVer int64
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		curVer, err := lockVersion(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		if baseVer != 0 && curVer != baseVer {
			return errs.ErrVersionConflict
		}
		newVer = curVer + 1
		_, err = tx.Exec(ctx, upd, id, kind, newVer)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newVer, nil
}

// Get returns a live entry by id.
func (r *EntryRepo) Get(ctx context.Context, kind string, id uuid.UUID) (*model.Entry, error) {
	const q = `SELECT ` + entryColumns + ` FROM entries WHERE kind=$1 AND id=$2 AND NOT deleted`
	return scanEntry(r.db.Pool.QueryRow(ctx, q, kind, id))
}

// GetBySlug returns a live entry by slug.
func (r *EntryRepo) GetBySlug(ctx context.Context, kind, slug string) (*model.Entry, error) {
	const q = `SELECT ` + entryColumns + ` FROM entries WHERE kind=$1 AND slug=$2 AND NOT deleted`
	return scanEntry(r.db.Pool.QueryRow(ctx, q, kind, slug))
}

// List returns a page of live entries, newest first, and the total count for the filter.
func (r *EntryRepo) List(ctx context.Context, f model.EntryFilter) ([]model.Entry, int, error) {
	where := []string{"kind=$1", "NOT deleted"}
	args := []any{f.Kind}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if f.Featured != nil {
		args = append(args, *f.Featured)
		where = append(where, fmt.Sprintf("featured=$%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, escapeLike(f.Search))
		where = append(where, fmt.Sprintf(`title ILIKE '%%' || $%d || '%%' ESCAPE '\'`, len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM entries WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Size, (f.Page-1)*f.Size)
	q := fmt.Sprintf(`SELECT %s FROM entries WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		entryColumns, cond, len(args)-1, len(args))
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Entry, 0, f.Size)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

func scanEntry(row pgx.Row) (*model.Entry, error) {
	var e model.Entry
	err := row.Scan(&e.ID, &e.Kind, &e.Slug, &e.Title, &e.Status, &e.Featured, &e.Data, &e.Ver,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}
