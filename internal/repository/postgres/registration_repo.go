package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/makerhub/internal/errs"
	"github.com/and161185/makerhub/internal/model"
	"github.com/and161185/makerhub/internal/repository"
)

// RegistrationRepo implements RegistrationRepository using PostgreSQL.
type RegistrationRepo struct{ db *DB }

// NewRegistrationRepo constructs a registration repository.
func NewRegistrationRepo(db *DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

const (
	lockEvent      = `SELECT ` + entryColumns + ` FROM entries WHERE id=$1 AND kind='events' AND NOT deleted FOR UPDATE`
	countConfirmed = `SELECT count(*) FROM event_registrations WHERE event_id=$1 AND status='confirmed'`
)

// Create admits and inserts a registration in one transaction. The event row
// lock serializes concurrent sign-ups so capacity checks see every confirmed one.
func (r *RegistrationRepo) Create(ctx context.Context, reg *model.Registration, admit repository.AdmitFunc) error {
	const ins = `
INSERT INTO event_registrations (id, event_id, name, email, phone, organization, experience_level,
    interests, dietary_restrictions, special_requirements, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING created_at`

	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		ev, err := scanEntry(tx.QueryRow(ctx, lockEvent, reg.EventID))
		if err != nil {
			return err
		}
		var confirmed int
		if err := tx.QueryRow(ctx, countConfirmed, reg.EventID).Scan(&confirmed); err != nil {
			return err
		}
		if err := admit(ev, confirmed); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, ins, reg.ID, reg.EventID, reg.Name, reg.Email, reg.Phone, reg.Organization,
			reg.ExperienceLevel, reg.Interests, reg.DietaryRestrictions, reg.SpecialRequirements, reg.Status).
			Scan(&reg.CreatedAt)
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return err
	})
}

// List returns a page of registrations joined with their event.
func (r *RegistrationRepo) List(ctx context.Context, f model.RegistrationFilter) ([]model.Registration, int, error) {
	var (
		where []string
		args  []any
	)
	if f.EventID != nil {
		args = append(args, *f.EventID)
		where = append(where, fmt.Sprintf("r.event_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("r.status=$%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, escapeLike(f.Search))
		where = append(where, fmt.Sprintf(
			`(r.name ILIKE '%%' || $%[1]d || '%%' ESCAPE '\' OR r.email ILIKE '%%' || $%[1]d || '%%' ESCAPE '\' OR r.organization ILIKE '%%' || $%[1]d || '%%' ESCAPE '\')`,
			len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM event_registrations r`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Size, (f.Page-1)*f.Size)
	q := fmt.Sprintf(`
SELECT r.id, r.event_id, r.name, r.email, r.phone, r.organization, r.experience_level, r.interests,
    r.dietary_restrictions, r.special_requirements, r.status, r.created_at,
    e.title, coalesce(e.data->>'start_date', ''), coalesce(e.data->>'location', '')
FROM event_registrations r JOIN entries e ON e.id = r.event_id%s
ORDER BY r.created_at DESC, r.id LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args))
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Registration, 0, f.Size)
	for rows.Next() {
		var (
			reg model.Registration
			ev  model.RegistrationEvent
		)
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.Name, &reg.Email, &reg.Phone, &reg.Organization,
			&reg.ExperienceLevel, &reg.Interests, &reg.DietaryRestrictions, &reg.SpecialRequirements,
			&reg.Status, &reg.CreatedAt, &ev.Title, &ev.StartDate, &ev.Location); err != nil {
			return nil, 0, err
		}
		ev.ID = reg.EventID
		reg.Event = &ev
		out = append(out, reg)
	}
	return out, total, rows.Err()
}

// SetStatus updates the status column.
func (r *RegistrationRepo) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.execOne(ctx, `UPDATE event_registrations SET status=$2 WHERE id=$1`, id, status)
}

// Delete removes the registration row.
func (r *RegistrationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.execOne(ctx, `DELETE FROM event_registrations WHERE id=$1`, id)
}
