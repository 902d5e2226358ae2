package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/makerhub/internal/model"
)

// AdmitFunc decides whether a registration may be added to event, which
// already has confirmed sign-ups. It runs while the event row is locked.
type AdmitFunc func(event *model.Entry, confirmed int) error

// RegistrationRepository stores event registrations.
type RegistrationRepository interface {
	// Create inserts r if admit accepts it. A missing event yields errs.ErrNotFound,
	// a second registration with the same email errs.ErrAlreadyExists.
	Create(ctx context.Context, r *model.Registration, admit AdmitFunc) error
	// List returns one page, newest first, with event summaries, and the total matching count.
	List(ctx context.Context, f model.RegistrationFilter) ([]model.Registration, int, error)
	// SetStatus changes a registration's status.
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	// Delete removes a registration.
	Delete(ctx context.Context, id uuid.UUID) error
}
