package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/makerhub/internal/model"
)

// EntryRepository provides versioned access to content entries.
type EntryRepository interface {
	// Create inserts an entry at version 1. A live entry with the same kind and slug yields errs.ErrAlreadyExists.
	Create(ctx context.Context, e *model.Entry) error

	// Update replaces an entry's fields if its version equals baseVer, returning the new version.
	Update(ctx context.Context, e *model.Entry, baseVer int64) (int64, error)

	// Delete sets a tombstone (ver++). baseVer 0 skips the version check.
	Delete(ctx context.Context, kind string, id uuid.UUID, baseVer int64) (int64, error)

	// Get returns a live entry by ID.
	Get(ctx context.Context, kind string, id uuid.UUID) (*model.Entry, error)

	// GetBySlug returns a live entry by slug.
	GetBySlug(ctx context.Context, kind, slug string) (*model.Entry, error)

	// List returns one page of live entries and the total matching count.
	List(ctx context.Context, f model.EntryFilter) ([]model.Entry, int, error)
}
