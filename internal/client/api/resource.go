package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/and161185/makerhub/internal/model"
)

// ListParams are the common listing filters. Zero values are omitted.
type ListParams struct {
	Page     int
	Size     int
	Status   string
	Featured *bool
	Search   string
	Role     string
	EventID  string
}

// Query encodes the params as URL query values.
func (p ListParams) Query() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Size > 0 {
		q.Set("size", strconv.Itoa(p.Size))
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.Featured != nil {
		q.Set("featured", strconv.FormatBool(*p.Featured))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Role != "" {
		q.Set("role", p.Role)
	}
	if p.EventID != "" {
		q.Set("event_id", p.EventID)
	}
	return q
}

// Resource is a CRUD collection mounted at a path, e.g. /blog.
type Resource[T any] struct {
	c    *Client
	path string
}

// NewResource binds a collection path to the client.
func NewResource[T any](c *Client, path string) *Resource[T] {
	return &Resource[T]{c: c, path: path}
}

// Entries returns the content collection of the given kind ("blog", "events", ...).
func (c *Client) Entries(kind string) *Resource[model.Entry] {
	return NewResource[model.Entry](c, "/"+url.PathEscape(kind))
}

// List fetches one page.
func (r *Resource[T]) List(ctx context.Context, p ListParams) (*model.Page[T], error) {
	endpoint := r.path
	if q := p.Query().Encode(); q != "" {
		endpoint += "?" + q
	}
	var page model.Page[T]
	if err := r.c.Get(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get fetches one item by id.
func (r *Resource[T]) Get(ctx context.Context, id string) (*T, error) {
	var out T
	if err := r.c.Get(ctx, r.path+"/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBySlug fetches one item by slug.
func (r *Resource[T]) GetBySlug(ctx context.Context, slug string) (*T, error) {
	var out T
	if err := r.c.Get(ctx, r.path+"/slug/"+url.PathEscape(slug), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create posts a new item.
func (r *Resource[T]) Create(ctx context.Context, in any) (*T, error) {
	var out T
	if err := r.c.Post(ctx, r.path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces an item.
func (r *Resource[T]) Update(ctx context.Context, id string, in any) (*T, error) {
	var out T
	if err := r.c.Put(ctx, r.path+"/"+url.PathEscape(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes an item.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.c.Delete(ctx, r.path+"/"+url.PathEscape(id), nil)
}
