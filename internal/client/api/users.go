package api

import (
	"context"
	"net/url"

	"github.com/and161185/makerhub/internal/model"
)

// Users returns the account collection. Listing, updating and deleting are admin-only.
func (c *Client) Users() *Resource[model.User] {
	return NewResource[model.User](c, "/users")
}

// SetUserRole changes the role of an account.
func (c *Client) SetUserRole(ctx context.Context, id, role string) (*model.APIResponse, error) {
	var out model.APIResponse
	if err := c.Put(ctx, "/users/"+url.PathEscape(id)+"/role", map[string]string{"role": role}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetUserActive activates or deactivates an account.
func (c *Client) SetUserActive(ctx context.Context, id string, active bool) (*model.APIResponse, error) {
	var out model.APIResponse
	if err := c.Put(ctx, "/users/"+url.PathEscape(id)+"/status", map[string]bool{"is_active": active}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
