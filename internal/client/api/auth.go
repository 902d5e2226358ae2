package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/and161185/makerhub/internal/model"
)

// Credentials is a username/password pair used once to obtain tokens.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of /auth/register and /auth/admin-create-user.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
	Bio      string `json:"bio,omitempty"`
	Role     string `json:"role,omitempty"` // honored only for admin-created users
}

// UserUpdate is a partial profile update; nil fields are left unchanged.
type UserUpdate struct {
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Bio      *string `json:"bio,omitempty"`
}

// Login exchanges form-encoded credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, username, password string) (model.TokenPair, error) {
	form := url.Values{"username": {username}, "password": {password}}
	return c.login(ctx, &request{
		method:      http.MethodPost,
		endpoint:    "/auth/login",
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		anonymous:   true,
	})
}

// LoginJSON is Login over the JSON endpoint.
func (c *Client) LoginJSON(ctx context.Context, creds Credentials) (model.TokenPair, error) {
	req, err := jsonRequest(http.MethodPost, "/auth/login-json", creds)
	if err != nil {
		return model.TokenPair{}, err
	}
	req.anonymous = true
	return c.login(ctx, req)
}

func (c *Client) login(ctx context.Context, req *request) (model.TokenPair, error) {
	var pair model.TokenPair
	if err := c.dispatch(ctx, req, &pair); err != nil {
		return model.TokenPair{}, err
	}
	if !pair.Complete() {
		return model.TokenPair{}, fmt.Errorf("api: login response without token pair")
	}
	if err := c.tokens.SetTokens(pair); err != nil {
		return pair, fmt.Errorf("api: store tokens: %w", err)
	}
	return pair, nil
}

// Register creates a regular account. It does not log in.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*model.APIResponse, error) {
	var out model.APIResponse
	if err := c.Post(ctx, "/auth/register", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminCreateUser creates an account on behalf of an admin.
func (c *Client) AdminCreateUser(ctx context.Context, in RegisterRequest) (*model.APIResponse, error) {
	var out model.APIResponse
	if err := c.Post(ctx, "/auth/admin-create-user", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.Get(ctx, "/users/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateMe applies a partial profile update.
func (c *Client) UpdateMe(ctx context.Context, in UserUpdate) (*model.User, error) {
	var u model.User
	if err := c.Put(ctx, "/users/me", in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout revokes the refresh token server-side (best effort) and always clears the store.
func (c *Client) Logout(ctx context.Context) error {
	if rt := c.tokens.RefreshToken(); rt != "" {
		req, err := jsonRequest(http.MethodPost, "/auth/logout", refreshBody{RefreshToken: rt})
		if err == nil {
			req.anonymous = true
			err = c.dispatch(ctx, req, nil)
		}
		if err != nil {
			c.log.Warn("server-side logout failed", zap.Error(err))
		}
	}
	return c.tokens.ClearTokens()
}

// Health calls the unauthenticated health endpoint.
func (c *Client) Health(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	req := &request{method: http.MethodGet, endpoint: "/health", anonymous: true}
	if err := c.dispatch(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}
