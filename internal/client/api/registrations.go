package api

import (
	"context"
	"net/url"

	"github.com/and161185/makerhub/internal/model"
)

const registrationsPath = "/event-registrations"

// Registrations returns the admin view of event sign-ups.
func (c *Client) Registrations() *Resource[model.Registration] {
	return NewResource[model.Registration](c, registrationsPath+"/registrations")
}

// RegisterForEvent signs up for an event. It works without a session.
func (c *Client) RegisterForEvent(ctx context.Context, eventID string, in model.RegistrationInput) (*model.Registration, error) {
	var out model.Registration
	if err := c.Post(ctx, registrationsPath+"/"+url.PathEscape(eventID)+"/register", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetRegistrationStatus moves a registration to confirmed, cancelled or attended.
func (c *Client) SetRegistrationStatus(ctx context.Context, id, status string) (*model.APIResponse, error) {
	var out model.APIResponse
	path := registrationsPath + "/registrations/" + url.PathEscape(id) + "/status"
	if err := c.Put(ctx, path, map[string]string{"status": status}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
