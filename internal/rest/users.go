package rest

import (
	"context"
	"net/http"

	"github.com/dmelo/supportdesk/internal/cache"
)

// UserInput is the create/update request body.
type UserInput struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Role     string `json:"role,omitempty"`
}

// ListUsers returns all users.
func (c *Client) ListUsers(ctx context.Context) ([]cache.Entity, error) {
	var users []cache.Entity
	if err := c.get(ctx, "/users/", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns a single user by id.
func (c *Client) GetUser(ctx context.Context, id string) (cache.Entity, error) {
	var user cache.Entity
	if err := c.get(ctx, "/users/"+id, &user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser creates a user.
func (c *Client) CreateUser(ctx context.Context, in UserInput) (cache.Entity, error) {
	var user cache.Entity
	if err := c.do(ctx, http.MethodPost, "/users/", in, &user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser applies a partial update to a user.
func (c *Client) UpdateUser(ctx context.Context, id string, in UserInput) (cache.Entity, error) {
	var user cache.Entity
	if err := c.do(ctx, http.MethodPatch, "/users/"+id, in, &user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+id, nil, nil)
}
