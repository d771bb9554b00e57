package rest

import (
	"context"
	"net/http"

	"github.com/dmelo/supportdesk/internal/cache"
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates against the backend. The session cookie lands in the
// client's jar; persist it with Cookies().
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/login", Credentials{Email: email, Password: password}, nil)
}

// Logout invalidates the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (cache.Entity, error) {
	var user cache.Entity
	if err := c.get(ctx, "/auth/me", &user); err != nil {
		return nil, err
	}
	return user, nil
}
