package rest

import (
	"context"
	"net/http"

	"github.com/dmelo/supportdesk/internal/cache"
)

// GetSettings returns the session user's settings record.
func (c *Client) GetSettings(ctx context.Context) (cache.Entity, error) {
	var settings cache.Entity
	if err := c.get(ctx, "/settings/", &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateSettings applies a partial settings update.
func (c *Client) UpdateSettings(ctx context.Context, settings cache.Entity) (cache.Entity, error) {
	var updated cache.Entity
	if err := c.do(ctx, http.MethodPut, "/settings/", settings, &updated); err != nil {
		return nil, err
	}
	return updated, nil
}
