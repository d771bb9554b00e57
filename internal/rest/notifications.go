package rest

import (
	"context"
	"net/http"

	"github.com/dmelo/supportdesk/internal/cache"
)

// ListNotifications returns the session user's notifications, newest first.
// This is also the polling fallback's re-fetch: the result is an
// authoritative snapshot, not a delta.
func (c *Client) ListNotifications(ctx context.Context) ([]cache.Entity, error) {
	var notifications []cache.Entity
	if err := c.get(ctx, "/notifications/", &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkNotificationRead marks one notification as read. Callers flip the
// local is_read flag only after this call succeeds.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/notifications/"+id+"/read", nil, nil)
}

// DeleteNotification removes a notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notifications/"+id, nil, nil)
}

// WebhookConfig is the user's outbound webhook setting.
type WebhookConfig struct {
	WebhookURL string `json:"webhook_url"`
}

// GetWebhookURL returns the configured webhook URL for the session user.
func (c *Client) GetWebhookURL(ctx context.Context) (WebhookConfig, error) {
	var cfg WebhookConfig
	err := c.get(ctx, "/users/me/webhook", &cfg)
	return cfg, err
}

// SetWebhookURL updates the webhook URL for the session user.
func (c *Client) SetWebhookURL(ctx context.Context, url string) error {
	return c.do(ctx, http.MethodPut, "/users/me/webhook", WebhookConfig{WebhookURL: url}, nil)
}

// TestWebhook asks the backend to fire a test event at the configured URL.
func (c *Client) TestWebhook(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/notifications/webhooks/test", nil, nil)
}
