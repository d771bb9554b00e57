package rest

import (
	"context"
	"net/http"

	"github.com/dmelo/supportdesk/internal/cache"
)

// MonitorInput is the server-monitor create/update body.
type MonitorInput struct {
	Name     string `json:"name,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// ListMonitors returns all registered server monitors.
func (c *Client) ListMonitors(ctx context.Context) ([]cache.Entity, error) {
	var monitors []cache.Entity
	if err := c.get(ctx, "/monitoring/", &monitors); err != nil {
		return nil, err
	}
	return monitors, nil
}

// GetMonitorStatus returns the latest resource readings for one monitor.
func (c *Client) GetMonitorStatus(ctx context.Context, id string) (cache.Entity, error) {
	var monitorStatus cache.Entity
	if err := c.get(ctx, "/monitoring/"+id+"/status", &monitorStatus); err != nil {
		return nil, err
	}
	return monitorStatus, nil
}

// CreateMonitor registers a server monitor.
func (c *Client) CreateMonitor(ctx context.Context, in MonitorInput) (cache.Entity, error) {
	var monitor cache.Entity
	if err := c.do(ctx, http.MethodPost, "/monitoring/", in, &monitor); err != nil {
		return nil, err
	}
	return monitor, nil
}

// UpdateMonitor applies a partial update to a server monitor.
func (c *Client) UpdateMonitor(ctx context.Context, id string, in MonitorInput) (cache.Entity, error) {
	var monitor cache.Entity
	if err := c.do(ctx, http.MethodPut, "/monitoring/"+id, in, &monitor); err != nil {
		return nil, err
	}
	return monitor, nil
}

// DeleteMonitor removes a server monitor.
func (c *Client) DeleteMonitor(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/monitoring/"+id, nil, nil)
}
