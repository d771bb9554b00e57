package rest

import (
	"context"
	"net/http"

	"github.com/dmelo/supportdesk/internal/cache"
)

// TicketInput is the create/update request body. Zero-valued fields are
// omitted so partial updates only touch what the caller set.
type TicketInput struct {
	Subject     string `json:"subject,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
	RequesterID string `json:"requester_id,omitempty"`
	AssigneeID  string `json:"assignee_id,omitempty"`
}

// ListTickets returns all tickets visible to the session.
func (c *Client) ListTickets(ctx context.Context) ([]cache.Entity, error) {
	var tickets []cache.Entity
	if err := c.get(ctx, "/tickets/", &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// GetTicket returns a single ticket by id.
func (c *Client) GetTicket(ctx context.Context, id string) (cache.Entity, error) {
	var ticket cache.Entity
	if err := c.get(ctx, "/tickets/"+id, &ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// CreateTicket creates a ticket and returns the server record.
func (c *Client) CreateTicket(ctx context.Context, in TicketInput) (cache.Entity, error) {
	var ticket cache.Entity
	if err := c.do(ctx, http.MethodPost, "/tickets/", in, &ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// UpdateTicket applies a partial update to a ticket.
func (c *Client) UpdateTicket(ctx context.Context, id string, in TicketInput) (cache.Entity, error) {
	var ticket cache.Entity
	if err := c.do(ctx, http.MethodPatch, "/tickets/"+id, in, &ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// DeleteTicket removes a ticket.
func (c *Client) DeleteTicket(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tickets/"+id, nil, nil)
}
