package rest

import (
	"context"
	"net/http"

	"github.com/dmelo/supportdesk/internal/cache"
)

// CommentInput is the create request body.
type CommentInput struct {
	TicketID string `json:"ticket_id"`
	Content  string `json:"content"`
}

// ListComments returns all comments. Scope filtering by ticket happens
// client-side in the reconciliation layer.
func (c *Client) ListComments(ctx context.Context) ([]cache.Entity, error) {
	var comments []cache.Entity
	if err := c.get(ctx, "/comments/", &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// ListTicketComments returns comments belonging to one ticket.
func (c *Client) ListTicketComments(ctx context.Context, ticketID string) ([]cache.Entity, error) {
	all, err := c.ListComments(ctx)
	if err != nil {
		return nil, err
	}
	var scoped []cache.Entity
	for _, comment := range all {
		if owner, _ := comment["ticket_id"].(string); owner == ticketID {
			scoped = append(scoped, comment)
		}
	}
	return scoped, nil
}

// CreateComment posts a comment on a ticket.
func (c *Client) CreateComment(ctx context.Context, in CommentInput) (cache.Entity, error) {
	var comment cache.Entity
	if err := c.do(ctx, http.MethodPost, "/comments/", in, &comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/comments/"+id, nil, nil)
}
