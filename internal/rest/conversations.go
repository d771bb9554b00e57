package rest

import (
	"context"
	"net/http"

	"github.com/dmelo/supportdesk/internal/cache"
)

// ConversationInput is the create request body.
type ConversationInput struct {
	Title          string   `json:"title,omitempty"`
	ParticipantIDs []string `json:"participant_ids,omitempty"`
}

// MessageInput is the send-message request body. ClientID carries the
// locally generated id used to match the optimistic entry against the
// server echo.
type MessageInput struct {
	Content  string `json:"content"`
	ClientID string `json:"client_id,omitempty"`
}

// ListConversations returns the session user's conversations.
func (c *Client) ListConversations(ctx context.Context) ([]cache.Entity, error) {
	var conversations []cache.Entity
	if err := c.get(ctx, "/conversations/", &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// GetConversation returns one conversation by id.
func (c *Client) GetConversation(ctx context.Context, id string) (cache.Entity, error) {
	var conversation cache.Entity
	if err := c.get(ctx, "/conversations/"+id, &conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

// CreateConversation starts a conversation.
func (c *Client) CreateConversation(ctx context.Context, in ConversationInput) (cache.Entity, error) {
	var conversation cache.Entity
	if err := c.do(ctx, http.MethodPost, "/conversations/", in, &conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/conversations/"+id, nil, nil)
}

// ListMessages returns a conversation's messages, oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]cache.Entity, error) {
	var messages []cache.Entity
	if err := c.get(ctx, "/conversations/"+conversationID+"/messages", &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts a message and returns the server record.
func (c *Client) SendMessage(ctx context.Context, conversationID string, in MessageInput) (cache.Entity, error) {
	var message cache.Entity
	if err := c.do(ctx, http.MethodPost, "/conversations/"+conversationID+"/messages", in, &message); err != nil {
		return nil, err
	}
	return message, nil
}

// MarkConversationRead marks all messages in a conversation as read.
func (c *Client) MarkConversationRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "/conversations/"+conversationID+"/read", nil, nil)
}

// MarkMessageRead marks a single message as read.
func (c *Client) MarkMessageRead(ctx context.Context, conversationID, messageID string) error {
	return c.do(ctx, http.MethodPost, "/conversations/"+conversationID+"/messages/"+messageID+"/read", nil, nil)
}
