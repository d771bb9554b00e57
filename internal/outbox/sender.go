package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmelo/supportdesk/internal/bus"
	"github.com/dmelo/supportdesk/internal/cache"
	"github.com/dmelo/supportdesk/internal/rest"
	"github.com/dmelo/supportdesk/internal/store"
)

// MessageSender posts a conversation message to the backend. Satisfied by
// the REST client.
type MessageSender interface {
	SendMessage(ctx context.Context, conversationID string, in rest.MessageInput) (cache.Entity, error)
}

// Sender drains queued conversation messages to the backend. Queue inserts
// an optimistic entry so the UI shows the message immediately; the drain
// loop settles each entry to sent or failed, and the real-time echo later
// replaces the optimistic entry with the server record.
type Sender struct {
	db     *store.DB
	cache  *cache.Cache
	api    MessageSender
	bus    *bus.Bus
	userID string
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, c *cache.Cache, api MessageSender, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:     db,
		cache:  c,
		api:    api,
		bus:    b,
		logger: logger,
	}
}

// SetUser records the sender id stamped on optimistic entries.
func (s *Sender) SetUser(id string) {
	s.userID = id
}

// Queue stores a message for delivery and inserts the optimistic local
// entry. Returns the generated client message id.
func (s *Sender) Queue(conversationID, content string) (string, error) {
	clientID := uuid.NewString()
	if err := s.db.QueueOutbox(clientID, conversationID, content); err != nil {
		return "", err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	optimistic := cache.Entity{
		"id":              clientID,
		"client_id":       clientID,
		"conversation_id": conversationID,
		"sender_id":       s.userID,
		"content":         content,
		"status":          "queued",
		"created_at":      now,
	}
	s.cache.Apply(cache.Message, optimistic)
	_ = s.db.UpsertMessage(optimistic)

	s.bus.Emit("outbox.queued", map[string]string{
		"client_msg_id":   clientID,
		"conversation_id": conversationID,
	})
	return clientID, nil
}

// Start begins polling the outbox for pending messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ProcessPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessPending sends every queued entry once. Entries that fail stay
// visible with a failed status rather than being retried silently.
func (s *Sender) ProcessPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}
		s.setStatus(entry, "sending")

		msg, err := s.api.SendMessage(ctx, entry.ConversationID, rest.MessageInput{
			Content:  entry.Body,
			ClientID: entry.ClientMsgID,
		})
		if err != nil {
			s.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
			s.setStatus(entry, "failed")
			s.bus.Emit("outbox.failed", map[string]string{
				"client_msg_id": entry.ClientMsgID,
				"error":         err.Error(),
			})
			continue
		}

		serverID := msg.ID()
		if err := s.db.MarkOutboxSent(entry.ClientMsgID, serverID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}

		// Replace the optimistic entry with the server record right away.
		// The real-time echo that follows applies the same record again,
		// which is a no-op.
		if serverID != "" && serverID != entry.ClientMsgID {
			s.cache.Remove(cache.Message, entry.ClientMsgID)
		}
		if msg["client_id"] == nil {
			msg["client_id"] = entry.ClientMsgID
		}
		s.cache.Apply(cache.Message, msg)
		_ = s.db.ReplacePendingMessage(entry.ClientMsgID, msg)

		s.logger.Info("message sent", zap.String("client_msg_id", entry.ClientMsgID), zap.String("server_msg_id", serverID))
		s.bus.Emit("outbox.sent", map[string]string{
			"client_msg_id": entry.ClientMsgID,
			"server_msg_id": serverID,
		})
	}
}

// setStatus updates the optimistic entry's lifecycle status locally.
func (s *Sender) setStatus(entry store.OutboxEntry, status string) {
	s.cache.Apply(cache.Message, cache.Entity{"id": entry.ClientMsgID, "status": status})
	if m, ok := s.cache.Get(cache.Message, entry.ClientMsgID); ok {
		_ = s.db.UpsertMessage(m)
	}
}
