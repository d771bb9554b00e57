package store

import (
	"time"

	"github.com/dmelo/supportdesk/internal/cache"
)

// UpsertMessage inserts or updates a message snapshot.
func (db *DB) UpsertMessage(e cache.Entity) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (id, conversation_id, sender_id, content, status, client_id, created_at, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			status = excluded.status,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		e.ID(), str(e, "conversation_id"), str(e, "sender_id"), str(e, "content"),
		str(e, "status"), str(e, "client_id"), str(e, "created_at"),
		marshalPayload(e), now)
	return err
}

// ReplacePendingMessage swaps a locally inserted optimistic message for the
// server echo carrying the same client id. When no pending row matches, the
// server message is stored as a plain upsert.
func (db *DB) ReplacePendingMessage(clientID string, e cache.Entity) error {
	if clientID != "" {
		if _, err := db.Exec(`DELETE FROM messages WHERE client_id = ? AND id != ?`,
			clientID, e.ID()); err != nil {
			return err
		}
	}
	return db.UpsertMessage(e)
}

// ListMessages returns a conversation's messages, oldest first.
func (db *DB) ListMessages(conversationID string, limit int) ([]cache.Entity, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(`
		SELECT payload FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var messages []cache.Entity
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		messages = append(messages, unmarshalPayload(payload))
	}
	return messages, rows.Err()
}
