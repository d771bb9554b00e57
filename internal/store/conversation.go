package store

import (
	"time"

	"github.com/dmelo/supportdesk/internal/cache"
)

// UpsertConversation inserts or updates a conversation snapshot.
func (db *DB) UpsertConversation(e cache.Entity) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, title, created_at, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		e.ID(), str(e, "title"), str(e, "created_at"),
		marshalPayload(e), now)
	return err
}

// ListConversations returns conversations ordered by most recent activity.
func (db *DB) ListConversations(limit int) ([]cache.Entity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT payload FROM conversations
		ORDER BY updated_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var conversations []cache.Entity
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		conversations = append(conversations, unmarshalPayload(payload))
	}
	return conversations, rows.Err()
}
