package store

import (
	"time"

	"github.com/dmelo/supportdesk/internal/cache"
)

// UpsertComment inserts or updates a comment snapshot (idempotent on id).
func (db *DB) UpsertComment(e cache.Entity) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO comments (id, ticket_id, author_id, content, created_at, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ticket_id = excluded.ticket_id,
			author_id = excluded.author_id,
			content = excluded.content,
			created_at = excluded.created_at,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		e.ID(), str(e, "ticket_id"), str(e, "author_id"), str(e, "content"),
		str(e, "created_at"), marshalPayload(e), now)
	return err
}

// ListComments returns a ticket's comments in chronological order.
func (db *DB) ListComments(ticketID string, limit int) ([]cache.Entity, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Query(`
		SELECT payload FROM comments
		WHERE ticket_id = ?
		ORDER BY created_at ASC
		LIMIT ?`, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var comments []cache.Entity
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		comments = append(comments, unmarshalPayload(payload))
	}
	return comments, rows.Err()
}
