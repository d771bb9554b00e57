package store

import (
	"time"

	"github.com/dmelo/supportdesk/internal/cache"
)

// UpsertTicket inserts or updates a ticket snapshot (idempotent on id).
func (db *DB) UpsertTicket(e cache.Entity) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO tickets (id, subject, status, priority, requester_id, assignee_id, created_at, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subject = excluded.subject,
			status = excluded.status,
			priority = excluded.priority,
			requester_id = excluded.requester_id,
			assignee_id = excluded.assignee_id,
			created_at = excluded.created_at,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		e.ID(), str(e, "subject"), str(e, "status"), str(e, "priority"),
		str(e, "requester_id"), str(e, "assignee_id"), str(e, "created_at"),
		marshalPayload(e), now)
	return err
}

// ListTickets returns ticket snapshots, newest first.
func (db *DB) ListTickets(limit int) ([]cache.Entity, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Query(`
		SELECT payload FROM tickets
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tickets []cache.Entity
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		tickets = append(tickets, unmarshalPayload(payload))
	}
	return tickets, rows.Err()
}
