package store

import (
	"fmt"
	"time"

	"github.com/dmelo/supportdesk/internal/cache"
)

// UpsertNotification inserts or updates a notification snapshot.
func (db *DB) UpsertNotification(e cache.Entity) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO notifications (id, user_id, type, message, related_id, related_type, is_read, created_at, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			is_read = excluded.is_read,
			message = excluded.message,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		e.ID(), str(e, "user_id"), str(e, "type"), str(e, "message"),
		str(e, "related_id"), str(e, "related_type"), boolean(e, "is_read"),
		str(e, "created_at"), marshalPayload(e), now)
	return err
}

// MarkNotificationRead flips the is_read flag. Idempotent: marking a read
// notification read again changes nothing.
func (db *DB) MarkNotificationRead(id string) error {
	var payload string
	err := db.QueryRow(`SELECT payload FROM notifications WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		return err
	}
	e := unmarshalPayload(payload)
	e["is_read"] = true
	now := time.Now().UnixMilli()
	_, err = db.Exec(`UPDATE notifications SET is_read = 1, payload = ?, updated_at = ? WHERE id = ?`,
		marshalPayload(e), now, id)
	return err
}

// DeleteNotification removes a notification, mirroring a server delete.
func (db *DB) DeleteNotification(id string) error {
	_, err := db.Exec(`DELETE FROM notifications WHERE id = ?`, id)
	return err
}

// ReplaceNotifications swaps a user's notification slice wholesale with the
// authoritative poll result, in one transaction.
func (db *DB) ReplaceNotifications(userID string, items []cache.Entity) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM notifications WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, e := range items {
		if e.ID() == "" {
			continue
		}
		if _, err := tx.Exec(`
			INSERT INTO notifications (id, user_id, type, message, related_id, related_type, is_read, created_at, payload, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				is_read = excluded.is_read,
				payload = excluded.payload,
				updated_at = excluded.updated_at`,
			e.ID(), str(e, "user_id"), str(e, "type"), str(e, "message"),
			str(e, "related_id"), str(e, "related_type"), boolean(e, "is_read"),
			str(e, "created_at"), marshalPayload(e), now); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	return tx.Commit()
}

// ListNotifications returns a user's notifications, newest first.
func (db *DB) ListNotifications(userID string, limit int) ([]cache.Entity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT payload FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var notifications []cache.Entity
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		notifications = append(notifications, unmarshalPayload(payload))
	}
	return notifications, rows.Err()
}
