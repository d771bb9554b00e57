package store

import (
	"encoding/json"

	"github.com/dmelo/supportdesk/internal/cache"
)

// Rows keep a few extracted columns for ordering and filtering; the full
// entity rides along as a JSON payload so nothing the server sent is lost
// between restarts.

// OutboxEntry represents a pending outgoing conversation message.
type OutboxEntry struct {
	ID             int64
	ClientMsgID    string
	ConversationID string
	Body           string
	Status         string // queued, sending, sent, failed
	ErrorMessage   string
	ServerMsgID    string
}

// str extracts a string field from an entity, tolerating absence.
func str(e cache.Entity, key string) string {
	v, _ := e[key].(string)
	return v
}

// boolean extracts a bool field from an entity, tolerating absence.
func boolean(e cache.Entity, key string) bool {
	v, _ := e[key].(bool)
	return v
}

// marshalPayload serializes the full entity for the payload column.
func marshalPayload(e cache.Entity) string {
	data, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// unmarshalPayload restores an entity from the payload column.
func unmarshalPayload(data string) cache.Entity {
	var e cache.Entity
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return cache.Entity{}
	}
	return e
}
