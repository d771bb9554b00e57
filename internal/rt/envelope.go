package rt

import (
	"encoding/json"
	"fmt"
)

// Rooms is the fixed set of topic rooms joined after every successful
// connect. Joining scopes which update events the session receives.
var Rooms = []string{"tickets", "comments", "users", "kb", "attachments", "messages"}

// Event names pushed by the server.
const (
	EventNotification     = "notification"
	EventNotificationRead = "notification.read"
	EventTicketUpdate     = "ticket.update"
	EventCommentUpdate    = "comment.update"
	EventUserUpdate       = "user.update"
	EventKBArticleCreated = "kb.article.created"
	EventAttachmentAdded  = "attachment.added"
	EventMessageUpdate    = "message.update"
	EventConversation     = "conversation.update"
)

// Envelope is the wire format for all events in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ParseEnvelope decodes a raw frame. Frames without an event name are
// rejected; the payload stays raw for the router to interpret.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("envelope missing event name")
	}
	return env, nil
}

type joinPayload struct {
	Room string `json:"room"`
}

// joinFrame builds the client->server join command for a room.
func joinFrame(room string) ([]byte, error) {
	payload, err := json.Marshal(joinPayload{Room: room})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: "join", Payload: payload})
}
