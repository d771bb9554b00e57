package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dmelo/supportdesk/internal/bus"
	"github.com/dmelo/supportdesk/internal/cache"
	"github.com/dmelo/supportdesk/internal/rest"
	"github.com/dmelo/supportdesk/internal/rt"
	"github.com/dmelo/supportdesk/internal/store"
)

// Notifier surfaces a notification to the user outside the app. Delivery is
// best effort; implementations must never block or fail loudly.
type Notifier interface {
	Notify(title, body string)
}

// entityPayload is the common server payload shape for entity update events.
type entityPayload struct {
	Data cache.Entity `json:"data"`
}

// notificationPayload carries a notification plus an optional snapshot of the
// entity it is about.
type notificationPayload struct {
	Event        string       `json:"event"`
	Notification cache.Entity `json:"notification"`
	Data         cache.Entity `json:"data"`
}

// readPayload identifies the notification a read receipt refers to.
type readPayload struct {
	ID             string `json:"id"`
	NotificationID string `json:"notification_id"`
}

// Engine routes inbound real-time envelopes into the entity cache and the
// local store. It subscribes to "rt.*" events on the bus; each event is
// classified by name, validated, and applied idempotently. Malformed or
// unknown payloads are dropped with a log line and never stop the stream.
type Engine struct {
	cache    *cache.Cache
	db       *store.DB
	bus      *bus.Bus
	api      *rest.Client
	notifier Notifier
	logger   *zap.Logger
	cancel   context.CancelFunc

	mu     sync.Mutex
	userID string
}

// NewEngine creates a router over the given cache and store. db, api and
// notifier may be nil; the corresponding side effects are skipped.
func NewEngine(c *cache.Cache, db *store.DB, b *bus.Bus, api *rest.Client, notifier Notifier, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cache:    c,
		db:       db,
		bus:      b,
		api:      api,
		notifier: notifier,
		logger:   logger,
	}
}

// SetUser records the authenticated user id used to scope notifications.
func (e *Engine) SetUser(id string) {
	e.mu.Lock()
	e.userID = id
	e.mu.Unlock()
}

func (e *Engine) currentUser() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// Start subscribes to inbound real-time events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("rt.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	env, ok := evt.Payload.(rt.Envelope)
	if !ok {
		return
	}
	name := strings.TrimPrefix(evt.Kind, "rt.")

	switch name {
	case rt.EventNotification:
		e.handleNotification(env.Payload)
	case rt.EventNotificationRead:
		e.handleNotificationRead(env.Payload)
	case rt.EventTicketUpdate:
		e.handleEntity(cache.Ticket, env.Payload)
	case rt.EventCommentUpdate:
		e.handleEntity(cache.Comment, env.Payload)
	case rt.EventUserUpdate:
		e.handleEntity(cache.User, env.Payload)
	case rt.EventKBArticleCreated:
		e.handleEntity(cache.KBArticle, env.Payload)
	case rt.EventAttachmentAdded:
		e.handleEntity(cache.Attachment, env.Payload)
	case rt.EventConversation:
		e.handleEntity(cache.Conversation, env.Payload)
	case rt.EventMessageUpdate:
		e.handleMessage(env.Payload)
	default:
		e.logger.Debug("ignoring unknown event", zap.String("event", name))
	}
}

// decodeEntity accepts both the wrapped {"data": {...}} shape and a bare
// entity object.
func decodeEntity(raw json.RawMessage) (cache.Entity, error) {
	var p entityPayload
	if err := json.Unmarshal(raw, &p); err == nil && p.Data != nil {
		return p.Data, nil
	}
	var ent cache.Entity
	if err := json.Unmarshal(raw, &ent); err != nil {
		return nil, err
	}
	return ent, nil
}

func (e *Engine) handleEntity(t cache.Type, raw json.RawMessage) {
	ent, err := decodeEntity(raw)
	if err != nil {
		e.logger.Warn("dropping malformed entity payload", zap.String("type", string(t)), zap.Error(err))
		return
	}
	if ent.ID() == "" {
		e.logger.Warn("dropping entity payload without id", zap.String("type", string(t)))
		return
	}
	e.cache.Apply(t, ent)
	e.persist(t, ent)
}

// handleNotification applies a user-scoped notification. Updates addressed
// to other users are discarded. When the payload embeds the entity the
// notification is about, that snapshot is applied under its related type so
// a single push keeps both lists fresh.
func (e *Engine) handleNotification(raw json.RawMessage) {
	var p notificationPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Notification == nil {
		e.logger.Warn("dropping malformed notification payload", zap.Error(err))
		return
	}
	n := p.Notification
	if n.ID() == "" {
		e.logger.Warn("dropping notification without id")
		return
	}
	if uid, _ := n["user_id"].(string); uid != "" && uid != e.currentUser() {
		e.logger.Debug("notification for another user, skipping", zap.String("id", n.ID()))
		return
	}

	e.cache.Apply(cache.Notification, n)
	e.persist(cache.Notification, n)

	if p.Data != nil && p.Data.ID() != "" {
		if t := relatedType(n); t != "" {
			e.cache.Apply(t, p.Data)
			e.persist(t, p.Data)
		}
	}

	if e.notifier != nil {
		if msg, _ := n["message"].(string); msg != "" {
			e.notifier.Notify("supportdesk", msg)
		}
	}
}

// handleNotificationRead flips is_read on a notification. Reading one that
// is already read, or that this session never saw, changes nothing.
func (e *Engine) handleNotificationRead(raw json.RawMessage) {
	var p readPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		e.logger.Warn("dropping malformed read receipt", zap.Error(err))
		return
	}
	id := p.ID
	if id == "" {
		id = p.NotificationID
	}
	if id == "" {
		e.logger.Warn("dropping read receipt without id")
		return
	}

	e.cache.Apply(cache.Notification, cache.Entity{"id": id, "is_read": true})
	if e.db != nil {
		if err := e.db.MarkNotificationRead(id); err != nil && !errors.Is(err, sql.ErrNoRows) {
			e.logger.Warn("persist read receipt", zap.Error(err), zap.String("id", id))
		}
	}
}

// handleMessage settles server echoes of conversation messages. A pending
// optimistic entry carrying the same client id is replaced in place; without
// a client id echo, a pending entry from the same sender with identical
// content is the fallback match.
func (e *Engine) handleMessage(raw json.RawMessage) {
	ent, err := decodeEntity(raw)
	if err != nil || ent.ID() == "" {
		e.logger.Warn("dropping malformed message payload", zap.Error(err))
		return
	}

	clientID, _ := ent["client_id"].(string)
	if pending := e.findPending(ent, clientID); pending != "" && pending != ent.ID() {
		e.cache.Remove(cache.Message, pending)
	}
	e.cache.Apply(cache.Message, ent)
	if e.db != nil {
		if err := e.db.ReplacePendingMessage(clientID, ent); err != nil {
			e.logger.Warn("persist message", zap.Error(err), zap.String("id", ent.ID()))
		}
	}
}

// findPending locates a locally inserted optimistic message matching the
// server echo, by client id when echoed back and by sender plus content
// otherwise.
func (e *Engine) findPending(ent cache.Entity, clientID string) string {
	for id, m := range e.cache.Snapshot(cache.Message) {
		if status, _ := m["status"].(string); status != "sending" && status != "queued" {
			continue
		}
		if clientID != "" {
			if cid, _ := m["client_id"].(string); cid == clientID {
				return id
			}
			continue
		}
		sameSender := m["sender_id"] == ent["sender_id"]
		sameContent := m["content"] == ent["content"]
		if sameSender && sameContent {
			return id
		}
	}
	return ""
}

// persist writes an entity through to the local store. Users, knowledge
// base articles and attachments live in the cache only.
func (e *Engine) persist(t cache.Type, ent cache.Entity) {
	if e.db == nil {
		return
	}
	var err error
	switch t {
	case cache.Ticket:
		err = e.db.UpsertTicket(ent)
	case cache.Comment:
		err = e.db.UpsertComment(ent)
	case cache.Conversation:
		err = e.db.UpsertConversation(ent)
	case cache.Message:
		err = e.db.UpsertMessage(ent)
	case cache.Notification:
		err = e.db.UpsertNotification(ent)
	}
	if err != nil {
		e.logger.Warn("persist entity", zap.Error(err), zap.String("type", string(t)), zap.String("id", ent.ID()))
	}
}

// relatedType maps a notification's related_type to a cache type.
func relatedType(n cache.Entity) cache.Type {
	rel, _ := n["related_type"].(string)
	switch cache.Type(rel) {
	case cache.Ticket, cache.Comment, cache.User, cache.KBArticle,
		cache.Attachment, cache.Conversation, cache.Message:
		return cache.Type(rel)
	}
	return ""
}

// PollNotifications re-fetches the authenticated user's notifications over
// REST and replaces the cached slice wholesale. This is the degraded path
// driven by the connection manager while the socket is down.
func (e *Engine) PollNotifications(ctx context.Context) {
	userID := e.currentUser()
	if userID == "" || e.api == nil {
		return
	}
	items, err := e.api.ListNotifications(ctx)
	if err != nil {
		e.logger.Warn("notification poll failed", zap.Error(err))
		return
	}

	mine := make([]cache.Entity, 0, len(items))
	for _, n := range items {
		if uid, _ := n["user_id"].(string); uid == "" || uid == userID {
			mine = append(mine, n)
		}
	}

	e.cache.ReplaceAll(cache.Notification, mine)
	if e.db != nil {
		if err := e.db.ReplaceNotifications(userID, mine); err != nil {
			e.logger.Warn("persist polled notifications", zap.Error(err))
		}
	}
	e.logger.Debug("notifications polled", zap.Int("count", len(mine)))
}
