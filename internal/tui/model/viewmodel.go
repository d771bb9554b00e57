package model

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmelo/supportdesk/internal/bus"
	"github.com/dmelo/supportdesk/internal/cache"
	"github.com/dmelo/supportdesk/internal/rest"
	"github.com/dmelo/supportdesk/internal/status"
)

// ViewModel holds the rendered lists and keeps them in sync with the entity
// cache. Each list is reconciled incrementally from "cache.updated" events
// rather than rebuilt, so an update touches one entry and ordering is
// stable: tickets, notifications and conversations are newest first,
// comments and messages oldest first within their active parent.
type ViewModel struct {
	mu sync.RWMutex

	api   *rest.Client
	cache *cache.Cache
	bus   *bus.Bus

	Tickets              []cache.Entity
	Comments             []cache.Entity
	Notifications        []cache.Entity
	Conversations        []cache.Entity
	Messages             []cache.Entity
	ActiveTicketID       string
	ActiveConversationID string
	ConnState            status.State
	UserID               string
	Flash                Flash

	refreshCh chan struct{}
	cancel    context.CancelFunc
}

// NewViewModel creates a view model over the REST client, cache and bus.
func NewViewModel(api *rest.Client, c *cache.Cache, b *bus.Bus) *ViewModel {
	return &ViewModel{
		api:       api,
		cache:     c,
		bus:       b,
		ConnState: status.Disconnected,
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Start subscribes to cache and connectivity events on the bus.
func (vm *ViewModel) Start(ctx context.Context) {
	ctx, vm.cancel = context.WithCancel(ctx)
	updates, unsubUpdates := vm.bus.Subscribe("cache.", 256)
	conn, unsubConn := vm.bus.Subscribe("conn.status_changed", 16)

	go func() {
		defer unsubUpdates()
		defer unsubConn()
		for {
			select {
			case evt := <-updates:
				vm.handleCacheEvent(evt)
			case evt := <-conn:
				if change, ok := evt.Payload.(status.StatusChange); ok {
					vm.mu.Lock()
					vm.ConnState = change.To
					vm.mu.Unlock()
					vm.signalRefresh()
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop unsubscribes from the bus.
func (vm *ViewModel) Stop() {
	if vm.cancel != nil {
		vm.cancel()
	}
}

func (vm *ViewModel) handleCacheEvent(evt bus.Event) {
	update, ok := evt.Payload.(cache.Update)
	if !ok {
		return
	}

	switch evt.Kind {
	case "cache.updated":
		vm.applyUpdate(update)
	case "cache.removed":
		vm.applyRemove(update)
	case "cache.replaced":
		// A wholesale replace (polling fallback) rebuilds the list from the
		// authoritative cache snapshot instead of reconciling entry by entry.
		if update.Type == cache.Notification {
			items := make([]cache.Entity, 0)
			for _, e := range vm.cache.Snapshot(cache.Notification) {
				items = append(items, e)
			}
			sortNewestFirst(items)
			vm.mu.Lock()
			vm.Notifications = items
			vm.mu.Unlock()
		}
	}
	vm.signalRefresh()
}

func (vm *ViewModel) applyUpdate(update cache.Update) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	e := update.Entity
	switch update.Type {
	case cache.Ticket:
		vm.Tickets = cache.UpsertNewestFirst(vm.Tickets, e)
	case cache.Comment:
		if vm.ActiveTicketID != "" {
			vm.Comments = cache.UpsertComment(vm.Comments, e, vm.ActiveTicketID)
		}
	case cache.Notification:
		if uid, _ := e["user_id"].(string); uid == "" || vm.UserID == "" || uid == vm.UserID {
			vm.Notifications = cache.UpsertNewestFirst(vm.Notifications, e)
		}
	case cache.Conversation:
		vm.Conversations = cache.UpsertNewestFirst(vm.Conversations, e)
	case cache.Message:
		if vm.ActiveConversationID != "" {
			vm.Messages = upsertMessage(vm.Messages, e, vm.ActiveConversationID)
		}
	}
}

func (vm *ViewModel) applyRemove(update cache.Update) {
	id := update.Entity.ID()
	vm.mu.Lock()
	defer vm.mu.Unlock()

	switch update.Type {
	case cache.Message:
		vm.Messages = removeByID(vm.Messages, id)
	case cache.Notification:
		vm.Notifications = removeByID(vm.Notifications, id)
	case cache.Ticket:
		vm.Tickets = removeByID(vm.Tickets, id)
	}
}

// upsertMessage mirrors the comment reconciliation for conversation
// messages, scoped on conversation_id.
func upsertMessage(list []cache.Entity, item cache.Entity, conversationID string) []cache.Entity {
	owner, _ := item["conversation_id"].(string)
	if owner != conversationID {
		return list
	}
	id := item.ID()
	if id == "" {
		return list
	}
	for i, existing := range list {
		if existing.ID() == id {
			out := make([]cache.Entity, len(list))
			copy(out, list)
			out[i] = cache.Merge(existing, item)
			return out
		}
	}
	out := make([]cache.Entity, 0, len(list)+1)
	out = append(out, list...)
	out = append(out, item.Clone())
	return out
}

// sortNewestFirst orders entities by created_at descending. Timestamps are
// RFC 3339 strings, which compare correctly as text.
func sortNewestFirst(items []cache.Entity) {
	sort.SliceStable(items, func(i, j int) bool {
		a, _ := items[i]["created_at"].(string)
		b, _ := items[j]["created_at"].(string)
		return a > b
	})
}

func removeByID(list []cache.Entity, id string) []cache.Entity {
	for i, e := range list {
		if e.ID() == id {
			out := make([]cache.Entity, 0, len(list)-1)
			out = append(out, list[:i]...)
			out = append(out, list[i+1:]...)
			return out
		}
	}
	return list
}

// Preload seeds the lists from the offline store so the first paint shows
// data before any REST load lands. Empty slices leave the list untouched.
func (vm *ViewModel) Preload(tickets, notifications, conversations []cache.Entity) {
	vm.mu.Lock()
	if len(tickets) > 0 {
		vm.Tickets = tickets
	}
	if len(notifications) > 0 {
		vm.Notifications = notifications
	}
	if len(conversations) > 0 {
		vm.Conversations = conversations
	}
	vm.mu.Unlock()
	vm.signalRefresh()
}

// LoadTickets fetches the ticket list over REST.
func (vm *ViewModel) LoadTickets(ctx context.Context) error {
	tickets, err := vm.api.ListTickets(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Tickets = tickets
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadNotifications fetches the session user's notifications.
func (vm *ViewModel) LoadNotifications(ctx context.Context) error {
	notifications, err := vm.api.ListNotifications(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Notifications = notifications
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadConversations fetches the conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	conversations, err := vm.api.ListConversations(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Conversations = conversations
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// OpenTicket loads a ticket's comments and makes it the active scope for
// incoming comment updates.
func (vm *ViewModel) OpenTicket(ctx context.Context, ticketID string) error {
	comments, err := vm.api.ListTicketComments(ctx, ticketID)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.ActiveTicketID = ticketID
	vm.Comments = comments
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// CloseTicket clears the active ticket scope.
func (vm *ViewModel) CloseTicket() {
	vm.mu.Lock()
	vm.ActiveTicketID = ""
	vm.Comments = nil
	vm.mu.Unlock()
}

// OpenConversation loads a conversation's messages and makes it the active
// scope for incoming message updates. Opening also acks the conversation as
// read; the ack is best effort and failure does not block the view.
func (vm *ViewModel) OpenConversation(ctx context.Context, conversationID string) error {
	messages, err := vm.api.ListMessages(ctx, conversationID)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.ActiveConversationID = conversationID
	vm.Messages = messages
	vm.mu.Unlock()
	_ = vm.api.MarkConversationRead(ctx, conversationID)
	vm.signalRefresh()
	return nil
}

// CloseConversation clears the active conversation scope.
func (vm *ViewModel) CloseConversation() {
	vm.mu.Lock()
	vm.ActiveConversationID = ""
	vm.Messages = nil
	vm.mu.Unlock()
}

// AddComment posts a comment to the active ticket.
func (vm *ViewModel) AddComment(ctx context.Context, content string) error {
	vm.mu.RLock()
	ticketID := vm.ActiveTicketID
	vm.mu.RUnlock()
	if ticketID == "" {
		return nil
	}
	comment, err := vm.api.CreateComment(ctx, rest.CommentInput{TicketID: ticketID, Content: content})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Comments = cache.UpsertComment(vm.Comments, comment, ticketID)
	vm.mu.Unlock()
	vm.Flash.Set("Comment added", 3*time.Second)
	vm.signalRefresh()
	return nil
}

// MarkNotificationRead marks one notification as read on the server, then
// flips the local flag. The read receipt that follows on the stream is a
// no-op by then.
func (vm *ViewModel) MarkNotificationRead(ctx context.Context, id string) error {
	if err := vm.api.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Notifications = cache.UpsertNewestFirst(vm.Notifications, cache.Entity{"id": id, "is_read": true})
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// GetTickets returns a snapshot of the ticket list.
func (vm *ViewModel) GetTickets() []cache.Entity {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Tickets
}

// GetComments returns a snapshot of the active ticket's comments.
func (vm *ViewModel) GetComments() []cache.Entity {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Comments
}

// GetNotifications returns a snapshot of the notification list.
func (vm *ViewModel) GetNotifications() []cache.Entity {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Notifications
}

// UnreadCount returns the number of unread notifications.
func (vm *ViewModel) UnreadCount() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	count := 0
	for _, n := range vm.Notifications {
		if read, _ := n["is_read"].(bool); !read {
			count++
		}
	}
	return count
}

// GetConversations returns a snapshot of the conversation list.
func (vm *ViewModel) GetConversations() []cache.Entity {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Conversations
}

// GetMessages returns a snapshot of the active conversation's messages.
func (vm *ViewModel) GetMessages() []cache.Entity {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Messages
}

// GetConnState returns the current connectivity state.
func (vm *ViewModel) GetConnState() status.State {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.ConnState
}

// SetUser records the authenticated user id for notification scoping.
func (vm *ViewModel) SetUser(id string) {
	vm.mu.Lock()
	vm.UserID = id
	vm.mu.Unlock()
}

// ActiveTicket returns the id of the open ticket, if any.
func (vm *ViewModel) ActiveTicket() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.ActiveTicketID
}

// ActiveConversation returns the id of the open conversation, if any.
func (vm *ViewModel) ActiveConversation() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.ActiveConversationID
}
