package model

import (
	"context"
	"testing"
	"time"

	"github.com/dmelo/supportdesk/internal/bus"
	"github.com/dmelo/supportdesk/internal/cache"
	"github.com/dmelo/supportdesk/internal/status"
)

// startVM wires a view model to a live bus-backed cache and starts it.
func startVM(t *testing.T) (*ViewModel, *cache.Cache, *bus.Bus) {
	t.Helper()
	b := bus.New()
	c := cache.New(b)
	vm := NewViewModel(nil, c, b)
	ctx, cancel := context.WithCancel(context.Background())
	vm.Start(ctx)
	t.Cleanup(cancel)
	return vm, c, b
}

// waitRefresh blocks until the view model signals a refresh.
func waitRefresh(t *testing.T, vm *ViewModel) {
	t.Helper()
	select {
	case <-vm.RefreshCh():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refresh")
	}
}

func TestTicketUpdatePrependsNewEntry(t *testing.T) {
	vm, c, _ := startVM(t)

	c.Apply(cache.Ticket, cache.Entity{"id": "t1", "subject": "old"})
	waitRefresh(t, vm)
	c.Apply(cache.Ticket, cache.Entity{"id": "t2", "subject": "new"})
	waitRefresh(t, vm)

	tickets := vm.GetTickets()
	if len(tickets) != 2 {
		t.Fatalf("got %d tickets, want 2", len(tickets))
	}
	if tickets[0].ID() != "t2" {
		t.Errorf("first = %s, want t2 (newest first)", tickets[0].ID())
	}
}

func TestTicketUpdateMergesInPlace(t *testing.T) {
	vm, c, _ := startVM(t)

	c.Apply(cache.Ticket, cache.Entity{"id": "t1", "subject": "s", "status": "open"})
	waitRefresh(t, vm)
	c.Apply(cache.Ticket, cache.Entity{"id": "t2", "subject": "other"})
	waitRefresh(t, vm)
	// Updating t1 must not move it to the top.
	c.Apply(cache.Ticket, cache.Entity{"id": "t1", "status": "resolved"})
	waitRefresh(t, vm)

	tickets := vm.GetTickets()
	if len(tickets) != 2 {
		t.Fatalf("got %d tickets, want 2", len(tickets))
	}
	if tickets[0].ID() != "t2" || tickets[1].ID() != "t1" {
		t.Errorf("order changed on update: %s, %s", tickets[0].ID(), tickets[1].ID())
	}
	if tickets[1]["status"] != "resolved" || tickets[1]["subject"] != "s" {
		t.Errorf("merge lost fields: %v", tickets[1])
	}
}

func TestCommentScopedToActiveTicket(t *testing.T) {
	vm, c, _ := startVM(t)

	vm.mu.Lock()
	vm.ActiveTicketID = "t1"
	vm.mu.Unlock()

	c.Apply(cache.Comment, cache.Entity{"id": "c1", "ticket_id": "t1", "content": "mine"})
	waitRefresh(t, vm)
	c.Apply(cache.Comment, cache.Entity{"id": "c2", "ticket_id": "t2", "content": "other ticket"})
	waitRefresh(t, vm)

	comments := vm.GetComments()
	if len(comments) != 1 {
		t.Fatalf("got %d comments, want 1", len(comments))
	}
	if comments[0].ID() != "c1" {
		t.Errorf("comment = %s, want c1", comments[0].ID())
	}
}

func TestNotificationScopeAndUnreadCount(t *testing.T) {
	vm, c, _ := startVM(t)
	vm.SetUser("u1")

	c.Apply(cache.Notification, cache.Entity{"id": "n1", "user_id": "u1", "is_read": false})
	waitRefresh(t, vm)
	c.Apply(cache.Notification, cache.Entity{"id": "n2", "user_id": "u2", "is_read": false})
	waitRefresh(t, vm)
	c.Apply(cache.Notification, cache.Entity{"id": "n3", "user_id": "u1", "is_read": true})
	waitRefresh(t, vm)

	if got := len(vm.GetNotifications()); got != 2 {
		t.Fatalf("got %d notifications, want 2 (other user filtered)", got)
	}
	if got := vm.UnreadCount(); got != 1 {
		t.Errorf("unread = %d, want 1", got)
	}
}

func TestMessageRemoveSettlesOptimisticEntry(t *testing.T) {
	vm, c, _ := startVM(t)

	vm.mu.Lock()
	vm.ActiveConversationID = "conv1"
	vm.mu.Unlock()

	c.Apply(cache.Message, cache.Entity{"id": "local-1", "conversation_id": "conv1", "content": "hi", "status": "sending"})
	waitRefresh(t, vm)
	c.Remove(cache.Message, "local-1")
	waitRefresh(t, vm)
	c.Apply(cache.Message, cache.Entity{"id": "m1", "conversation_id": "conv1", "content": "hi", "status": "sent"})
	waitRefresh(t, vm)

	messages := vm.GetMessages()
	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(messages))
	}
	if messages[0].ID() != "m1" {
		t.Errorf("message = %s, want m1", messages[0].ID())
	}
}

func TestPreloadSeedsListsAndUpdatesReconcile(t *testing.T) {
	vm, c, _ := startVM(t)

	vm.Preload(
		[]cache.Entity{{"id": "t1", "subject": "from store"}},
		nil,
		[]cache.Entity{{"id": "conv1", "title": "old chat"}},
	)
	waitRefresh(t, vm)

	if got := len(vm.GetTickets()); got != 1 {
		t.Fatalf("got %d tickets after preload, want 1", got)
	}

	// A live update merges into the preloaded entry instead of duplicating it.
	c.Apply(cache.Ticket, cache.Entity{"id": "t1", "status": "open"})
	waitRefresh(t, vm)

	tickets := vm.GetTickets()
	if len(tickets) != 1 {
		t.Fatalf("got %d tickets, want 1", len(tickets))
	}
	if tickets[0]["subject"] != "from store" || tickets[0]["status"] != "open" {
		t.Errorf("merge lost fields: %v", tickets[0])
	}
}

func TestConnStateFollowsBus(t *testing.T) {
	vm, _, b := startVM(t)

	machine := status.NewMachine(b)
	if err := machine.Transition(status.Connecting); err != nil {
		t.Fatal(err)
	}
	waitRefresh(t, vm)

	if got := vm.GetConnState(); got != status.Connecting {
		t.Errorf("state = %s, want CONNECTING", got)
	}
}
