package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmelo/supportdesk/internal/bus"
	"github.com/dmelo/supportdesk/internal/cache"
	"github.com/dmelo/supportdesk/internal/rest"
	"github.com/dmelo/supportdesk/internal/rt"
	"github.com/dmelo/supportdesk/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func envelope(t *testing.T, event string, payload any) bus.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return bus.Event{
		Kind:      "rt." + event,
		Timestamp: time.Now(),
		Payload:   rt.Envelope{Event: event, Payload: raw},
	}
}

type recordingNotifier struct {
	calls []string
}

func (r *recordingNotifier) Notify(title, body string) {
	r.calls = append(r.calls, body)
}

func TestTicketUpdateAppliedToCacheAndStore(t *testing.T) {
	db := testDB(t)
	c := cache.New(nil)
	e := NewEngine(c, db, bus.New(), nil, nil, nil)

	e.handleEvent(envelope(t, rt.EventTicketUpdate, map[string]any{
		"data": map[string]any{"id": "t1", "subject": "printer down", "status": "open"},
	}))

	got, ok := c.Get(cache.Ticket, "t1")
	if !ok || got["subject"] != "printer down" {
		t.Fatalf("cache not updated: %v", got)
	}

	tickets, err := db.ListTickets(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tickets) != 1 || tickets[0]["id"] != "t1" {
		t.Errorf("store not updated: %v", tickets)
	}
}

func TestEntityWithoutIDDropped(t *testing.T) {
	c := cache.New(nil)
	e := NewEngine(c, nil, bus.New(), nil, nil, nil)

	e.handleEvent(envelope(t, rt.EventTicketUpdate, map[string]any{
		"data": map[string]any{"subject": "no id"},
	}))

	if n := c.Len(cache.Ticket); n != 0 {
		t.Errorf("cache has %d tickets, want 0", n)
	}
}

func TestNotificationScopedToCurrentUser(t *testing.T) {
	c := cache.New(nil)
	notifier := &recordingNotifier{}
	e := NewEngine(c, nil, bus.New(), nil, notifier, nil)
	e.SetUser("u1")

	e.handleEvent(envelope(t, rt.EventNotification, map[string]any{
		"notification": map[string]any{"id": "n1", "user_id": "u1", "message": "for you"},
	}))
	e.handleEvent(envelope(t, rt.EventNotification, map[string]any{
		"notification": map[string]any{"id": "n2", "user_id": "u2", "message": "for someone else"},
	}))

	if _, ok := c.Get(cache.Notification, "n1"); !ok {
		t.Error("own notification not applied")
	}
	if _, ok := c.Get(cache.Notification, "n2"); ok {
		t.Error("another user's notification must be dropped")
	}
	if len(notifier.calls) != 1 || notifier.calls[0] != "for you" {
		t.Errorf("notifier calls = %v, want [for you]", notifier.calls)
	}
}

func TestNotificationEmbeddedDataApplied(t *testing.T) {
	c := cache.New(nil)
	e := NewEngine(c, nil, bus.New(), nil, nil, nil)
	e.SetUser("u1")

	e.handleEvent(envelope(t, rt.EventNotification, map[string]any{
		"notification": map[string]any{
			"id": "n1", "user_id": "u1",
			"related_id": "t9", "related_type": "ticket",
		},
		"data": map[string]any{"id": "t9", "subject": "from notification"},
	}))

	ticket, ok := c.Get(cache.Ticket, "t9")
	if !ok || ticket["subject"] != "from notification" {
		t.Errorf("embedded entity not applied: %v", ticket)
	}
}

func TestNotificationReadIdempotent(t *testing.T) {
	db := testDB(t)
	c := cache.New(nil)
	e := NewEngine(c, db, bus.New(), nil, nil, nil)
	e.SetUser("u1")

	e.handleEvent(envelope(t, rt.EventNotification, map[string]any{
		"notification": map[string]any{"id": "n1", "user_id": "u1", "is_read": false},
	}))
	e.handleEvent(envelope(t, rt.EventNotificationRead, map[string]any{"id": "n1"}))
	// Second receipt for the same notification is a no-op.
	e.handleEvent(envelope(t, rt.EventNotificationRead, map[string]any{"id": "n1"}))

	n, _ := c.Get(cache.Notification, "n1")
	if n["is_read"] != true {
		t.Errorf("is_read = %v, want true", n["is_read"])
	}

	// Receipt for a notification this session never saw must not blow up.
	e.handleEvent(envelope(t, rt.EventNotificationRead, map[string]any{"id": "unknown"}))
}

func TestMalformedPayloadDoesNotStopRouting(t *testing.T) {
	c := cache.New(nil)
	e := NewEngine(c, nil, bus.New(), nil, nil, nil)

	e.handleEvent(bus.Event{
		Kind:    "rt." + rt.EventTicketUpdate,
		Payload: rt.Envelope{Event: rt.EventTicketUpdate, Payload: json.RawMessage(`"not an object"`)},
	})

	// Routing still works after the bad frame.
	e.handleEvent(envelope(t, rt.EventTicketUpdate, map[string]any{
		"data": map[string]any{"id": "t1"},
	}))
	if _, ok := c.Get(cache.Ticket, "t1"); !ok {
		t.Error("good frame after bad frame not applied")
	}
}

func TestMessageEchoReplacesPendingByClientID(t *testing.T) {
	c := cache.New(nil)
	e := NewEngine(c, nil, bus.New(), nil, nil, nil)

	c.Apply(cache.Message, cache.Entity{
		"id": "local-1", "client_id": "abc", "status": "sending",
		"sender_id": "u1", "content": "hi",
	})

	e.handleEvent(envelope(t, rt.EventMessageUpdate, map[string]any{
		"data": map[string]any{
			"id": "m1", "client_id": "abc", "status": "sent",
			"sender_id": "u1", "content": "hi",
		},
	}))

	if _, ok := c.Get(cache.Message, "local-1"); ok {
		t.Error("pending optimistic message not removed")
	}
	m, ok := c.Get(cache.Message, "m1")
	if !ok || m["status"] != "sent" {
		t.Errorf("server echo not applied: %v", m)
	}
}

func TestMessageEchoFallbackMatchBySenderAndContent(t *testing.T) {
	c := cache.New(nil)
	e := NewEngine(c, nil, bus.New(), nil, nil, nil)

	c.Apply(cache.Message, cache.Entity{
		"id": "local-1", "status": "sending",
		"sender_id": "u1", "content": "hello there",
	})

	// Echo without a client id still settles the matching pending entry.
	e.handleEvent(envelope(t, rt.EventMessageUpdate, map[string]any{
		"data": map[string]any{
			"id": "m1", "status": "sent",
			"sender_id": "u1", "content": "hello there",
		},
	}))

	if _, ok := c.Get(cache.Message, "local-1"); ok {
		t.Error("pending message not settled by sender+content match")
	}
	if n := c.Len(cache.Message); n != 1 {
		t.Errorf("message count = %d, want 1", n)
	}
}

func TestBusDrivenRouting(t *testing.T) {
	b := bus.New()
	c := cache.New(b)
	e := NewEngine(c, nil, b, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	defer e.Stop()

	updates, unsub := b.Subscribe("cache.updated", 10)
	defer unsub()

	evt := envelope(t, rt.EventTicketUpdate, map[string]any{
		"data": map[string]any{"id": "t1", "subject": "via bus"},
	})
	b.Publish(evt)

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cache update")
	}
	if _, ok := c.Get(cache.Ticket, "t1"); !ok {
		t.Error("ticket not applied through bus subscription")
	}
}

func TestPollNotificationsReplacesWholesale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/notifications/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": "n1", "user_id": "u1", "message": "fresh"},
			{"id": "n2", "user_id": "u2", "message": "not mine"}
		]`))
	}))
	defer srv.Close()

	api, err := rest.New(srv.URL + "/api")
	if err != nil {
		t.Fatal(err)
	}

	c := cache.New(nil)
	// Stale entry that the poll result no longer contains.
	c.Apply(cache.Notification, cache.Entity{"id": "stale", "user_id": "u1"})

	e := NewEngine(c, nil, bus.New(), api, nil, nil)
	e.SetUser("u1")
	e.PollNotifications(context.Background())

	if _, ok := c.Get(cache.Notification, "stale"); ok {
		t.Error("stale notification survived wholesale replace")
	}
	if _, ok := c.Get(cache.Notification, "n1"); !ok {
		t.Error("polled notification missing")
	}
	if _, ok := c.Get(cache.Notification, "n2"); ok {
		t.Error("another user's notification must be filtered out")
	}
}
