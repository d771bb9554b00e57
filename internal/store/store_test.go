package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dmelo/supportdesk/internal/cache"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so run it again to check idempotency.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestTicketUpsertIdempotent(t *testing.T) {
	db := testDB(t)

	ticket := cache.Entity{"id": "t1", "subject": "printer down", "status": "open", "created_at": "2026-01-01T10:00:00Z"}
	if err := db.UpsertTicket(ticket); err != nil {
		t.Fatal(err)
	}
	// Upsert again with an updated status should not create a duplicate.
	ticket["status"] = "resolved"
	if err := db.UpsertTicket(ticket); err != nil {
		t.Fatal(err)
	}

	tickets, err := db.ListTickets(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tickets) != 1 {
		t.Fatalf("got %d tickets, want 1 (idempotent upsert failed)", len(tickets))
	}
	if tickets[0]["status"] != "resolved" {
		t.Errorf("status = %v, want resolved", tickets[0]["status"])
	}
}

func TestTicketPayloadRoundTrip(t *testing.T) {
	db := testDB(t)

	// Fields with no dedicated column must survive through the payload.
	ticket := cache.Entity{"id": "t1", "subject": "s", "custom_field": "kept", "created_at": "2026-01-01T10:00:00Z"}
	if err := db.UpsertTicket(ticket); err != nil {
		t.Fatal(err)
	}
	tickets, err := db.ListTickets(10)
	if err != nil {
		t.Fatal(err)
	}
	if tickets[0]["custom_field"] != "kept" {
		t.Errorf("custom_field = %v, want kept", tickets[0]["custom_field"])
	}
}

func TestCommentListScopedToTicket(t *testing.T) {
	db := testDB(t)

	for _, c := range []cache.Entity{
		{"id": "c1", "ticket_id": "t1", "content": "first", "created_at": "2026-01-01T10:00:00Z"},
		{"id": "c2", "ticket_id": "t2", "content": "other", "created_at": "2026-01-01T10:01:00Z"},
		{"id": "c3", "ticket_id": "t1", "content": "second", "created_at": "2026-01-01T10:02:00Z"},
	} {
		if err := db.UpsertComment(c); err != nil {
			t.Fatal(err)
		}
	}

	comments, err := db.ListComments("t1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(comments))
	}
	// Oldest first.
	if comments[0]["id"] != "c1" || comments[1]["id"] != "c3" {
		t.Errorf("order = %v, %v, want c1, c3", comments[0]["id"], comments[1]["id"])
	}
}

func TestNotificationMarkRead(t *testing.T) {
	db := testDB(t)

	n := cache.Entity{"id": "n1", "user_id": "u1", "message": "assigned", "is_read": false, "created_at": "2026-01-01T10:00:00Z"}
	if err := db.UpsertNotification(n); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkNotificationRead("n1"); err != nil {
		t.Fatal(err)
	}
	// Marking again is a no-op.
	if err := db.MarkNotificationRead("n1"); err != nil {
		t.Fatal(err)
	}

	notifications, err := db.ListNotifications("u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(notifications) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notifications))
	}
	if notifications[0]["is_read"] != true {
		t.Errorf("is_read = %v, want true", notifications[0]["is_read"])
	}
}

func TestReplaceNotifications(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertNotification(cache.Entity{"id": "stale", "user_id": "u1", "created_at": "2026-01-01T09:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	// Another user's rows must not be touched by the replace.
	if err := db.UpsertNotification(cache.Entity{"id": "other", "user_id": "u2", "created_at": "2026-01-01T09:00:00Z"}); err != nil {
		t.Fatal(err)
	}

	fresh := []cache.Entity{
		{"id": "n1", "user_id": "u1", "created_at": "2026-01-01T10:00:00Z"},
		{"id": "n2", "user_id": "u1", "created_at": "2026-01-01T11:00:00Z"},
	}
	if err := db.ReplaceNotifications("u1", fresh); err != nil {
		t.Fatal(err)
	}

	notifications, err := db.ListNotifications("u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(notifications) != 2 {
		t.Fatalf("got %d notifications, want 2", len(notifications))
	}
	if notifications[0]["id"] != "n2" {
		t.Errorf("first = %v, want n2 (newest first)", notifications[0]["id"])
	}

	others, err := db.ListNotifications("u2", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(others) != 1 {
		t.Errorf("got %d notifications for u2, want 1", len(others))
	}
}

func TestReplacePendingMessage(t *testing.T) {
	db := testDB(t)

	pending := cache.Entity{"id": "local-1", "conversation_id": "c1", "content": "hi", "status": "sending", "client_id": "abc", "created_at": "2026-01-01T10:00:00Z"}
	if err := db.UpsertMessage(pending); err != nil {
		t.Fatal(err)
	}

	echo := cache.Entity{"id": "m1", "conversation_id": "c1", "content": "hi", "status": "sent", "client_id": "abc", "created_at": "2026-01-01T10:00:01Z"}
	if err := db.ReplacePendingMessage("abc", echo); err != nil {
		t.Fatal(err)
	}

	messages, err := db.ListMessages("c1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1 (pending row not replaced)", len(messages))
	}
	if messages[0]["id"] != "m1" {
		t.Errorf("id = %v, want m1", messages[0]["id"])
	}
}

func TestOutbox(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox("client1", "c1", "test msg"); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}
	if pending[0].ClientMsgID != "client1" {
		t.Errorf("client_msg_id = %q, want client1", pending[0].ClientMsgID)
	}

	if err := db.MarkOutboxSending("client1"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxSent("client1", "server1"); err != nil {
		t.Fatal(err)
	}

	pending, err = db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after sent, want 0", len(pending))
	}
}

func TestConversationListOrder(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(cache.Entity{"id": "c1", "title": "first"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertConversation(cache.Entity{"id": "c2", "title": "second"}); err != nil {
		t.Fatal(err)
	}
	// Touch c1 so it becomes the most recent. The sleep guarantees a later
	// updated_at millisecond.
	time.Sleep(2 * time.Millisecond)
	if err := db.UpsertConversation(cache.Entity{"id": "c1", "title": "first updated"}); err != nil {
		t.Fatal(err)
	}

	conversations, err := db.ListConversations(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(conversations) != 2 {
		t.Fatalf("got %d conversations, want 2", len(conversations))
	}
	if conversations[0]["id"] != "c1" {
		t.Errorf("first = %v, want c1 (most recently updated)", conversations[0]["id"])
	}
}
