package outbox

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/dmelo/supportdesk/internal/bus"
	"github.com/dmelo/supportdesk/internal/cache"
	"github.com/dmelo/supportdesk/internal/rest"
	"github.com/dmelo/supportdesk/internal/store"
)

// mockSender records calls and returns configurable results.
type mockSender struct {
	calls []sendCall
	err   error
}

type sendCall struct {
	ConversationID string
	Input          rest.MessageInput
}

func (m *mockSender) SendMessage(_ context.Context, conversationID string, in rest.MessageInput) (cache.Entity, error) {
	m.calls = append(m.calls, sendCall{ConversationID: conversationID, Input: in})
	if m.err != nil {
		return nil, m.err
	}
	return cache.Entity{
		"id":              "server-" + in.ClientID,
		"client_id":       in.ClientID,
		"conversation_id": conversationID,
		"content":         in.Content,
		"status":          "sent",
	}, nil
}

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

func TestQueueInsertsOptimisticEntry(t *testing.T) {
	db := testDB(t)
	c := cache.New(nil)
	s := NewSender(db, c, &mockSender{}, bus.New(), nil)
	s.SetUser("u1")

	clientID, err := s.Queue("c1", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if clientID == "" {
		t.Fatal("empty client id")
	}

	m, ok := c.Get(cache.Message, clientID)
	if !ok {
		t.Fatal("optimistic message not in cache")
	}
	if m["status"] != "queued" || m["sender_id"] != "u1" {
		t.Errorf("optimistic entry = %v", m)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ClientMsgID != clientID {
		t.Errorf("pending = %v", pending)
	}
}

func TestProcessPendingSendsAndSettles(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	c := cache.New(nil)
	mock := &mockSender{}
	s := NewSender(db, c, mock, b, nil)

	ch, unsub := b.Subscribe("outbox.sent", 10)
	defer unsub()

	clientID, err := s.Queue("c1", "hello")
	if err != nil {
		t.Fatal(err)
	}

	s.ProcessPending(context.Background())

	if len(mock.calls) != 1 {
		t.Fatalf("got %d sends, want 1", len(mock.calls))
	}
	if mock.calls[0].Input.ClientID != clientID {
		t.Errorf("client id not forwarded: %v", mock.calls[0].Input)
	}

	select {
	case <-ch:
	default:
		t.Error("no outbox.sent event published")
	}

	// The optimistic entry is replaced by the server record.
	if _, ok := c.Get(cache.Message, clientID); ok {
		t.Error("optimistic entry still in cache after send")
	}
	m, ok := c.Get(cache.Message, "server-"+clientID)
	if !ok || m["status"] != "sent" {
		t.Errorf("server record = %v", m)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after send, want 0", len(pending))
	}
}

func TestProcessPendingMarksFailed(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	c := cache.New(nil)
	mock := &mockSender{err: fmt.Errorf("backend down")}
	s := NewSender(db, c, mock, b, nil)

	ch, unsub := b.Subscribe("outbox.failed", 10)
	defer unsub()

	clientID, err := s.Queue("c1", "hello")
	if err != nil {
		t.Fatal(err)
	}

	s.ProcessPending(context.Background())

	select {
	case <-ch:
	default:
		t.Error("no outbox.failed event published")
	}

	// The entry stays visible with a failed status, not silently retried.
	m, ok := c.Get(cache.Message, clientID)
	if !ok || m["status"] != "failed" {
		t.Errorf("failed entry = %v", m)
	}
	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("failed entry still queued: %v", pending)
	}
}

func TestProcessPendingSendsInQueueOrder(t *testing.T) {
	db := testDB(t)
	c := cache.New(nil)
	mock := &mockSender{}
	s := NewSender(db, c, mock, bus.New(), nil)

	first, err := s.Queue("c1", "first")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Queue("c1", "second")
	if err != nil {
		t.Fatal(err)
	}

	s.ProcessPending(context.Background())

	if len(mock.calls) != 2 {
		t.Fatalf("got %d sends, want 2", len(mock.calls))
	}
	if mock.calls[0].Input.ClientID != first || mock.calls[1].Input.ClientID != second {
		t.Errorf("send order wrong: %v", mock.calls)
	}
}
