package cache

import (
	"reflect"
	"testing"

	"github.com/dmelo/supportdesk/internal/bus"
)

func TestApplyCreatesEntry(t *testing.T) {
	c := New(nil)

	got := c.Apply(Ticket, Entity{"id": "t1", "status": "Open"})
	if got == nil {
		t.Fatal("Apply returned nil")
	}

	cached, ok := c.Get(Ticket, "t1")
	if !ok {
		t.Fatal("entity not cached")
	}
	if cached["status"] != "Open" {
		t.Errorf("status = %v, want Open", cached["status"])
	}
}

func TestApplyMergesLastWriteWins(t *testing.T) {
	c := New(nil)

	c.Apply(Ticket, Entity{"id": "t1", "status": "Open", "subject": "printer on fire"})
	c.Apply(Ticket, Entity{"id": "t1", "status": "Closed"})

	cached, _ := c.Get(Ticket, "t1")
	if cached["status"] != "Closed" {
		t.Errorf("status = %v, want Closed", cached["status"])
	}
	// Fields absent from the later update survive the merge.
	if cached["subject"] != "printer on fire" {
		t.Errorf("subject = %v, want preserved", cached["subject"])
	}
}

func TestApplyIdempotent(t *testing.T) {
	c := New(nil)

	update := Entity{"id": "t1", "status": "Open"}
	c.Apply(Ticket, update)
	first := c.Snapshot(Ticket)
	c.Apply(Ticket, update)
	second := c.Snapshot(Ticket)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("cache changed on repeated apply: %v vs %v", first, second)
	}
	if c.Len(Ticket) != 1 {
		t.Errorf("len = %d, want 1", c.Len(Ticket))
	}
}

func TestApplyRejectsMissingID(t *testing.T) {
	c := New(nil)
	if got := c.Apply(Ticket, Entity{"status": "Open"}); got != nil {
		t.Errorf("Apply without id returned %v, want nil", got)
	}
	if c.Len(Ticket) != 0 {
		t.Error("cache grew on update without id")
	}
}

func TestApplyPublishesUpdate(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("cache.", 10)
	defer unsub()

	c := New(b)
	c.Apply(Comment, Entity{"id": "c1", "content": "done"})

	evt := <-ch
	if evt.Kind != "cache.updated" {
		t.Fatalf("kind = %q, want cache.updated", evt.Kind)
	}
	upd, ok := evt.Payload.(Update)
	if !ok {
		t.Fatalf("payload type = %T", evt.Payload)
	}
	if upd.Type != Comment || upd.Entity.ID() != "c1" {
		t.Errorf("update = %+v", upd)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	c := New(nil)
	c.Apply(User, Entity{"id": "u1", "name": "Ana"})

	got, _ := c.Get(User, "u1")
	got["name"] = "mutated"

	again, _ := c.Get(User, "u1")
	if again["name"] != "Ana" {
		t.Error("caller mutation leaked into the cache")
	}
}

func TestReplaceAll(t *testing.T) {
	c := New(nil)
	c.Apply(Notification, Entity{"id": "n1", "is_read": false})
	c.Apply(Notification, Entity{"id": "n2", "is_read": false})

	// Poll result is authoritative: n1 gone, n3 new.
	c.ReplaceAll(Notification, []Entity{
		{"id": "n2", "is_read": true},
		{"id": "n3", "is_read": false},
	})

	if c.Len(Notification) != 2 {
		t.Fatalf("len = %d, want 2", c.Len(Notification))
	}
	if _, ok := c.Get(Notification, "n1"); ok {
		t.Error("n1 survived wholesale replace")
	}
	n2, _ := c.Get(Notification, "n2")
	if n2["is_read"] != true {
		t.Error("n2 not replaced by poll snapshot")
	}
}

func TestRemove(t *testing.T) {
	c := New(nil)
	c.Apply(Notification, Entity{"id": "n1"})
	c.Remove(Notification, "n1")
	if _, ok := c.Get(Notification, "n1"); ok {
		t.Error("n1 still cached after Remove")
	}
	// Removing an absent entry is fine.
	c.Remove(Notification, "n9")
}

// TestPollAndEventConverge checks that a poll snapshot and a live event for
// the same entity converge regardless of arrival order, for the fields both
// carry.
func TestPollAndEventConverge(t *testing.T) {
	event := Entity{"id": "n1", "is_read": true, "message": "ticket closed"}
	poll := []Entity{{"id": "n1", "is_read": true, "message": "ticket closed"}}

	a := New(nil)
	a.Apply(Notification, event)
	a.ReplaceAll(Notification, poll)

	b := New(nil)
	b.ReplaceAll(Notification, poll)
	b.Apply(Notification, event)

	if !reflect.DeepEqual(a.Snapshot(Notification), b.Snapshot(Notification)) {
		t.Errorf("order-dependent result: %v vs %v",
			a.Snapshot(Notification), b.Snapshot(Notification))
	}
}
