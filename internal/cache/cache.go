package cache

import (
	"sync"

	"github.com/dmelo/supportdesk/internal/bus"
)

// Type identifies the kind of entity held in the cache. Values match the
// related_type strings the backend uses in notification payloads.
type Type string

const (
	Ticket       Type = "ticket"
	Comment      Type = "comment"
	User         Type = "user"
	KBArticle    Type = "kb_article"
	Attachment   Type = "attachment"
	Conversation Type = "conversation"
	Message      Type = "message"
	Notification Type = "notification"
)

// Entity is an opaque JSON record identified by a string id. The cache
// does not interpret fields beyond "id"; relationship integrity is the
// backend's job.
type Entity map[string]any

// ID returns the entity's id field, or "" if absent or not a string.
func (e Entity) ID() string {
	id, _ := e["id"].(string)
	return id
}

// Clone returns a shallow copy of the entity.
func (e Entity) Clone() Entity {
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Update is the payload published on the bus for every applied cache change.
type Update struct {
	Type   Type
	Entity Entity
}

// Cache holds the latest known snapshot of every entity seen on the
// real-time stream, keyed by type then id. Values are last-write-wins by
// arrival order; applying the same update twice is a no-op by construction.
type Cache struct {
	mu   sync.RWMutex
	data map[Type]map[string]Entity
	bus  *bus.Bus
}

// New creates an empty cache. The bus may be nil in tests.
func New(b *bus.Bus) *Cache {
	return &Cache{
		data: make(map[Type]map[string]Entity),
		bus:  b,
	}
}

// Apply merges fields into the cached snapshot for (t, fields["id"]),
// creating the entry if absent. New field values win on conflict. The
// merged snapshot is returned and published as a "cache.updated" event.
// Fields without an id are rejected by returning nil.
func (c *Cache) Apply(t Type, fields Entity) Entity {
	id := fields.ID()
	if id == "" {
		return nil
	}

	c.mu.Lock()
	byID := c.data[t]
	if byID == nil {
		byID = make(map[string]Entity)
		c.data[t] = byID
	}
	merged := Merge(byID[id], fields)
	byID[id] = merged
	snapshot := merged.Clone()
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.Emit("cache.updated", Update{Type: t, Entity: snapshot})
	}
	return snapshot
}

// Get returns a copy of the cached snapshot for (t, id).
func (c *Cache) Get(t Type, id string) (Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[t][id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Snapshot returns a copy of all cached entities of the given type.
func (c *Cache) Snapshot(t Type) map[string]Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Entity, len(c.data[t]))
	for id, e := range c.data[t] {
		out[id] = e.Clone()
	}
	return out
}

// Len returns the number of cached entities of the given type.
func (c *Cache) Len(t Type) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data[t])
}

// ReplaceAll swaps the whole slice for a type with authoritative data,
// used by the polling fallback where the REST response is a full snapshot.
func (c *Cache) ReplaceAll(t Type, items []Entity) {
	byID := make(map[string]Entity, len(items))
	for _, item := range items {
		if id := item.ID(); id != "" {
			byID[id] = item.Clone()
		}
	}

	c.mu.Lock()
	c.data[t] = byID
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.Emit("cache.replaced", Update{Type: t})
	}
}

// Remove deletes the cached snapshot for (t, id), mirroring an explicit
// server-side delete. Removing an absent entry is a no-op.
func (c *Cache) Remove(t Type, id string) {
	c.mu.Lock()
	_, existed := c.data[t][id]
	delete(c.data[t], id)
	c.mu.Unlock()

	if existed && c.bus != nil {
		c.bus.Emit("cache.removed", Update{Type: t, Entity: Entity{"id": id}})
	}
}

// Merge returns the shallow merge of old and update; update's fields win.
// Either argument may be nil.
func Merge(old, update Entity) Entity {
	out := make(Entity, len(old)+len(update))
	for k, v := range old {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}
