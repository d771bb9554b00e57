package cache

// List reconciliation helpers. All of these are pure: the input slice is
// never mutated, so callers can hold the previous list for rendering while
// the next one is computed. An id appears at most once in the result.

// UpsertNewestFirst merges item into list keyed by id. An existing entry is
// replaced in place by Merge(old, item); a new entry is prepended, which
// keeps most-recent-first ordering for ticket, notification and conversation
// lists. Items without an id are ignored.
func UpsertNewestFirst(list []Entity, item Entity) []Entity {
	id := item.ID()
	if id == "" {
		return list
	}
	for i, existing := range list {
		if existing.ID() == id {
			out := make([]Entity, len(list))
			copy(out, list)
			out[i] = Merge(existing, item)
			return out
		}
	}
	out := make([]Entity, 0, len(list)+1)
	out = append(out, item.Clone())
	out = append(out, list...)
	return out
}

// UpsertComment merges a comment into a chronological (oldest-first) comment
// list: existing entries are replaced in place, new ones appended. When
// ticketID is non-empty the list is scoped to that ticket and comments for
// other tickets are ignored unchanged.
func UpsertComment(list []Entity, item Entity, ticketID string) []Entity {
	if ticketID != "" {
		owner, _ := item["ticket_id"].(string)
		if owner != ticketID {
			return list
		}
	}
	id := item.ID()
	if id == "" {
		return list
	}
	for i, existing := range list {
		if existing.ID() == id {
			out := make([]Entity, len(list))
			copy(out, list)
			out[i] = Merge(existing, item)
			return out
		}
	}
	out := make([]Entity, 0, len(list)+1)
	out = append(out, list...)
	out = append(out, item.Clone())
	return out
}
