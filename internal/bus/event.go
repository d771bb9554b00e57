package bus

import "time"

// Event is a domain event published on the in-process bus.
//
// Kinds are dot-namespaced: "rt.*" for raw transport envelopes, "conn.*" for
// connectivity changes, "cache.*" for reconciled entity updates and "outbox.*"
// for the send lifecycle.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
