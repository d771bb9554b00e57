package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmelo/supportdesk/internal/bus"
)

// State represents the real-time connectivity state for a profile.
type State string

const (
	// Disconnected means no session is active: before login, after logout,
	// or after teardown.
	Disconnected State = "DISCONNECTED"
	// Connecting means a transport dial is in flight, bounded by the
	// connect timeout.
	Connecting State = "CONNECTING"
	// Connected means the transport acked the connection and rooms are joined.
	Connected State = "CONNECTED"
	// Polling means the transport is down and notifications are re-fetched
	// over REST on a fixed interval.
	Polling State = "POLLING"
)

// validTransitions defines allowed state transitions.
//
// CONNECTING may fall to POLLING (timeout or dial error) or rise to
// CONNECTED (ack in time). POLLING returns to CONNECTED directly when a
// late or retried dial succeeds, without discarding reconciled state.
// Any state may drop to DISCONNECTED on logout or teardown.
var validTransitions = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Connected, Polling, Disconnected},
	Connected:    {Polling, Disconnected},
	Polling:      {Connected, Connecting, Disconnected},
}

// Machine tracks and enforces connectivity state transitions, publishing
// each change on the bus.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Disconnected state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Disconnected,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition
// is invalid. Transitioning to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if to == m.current {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      "conn.status_changed",
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
