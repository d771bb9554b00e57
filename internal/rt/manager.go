package rt

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/dmelo/supportdesk/internal/bus"
	"github.com/dmelo/supportdesk/internal/status"
)

// Options configures a Manager. The HTTP client carries the session cookie
// jar so the websocket handshake authenticates the same way REST calls do.
type Options struct {
	URL               string
	ConnectTimeout    time.Duration
	PollInterval      time.Duration
	ReconnectAttempts int
	HTTPClient        *http.Client
}

// Manager owns the single real-time connection for a profile: dial with a
// bounded timeout, join the topic rooms, feed inbound envelopes to the bus,
// and fall back to notification polling whenever the transport is down.
// Close releases the socket and every timer on all paths.
type Manager struct {
	opts    Options
	bus     *bus.Bus
	machine *status.Machine
	poll    func(context.Context)
	logger  *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	cancel   context.CancelFunc
	stopPoll context.CancelFunc
	done     chan struct{}
}

// NewManager creates a connection manager. poll is the notification
// re-fetch invoked on the polling interval; it must tolerate being called
// while a connection attempt is still in flight.
func NewManager(opts Options, b *bus.Bus, machine *status.Machine, poll func(context.Context), logger *zap.Logger) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = 3
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		opts:    opts,
		bus:     b,
		machine: machine,
		poll:    poll,
		logger:  logger,
	}
}

// Start opens the transport for an authenticated session. A blank userID
// means no session is present (or auth is still loading) and Start is a
// no-op. Runs until Close or ctx cancellation.
func (m *Manager) Start(ctx context.Context, userID string) {
	if userID == "" {
		m.logger.Info("no authenticated session, real-time transport not started")
		return
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return // already running
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.run(ctx)
}

// run drives the connect/read/reconnect loop. Each pass through the loop is
// one connection attempt; after the bounded attempts are spent the manager
// relies solely on polling until Close.
func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}
		_ = m.machine.Transition(status.Connecting)

		conn, err := m.dial(ctx)
		if err != nil {
			m.logger.Warn("transport connect failed", zap.Error(err), zap.Int("attempt", attempts+1))
			_ = m.machine.Transition(status.Polling)
			m.startPolling(ctx)
			attempts++
			if attempts >= m.opts.ReconnectAttempts {
				m.logger.Info("reconnect attempts exhausted, polling only")
				return
			}
			if !sleep(ctx, backoff(attempts)) {
				return
			}
			continue
		}

		// Connected: rooms joined, polling cancelled.
		attempts = 0
		m.setConn(conn)
		_ = m.machine.Transition(status.Connected)
		m.stopPolling()
		m.bus.Emit("conn.connected", nil)

		err = m.readLoop(ctx, conn)
		m.setConn(nil)
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("transport disconnected, falling back to polling", zap.Error(err))
		_ = m.machine.Transition(status.Polling)
		m.startPolling(ctx)
		m.bus.Emit("conn.disconnected", nil)
		attempts++
		if attempts >= m.opts.ReconnectAttempts {
			m.logger.Info("reconnect attempts exhausted, polling only")
			return
		}
		if !sleep(ctx, backoff(attempts)) {
			return
		}
	}
}

// dial opens the websocket and joins the topic rooms, all bounded by the
// connect timeout. A connection that completes after the timeout is closed
// rather than torn into the running state.
func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, m.opts.URL, &websocket.DialOptions{
		HTTPClient: m.opts.HTTPClient,
	})
	if err != nil {
		return nil, err
	}

	for _, room := range Rooms {
		frame, err := joinFrame(room)
		if err != nil {
			_ = conn.Close(websocket.StatusInternalError, "join encode")
			return nil, err
		}
		if err := conn.Write(dialCtx, websocket.MessageText, frame); err != nil {
			_ = conn.Close(websocket.StatusProtocolError, "join write")
			return nil, err
		}
	}
	return conn, nil
}

// readLoop publishes every well-formed inbound envelope on the bus as an
// "rt.<event>" event. Malformed frames are logged and dropped; they never
// kill the connection.
func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		env, err := ParseEnvelope(data)
		if err != nil {
			m.logger.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		m.bus.Emit("rt."+env.Event, env)
	}
}

// startPolling begins the periodic notification re-fetch. One immediate
// fetch runs on entry so a timed-out connect is not blind for a full
// interval. Idempotent while polling is active.
func (m *Manager) startPolling(ctx context.Context) {
	m.mu.Lock()
	if m.stopPoll != nil {
		m.mu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	m.stopPoll = cancel
	m.mu.Unlock()

	go func() {
		if m.poll != nil {
			m.poll(pollCtx)
		}
		ticker := time.NewTicker(m.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if m.poll != nil {
					m.poll(pollCtx)
				}
			case <-pollCtx.Done():
				return
			}
		}
	}()
}

// stopPolling cancels the polling timer if one is active.
func (m *Manager) stopPolling() {
	m.mu.Lock()
	if m.stopPoll != nil {
		m.stopPoll()
		m.stopPoll = nil
	}
	m.mu.Unlock()
}

func (m *Manager) setConn(conn *websocket.Conn) {
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
}

// Close tears down the transport, the run loop and all timers, then drops
// the machine to Disconnected. Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	conn := m.conn
	m.conn = nil
	done := m.done
	if m.stopPoll != nil {
		m.stopPoll()
		m.stopPoll = nil
	}
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "teardown")
	}
	if done != nil {
		<-done
	}
	_ = m.machine.Transition(status.Disconnected)
}

// backoff spaces reconnect attempts: 1s, 2s, 3s...
func backoff(attempt int) time.Duration {
	return time.Duration(attempt) * time.Second
}

// sleep waits for d or until ctx is done, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
