// Package broadcast fans queue events out to connected clients.
package broadcast

import (
	"sync"
)

// Event is a single named message pushed to subscribers. Data is always a
// full snapshot (or empty), never a delta.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
}

// Conn is a live connection to one client.
type Conn interface {
	Send(Event) error
	Close() error
}

// defaultOutboxSize bounds the events queued for a slow client. Overflowing
// events are dropped; the next snapshot supersedes them.
const defaultOutboxSize = 16

type Option func(*Hub)

// WithOutboxSize sets the per-connection event buffer.
func WithOutboxSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.outboxSize = n
		}
	}
}

// WithErrorHandler installs a callback invoked when a connection is evicted
// because Send failed.
func WithErrorHandler(fn func(identity string, err error)) Option {
	return func(h *Hub) { h.onError = fn }
}

// Hub maps client identities to their live connection. Each connection has
// its own outbox and writer goroutine, so a slow client never blocks the
// others or the caller.
type Hub struct {
	mu         sync.Mutex
	clients    map[string]*client
	outboxSize int
	onError    func(identity string, err error)
}

type client struct {
	identity string
	conn     Conn
	outbox   chan Event
	done     chan struct{}
	once     sync.Once
}

func (c *client) stop() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func NewHub(options ...Option) *Hub {
	h := &Hub{
		clients:    make(map[string]*client),
		outboxSize: defaultOutboxSize,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// Register maps identity to conn. A connection previously registered for the
// same identity is closed and replaced.
func (h *Hub) Register(identity string, conn Conn) {
	c := &client{
		identity: identity,
		conn:     conn,
		outbox:   make(chan Event, h.outboxSize),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	old := h.clients[identity]
	h.clients[identity] = c
	h.mu.Unlock()

	if old != nil {
		old.stop()
	}
	go h.pump(c)
}

// Unregister removes identity if it is still mapped to conn, and closes conn.
// It reports whether an entry was removed.
func (h *Hub) Unregister(identity string, conn Conn) bool {
	h.mu.Lock()
	c, ok := h.clients[identity]
	if !ok || c.conn != conn {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, identity)
	h.mu.Unlock()

	c.stop()
	return true
}

func (h *Hub) Lookup(identity string) (Conn, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[identity]
	if !ok {
		return nil, false
	}
	return c.conn, true
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues ev for every connected client. Delivery is best-effort and
// unordered across clients.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		enqueue(c, ev)
	}
}

// NotifyOne queues ev for the connection registered under identity. It
// reports false, and drops ev, if there is none.
func (h *Hub) NotifyOne(identity string, ev Event) bool {
	h.mu.Lock()
	c, ok := h.clients[identity]
	h.mu.Unlock()
	if !ok {
		return false
	}
	return enqueue(c, ev)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
}

func enqueue(c *client, ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.outbox <- ev:
		return true
	default:
		return false
	}
}

func (h *Hub) pump(c *client) {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.outbox:
			if err := c.conn.Send(ev); err != nil {
				h.evict(c, err)
				return
			}
		}
	}
}

func (h *Hub) evict(c *client, err error) {
	h.mu.Lock()
	if h.clients[c.identity] == c {
		delete(h.clients, c.identity)
	}
	h.mu.Unlock()
	c.stop()
	if h.onError != nil {
		h.onError(c.identity, err)
	}
}
