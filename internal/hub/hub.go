package hub

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
)

// ErrClosed is returned when sending to a closed connection.
var ErrClosed = errors.New("connection closed")

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client is the outbound queue the SSE handler drains.
type Client chan []byte

// Conn is a single live client connection (a peer).
type Conn struct {
	id     int64
	UserID uint
	client Client

	mu           sync.Mutex
	closed       bool
	listeners    map[int]func()
	nextListener int
}

// ID returns the connection id, unique within the hub.
func (c *Conn) ID() int64 { return c.id }

// Messages returns the queue of encoded events for this connection.
func (c *Conn) Messages() <-chan []byte { return c.client }

// Send queues an event without blocking. Events are dropped when the
// client is too slow to keep up.
func (c *Conn) Send(event Event) error {
	messageBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.client <- messageBytes:
	default:
		log.Printf("hub: connection %d is full, dropped %s event", c.id, event.Type)
	}
	return nil
}

// Closed reports whether the connection has been closed.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// OnDisconnect registers fn to run once when the connection closes. On a
// connection that is already closed fn runs before OnDisconnect returns.
func (c *Conn) OnDisconnect(fn func()) (cancel func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return func() {}
	}
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.client) // Close the channel to signal the SSE handler to stop.
	listeners := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.listeners = nil
	c.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Hub manages all active connections.
type Hub struct {
	conns  map[int64]*Conn
	nextID int64
	buffer int
	mu     sync.RWMutex
}

// NewHub creates a new Hub whose connections buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		conns:  make(map[int64]*Conn),
		buffer: buffer,
	}
}

// Connect opens a new connection for a user.
func (h *Hub) Connect(userID uint) *Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	conn := &Conn{
		id:        h.nextID,
		UserID:    userID,
		client:    make(Client, h.buffer),
		listeners: make(map[int]func()),
	}
	h.conns[conn.id] = conn
	return conn
}

// Conn returns a live connection by id.
func (h *Hub) Conn(id int64) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[id]
	return c, ok
}

// Disconnect closes a connection and fires its disconnect listeners.
func (h *Hub) Disconnect(id int64) {
	h.mu.Lock()
	conn, ok := h.conns[id]
	delete(h.conns, id)
	h.mu.Unlock()
	if ok {
		conn.close()
	}
}

// DisconnectAll closes every connection.
func (h *Hub) DisconnectAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[int64]*Conn)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
}

// Broadcast sends an event to every connection.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		// Closed connections are cleaned up by Disconnect.
		_ = c.Send(event)
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
