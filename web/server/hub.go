package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/df07/go-corner-culling/pkg/core"
)

// AllViewers addresses every client regardless of its viewer filter
const AllViewers uint64 = 0

// client is one websocket connection. viewer restricts frame messages to
// that viewer's results; AllViewers receives everything.
type client struct {
	conn   *websocket.Conn
	viewer uint64
	lock   sync.Mutex
}

type message struct {
	viewer uint64
	kind   int // websocket.BinaryMessage or websocket.TextMessage
	data   []byte
}

// Hub fans culling frames and console messages out to websocket clients
type Hub struct {
	clients      map[*websocket.Conn]*client
	broadcast    chan message
	register     chan *client
	unregister   chan *websocket.Conn
	done         chan struct{}
	mu           sync.Mutex
	writeTimeout time.Duration
	logger       core.Logger
}

// NewHub creates a hub. A zero writeTimeout disables write deadlines.
func NewHub(writeTimeout time.Duration, logger core.Logger) *Hub {
	return &Hub{
		clients:      make(map[*websocket.Conn]*client),
		broadcast:    make(chan message, 4096), // Buffered so the frame loop never waits on a slow client
		register:     make(chan *client),
		unregister:   make(chan *websocket.Conn),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Run delivers messages until ctx is done, then closes every connection
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.conn] = c
			h.mu.Unlock()
			h.logger.Printf("[Hub] client registered: %s (viewer %d)\n", c.conn.RemoteAddr(), c.viewer)
		case conn := <-h.unregister:
			h.mu.Lock()
			if c, ok := h.clients[conn]; ok {
				c.lock.Lock()
				delete(h.clients, conn)
				conn.Close()
				c.lock.Unlock()
				h.logger.Printf("[Hub] client unregistered: %s\n", conn.RemoteAddr())
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Register adds a connection. It closes conn instead once the hub stopped.
func (h *Hub) Register(conn *websocket.Conn, viewer uint64) {
	select {
	case h.register <- &client{conn: conn, viewer: viewer}:
	case <-h.done:
		conn.Close()
	}
}

// Unregister removes and closes a connection
func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

func (h *Hub) deliver(msg message) {
	// Collect targets so that writes happen outside the hub lock
	h.mu.Lock()
	var targets []*client
	for _, c := range h.clients {
		if msg.viewer == AllViewers || c.viewer == AllViewers || c.viewer == msg.viewer {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := h.write(c, msg.kind, msg.data); err != nil {
			h.logger.Printf("[Hub] send to %s failed: %v\n", c.conn.RemoteAddr(), err)
			c.conn.Close()
			h.mu.Lock()
			delete(h.clients, c.conn)
			h.mu.Unlock()
		}
	}
}

func (h *Hub) write(c *client, kind int, data []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if h.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(kind, data)
}

// WriteSafe sends directly to one registered connection
func (h *Hub) WriteSafe(conn *websocket.Conn, kind int, data []byte) error {
	h.mu.Lock()
	c, ok := h.clients[conn]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("client %s not registered", conn.RemoteAddr())
	}
	return h.write(c, kind, data)
}

// Broadcast queues a binary message for the clients watching viewer. It
// drops the message when the queue is full.
func (h *Hub) Broadcast(viewer uint64, data []byte) bool {
	return h.enqueue(message{viewer: viewer, kind: websocket.BinaryMessage, data: data})
}

// BroadcastText queues a text message for every client
func (h *Hub) BroadcastText(data []byte) bool {
	return h.enqueue(message{viewer: AllViewers, kind: websocket.TextMessage, data: data})
}

func (h *Hub) enqueue(msg message) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		return false
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
