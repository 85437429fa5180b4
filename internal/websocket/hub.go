package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 30 * time.Second

	// Send pings to the peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Buffered outgoing messages per client; slow readers past this are
	// disconnected rather than allowed to block the publisher.
	clientBufferSize = 64
)

// Event is the wire format pushed to attempt subscribers
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// client is one websocket subscriber of one attempt
type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub fans attempt events out to websocket subscribers. Subscriptions are
// keyed by attempt ID; one attempt usually has a single subscriber (the exam
// page), but reconnect races may briefly leave two.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*client]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[*client]struct{}),
	}
}

// Publish implements the attempt manager's event sink: it serializes the
// event once and queues it to every subscriber of the attempt. Clients whose
// buffer is full are dropped.
func (h *Hub) Publish(attemptID string, eventType string, data interface{}) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		log.Printf("[WSHub] failed to marshal %s event: %v", eventType, err)
		return
	}

	// Sends happen under the read lock and unsubscribe closes under the write
	// lock, so a send can never race the close of a departing client's channel.
	// The sends are non-blocking, so holding the lock is cheap.
	h.mu.RLock()
	var slow []*client
	for c := range h.subscribers[attemptID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("[WSHub] dropping slow subscriber of attempt %s", attemptID)
		h.unsubscribe(attemptID, c)
	}
}

// Subscribe attaches a websocket connection to an attempt's event stream and
// blocks until the connection closes. The caller owns the upgrade; the hub
// owns the connection from here on.
func (h *Hub) Subscribe(attemptID string, conn *websocket.Conn) {
	c := &client{
		conn: conn,
		send: make(chan []byte, clientBufferSize),
	}

	h.mu.Lock()
	if h.subscribers[attemptID] == nil {
		h.subscribers[attemptID] = make(map[*client]struct{})
	}
	h.subscribers[attemptID][c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	c.readPump() // blocks until the peer disconnects

	h.unsubscribe(attemptID, c)
}

// SubscriberCount returns how many connections listen to an attempt
func (h *Hub) SubscriberCount(attemptID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[attemptID])
}

// unsubscribe removes the client and closes its send channel. The close stays
// inside the write lock: Publish sends only under the read lock, so by the
// time the channel closes no sender can still hold a reference from the map.
func (h *Hub) unsubscribe(attemptID string, c *client) {
	h.mu.Lock()
	if set, ok := h.subscribers[attemptID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			if len(set) == 0 {
				delete(h.subscribers, attemptID)
			}
		}
	}
	c.close()
	h.mu.Unlock()
}

// readPump discards inbound frames; the stream is server-to-client only. Its
// job is pong handling and noticing the disconnect.
func (c *client) readPump() {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the send channel to the connection and keeps it alive
// with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
