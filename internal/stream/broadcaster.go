// Package stream exposes a live feed of minted Tokens over WebSocket, so
// a dashboard or debugging client can watch id generation happen in real
// time without polling. Like internal/events, this is a pure
// observability side channel: a stalled or disconnected client never
// blocks or slows down NextToken.
//
// Grounded on Outblock-flowindex/backend/internal/api/websocket.go (Hub,
// Client, the register/unregister/broadcast channel loop).
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// MintedMessage is one JSON frame pushed to every connected client.
type MintedMessage struct {
	ID       uint64    `json:"id"`
	Cursor   uint32    `json:"cursor"`
	MintedAt time.Time `json:"minted_at"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans a stream of MintedMessage broadcasts out to every connected
// WebSocket client.
type Hub struct {
	logger *zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

// NewHub constructs a Hub. Call Run in its own goroutine to start
// servicing it.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
	}
}

// Run services the Hub's register/unregister/broadcast channels until
// done is closed.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client: drop it rather than let a stalled
					// reader apply backpressure to every other client.
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()

		case <-done:
			return
		}
	}
}

// Broadcast announces one minted Token to every connected client.
func (h *Hub) Broadcast(id uint64, cursor uint32) {
	data, err := json.Marshal(MintedMessage{ID: id, Cursor: cursor, MintedAt: time.Now()})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal minted message")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn().Msg("broadcast channel full, dropping minted message")
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams broadcasts to
// it until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 32)}
	h.register <- c

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards inbound messages (this is a push-only feed) and
// exists only to detect the client closing the connection.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
