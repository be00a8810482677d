// Package wsfeed exposes collected quotes to websocket subscribers.
// Delivery is best-effort: a slow client is dropped, never waited on.
package wsfeed

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson/jwriter"
	"github.com/rs/zerolog"

	"github.com/anv-het/bse-udp/quote"
)

const (
	writeWait      = 5 * time.Second
	clientBacklog  = 64
	readLimitBytes = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The feed is a local tool; subscribers are trusted.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans quote batches out to every connected websocket client.
type Hub struct {
	log zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub. Clients attach via ServeHTTP.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientBacklog),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Str("remote", conn.RemoteAddr().String()).Int("clients", n).Msg("subscriber connected")

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Publish serializes each quote to a JSON text frame and queues it for
// every subscriber. Implements the receiver's Publisher.
func (h *Hub) Publish(quotes []*quote.Quote) {
	h.mu.Lock()
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return
	}
	frames := make([][]byte, 0, len(quotes))
	for _, q := range quotes {
		w := jwriter.Writer{}
		q.MarshalEasyJSON(&w)
		buf, err := w.BuildBytes()
		if err != nil {
			continue
		}
		frames = append(frames, buf)
	}
	for c := range h.clients {
		for _, frame := range frames {
			select {
			case c.send <- frame:
				continue
			default:
			}
			// Backlog full; the write loop drains what is queued and exits.
			close(c.send)
			delete(h.clients, c)
			h.log.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("dropping slow subscriber")
			break
		}
	}
	h.mu.Unlock()
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.drop(c)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(writeWait))
}

// readLoop drains client frames so connection close is noticed; the
// feed is one-directional and inbound payloads are discarded.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(readLimitBytes)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}
