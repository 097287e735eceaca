package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"inditrade-paper/internal/stream"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is enforced by the router
		return true
	},
}

// client is one websocket connection. Each topic it follows is a hub
// subscription forwarded into send.
type client struct {
	id     string
	hub    *stream.Hub
	conn   *websocket.Conn
	send   chan WSMessage
	logger zerolog.Logger

	mu     sync.Mutex
	subs   map[string]<-chan stream.Event
	closed bool
	wg     sync.WaitGroup
}

// handleWebSocket upgrades the connection. Initial topics come from the
// comma separated "topics" query parameter and default to all events.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		hub:  s.engine.Hub(),
		conn: conn,
		send: make(chan WSMessage, sendBuffer),
		subs: make(map[string]<-chan stream.Event),
	}
	c.logger = s.logger.With().Str("client_id", c.id).Logger()

	topics := []string{stream.TopicAll}
	if raw := r.URL.Query().Get("topics"); raw != "" {
		topics = splitTopics(raw)
	}
	for _, topic := range topics {
		c.subscribe(topic)
	}

	c.logger.Debug().Strs("topics", topics).Msg("WebSocket client connected")

	go c.writePump()
	go c.readPump()
}

func splitTopics(raw string) []string {
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

func (c *client) subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if _, ok := c.subs[topic]; ok {
		return
	}

	ch := c.hub.SubscribeWithID(topic, c.id)
	c.subs[topic] = ch
	c.wg.Add(1)
	go c.forward(topic, ch)
}

func (c *client) unsubscribe(topic string) {
	c.mu.Lock()
	ch, ok := c.subs[topic]
	delete(c.subs, topic)
	c.mu.Unlock()

	if ok {
		c.hub.Unsubscribe(topic, ch)
	}
}

// forward copies hub events into the send queue, dropping when the
// client falls behind.
func (c *client) forward(topic string, ch <-chan stream.Event) {
	defer c.wg.Done()
	for event := range ch {
		select {
		case c.send <- WSMessage{Topic: topic, Event: event}:
		default:
			c.logger.Debug().Str("topic", topic).Msg("WebSocket client lagging, event dropped")
		}
	}
}

// close releases every subscription and stops the write pump.
func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for topic, ch := range subs {
		c.hub.Unsubscribe(topic, ch)
	}
	c.wg.Wait()
	close(c.send)
}

func (c *client) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
		c.logger.Debug().Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var req WSSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.logger.Debug().Err(err).Msg("Invalid WebSocket message")
			continue
		}

		switch req.Op {
		case "subscribe":
			for _, topic := range req.Topics {
				c.subscribe(topic)
			}
		case "unsubscribe":
			for _, topic := range req.Topics {
				c.unsubscribe(topic)
			}
		default:
			c.logger.Debug().Str("op", req.Op).Msg("Unknown WebSocket op")
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
