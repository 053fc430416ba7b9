package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Intents may carry upload descriptors, so allow more than a bare command.
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message types exchanged with clients.
const (
	TypeIntent       = "intent"
	TypeIntentResult = "intent:result"
	TypeIntentError  = "intent:error"
)

// IntentHandler applies an intent payload for a session and returns the reply payload.
type IntentHandler func(sessionID string, payload json.RawMessage) (interface{}, error)

// SessionResolver extracts the library session id from the upgrade request.
type SessionResolver func(c echo.Context) string

// outgoing is a frame addressed to one session, one client, or everyone.
type outgoing struct {
	session string
	client  *Client
	data    []byte
}

// Hub manages WebSocket connections and routes frames by library session.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outgoing
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     zerolog.Logger

	onIntent       IntentHandler
	resolveSession SessionResolver
}

// Client represents a WebSocket connection bound to a session.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

// Message represents a WebSocket message.
type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
}

// inboundMessage is a client frame whose payload is decoded by the handler.
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outgoing, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With().Str("component", "websocket").Logger(),
		resolveSession: func(c echo.Context) string {
			return c.QueryParam("session")
		},
	}
}

// SetIntentHandler registers the handler for intent messages.
func (h *Hub) SetIntentHandler(handler IntentHandler) {
	h.onIntent = handler
}

// SetSessionResolver replaces how upgrade requests are mapped to sessions.
func (h *Hub) SetSessionResolver(resolver SessionResolver) {
	h.resolveSession = resolver
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.WSConnected()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.removeLocked(client)
			}
			h.mu.Unlock()

		case out := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if out.client != nil && client != out.client {
					continue
				}
				if out.session != "" && client.sessionID != out.session {
					continue
				}
				select {
				case client.send <- out.data:
				default:
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// removeLocked drops a client. Caller holds the write lock.
func (h *Hub) removeLocked(client *Client) {
	delete(h.clients, client)
	close(client.send)
	metrics.WSDisconnected()
}

// handleIncoming processes one message from client. It runs on the client's
// read loop, so a client's intents are applied in the order they were sent.
func (h *Hub) handleIncoming(client *Client, message []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		h.logger.Debug().Err(err).Msg("Ignoring malformed websocket message")
		return
	}

	switch msg.Type {
	case TypeIntent:
		if h.onIntent == nil {
			return
		}
		result, err := h.onIntent(client.sessionID, msg.Payload)
		if err != nil {
			h.sendTo(client, TypeIntentError, map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		h.sendTo(client, TypeIntentResult, result)
	}
}

func (h *Hub) enqueue(out outgoing, msgType string, payload interface{}) error {
	msg := Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	out.data = data
	h.broadcast <- out
	return nil
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msgType string, payload interface{}) error {
	return h.enqueue(outgoing{}, msgType, payload)
}

// SendToSession sends a message to every client of one library session.
func (h *Hub) SendToSession(sessionID, msgType string, payload interface{}) error {
	if sessionID == "" {
		return nil
	}
	return h.enqueue(outgoing{session: sessionID}, msgType, payload)
}

func (h *Hub) sendTo(client *Client, msgType string, payload interface{}) {
	if err := h.enqueue(outgoing{client: client}, msgType, payload); err != nil {
		h.logger.Warn().Err(err).Str("type", msgType).Msg("Failed to encode websocket reply")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SessionClientCount returns the number of clients attached to a session.
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients {
		if client.sessionID == sessionID {
			n++
		}
	}
	return n
}

// HandleWebSocket handles WebSocket connection upgrade.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	sessionID := h.resolveSession(c)
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session is required")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Str("session", c.sessionID).Msg("Websocket closed unexpectedly")
			}
			break
		}

		c.hub.handleIncoming(c, message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Send any queued messages as separate frames
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
