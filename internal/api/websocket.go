package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/posebridge/internal/infrastructure/config"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// wsSendBufferSize is how many messages a client may lag behind.
const wsSendBufferSize = 64

// WebSocket limits applied when the config leaves them unset.
const (
	defaultWSMaxMessageSize = 8192
	defaultWSPingInterval   = 30
	defaultWSPongTimeout    = 10
)

// WSMessage is one frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is an inbound frame with its payload left encoded.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSClient is one connected WebSocket peer.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn

	mu            sync.RWMutex
	send          chan []byte
	closed        bool
	subscriptions map[string]struct{}
}

// wsTiming holds the keepalive intervals derived from config.
type wsTiming struct {
	maxMessage int64
	ping       time.Duration
	pongWait   time.Duration
}

func newWSTiming(cfg config.WebSocketConfig) wsTiming {
	return wsTiming{
		maxMessage: int64(cfg.MaxMessageSize),
		ping:       time.Duration(cfg.PingInterval) * time.Second,
		pongWait:   time.Duration(cfg.PongTimeout) * time.Second,
	}
}

// readDeadline is how long the peer may stay silent: one ping interval plus
// the time allowed for its pong.
func (t wsTiming) readDeadline() time.Time {
	return time.Now().Add(t.ping + t.pongWait)
}

func withWSDefaults(cfg config.WebSocketConfig) config.WebSocketConfig {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultWSMaxMessageSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultWSPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultWSPongTimeout
	}
	return cfg
}

// The API binds to a local address, so any origin is accepted.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func newWSClient(hub *Hub, conn *websocket.Conn, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	return &WSClient{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
}

// handleWebSocket upgrades the request and starts the client's pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn, ChannelConnectionAll)
	timing := newWSTiming(s.wsCfg)

	go client.writePump(timing)
	s.hub.Register(client)
	go client.readPump(timing)
}

func (c *WSClient) readPump(t wsTiming) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(t.maxMessage)
	c.conn.SetReadDeadline(t.readDeadline()) //nolint:errcheck // Failure surfaces on read
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(t.readDeadline())
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(t.readDeadline()) //nolint:errcheck // Failure surfaces on read
		c.handleMessage(data)
	}
}

func (c *WSClient) writePump(t wsTiming) {
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(t.pongWait)) //nolint:errcheck // Failure surfaces on write
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // Peer may already be gone
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.updateSubscriptions(req)
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

func (c *WSClient) updateSubscriptions(req wsRequest) {
	var sub WSSubscribePayload
	if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &sub) != nil {
		c.reply(req.ID, WSTypeError, errorPayload("invalid "+req.Type+" payload"))
		return
	}

	subscribe := req.Type == WSTypeSubscribe
	c.mu.Lock()
	for _, ch := range sub.Channels {
		if subscribe {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "subscribed"
	if !subscribe {
		key = "unsubscribed"
	}
	c.reply(req.ID, WSTypeResponse, map[string]any{key: sub.Channels})
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

// trySend queues data without blocking. It returns false when the client
// has gone or its buffer is full.
func (c *WSClient) trySend(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close ends the write pump. Only the first call has an effect.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for sub := range c.subscriptions {
		if matchChannel(sub, channel) {
			return true
		}
	}
	return false
}
