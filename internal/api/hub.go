package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/posebridge/internal/bridge"
	"github.com/nerrad567/posebridge/internal/infrastructure/config"
	"github.com/nerrad567/posebridge/internal/infrastructure/logging"
)

// ChannelConnectionAll matches every connection.* event. New clients start
// subscribed to it.
const ChannelConnectionAll = "connection.*"

// ConnectionEvent is the payload of connection.* events. The host publishes
// the same document on the bridge connection topic.
type ConnectionEvent struct {
	State     string `json:"state"`
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Slots     int    `json:"slots"`
	Timestamp string `json:"timestamp"`
}

// NewConnectionEvent builds an event for state, stamped with the current time.
func NewConnectionEvent(state bridge.ConnectionState, sessionID, reason string, slots int) ConnectionEvent {
	return ConnectionEvent{
		State:     state.String(),
		SessionID: sessionID,
		Reason:    reason,
		Slots:     slots,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Channel returns the hub channel of the event, e.g. "connection.connected".
func (e ConnectionEvent) Channel() string {
	return "connection." + e.State
}

// Hub fans events out to WebSocket clients. It remembers the last
// connection event so a client that joins mid-session learns the current
// state straight away.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
	last    *outbound

	dropped atomic.Uint64
}

// outbound is an encoded event and the channel it was sent on.
type outbound struct {
	channel string
	data    []byte
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for client := range clients {
		client.close()
	}
}

// Register adds client and replays the last connection event to it. The
// replay is queued under the same lock BroadcastConnection holds, so the
// client never sees an older state after a newer one.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	if h.last != nil {
		h.deliver(client, *h.last)
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "clients", count)
}

// Unregister removes client and closes its send channel. Calling it twice
// is harmless.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	client.close()
	h.logger.Debug("websocket client disconnected", "clients", count)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// BroadcastConnection sends ev on its connection.* channel and keeps it for
// clients that register later.
func (h *Hub) BroadcastConnection(ev ConnectionEvent) {
	msg, ok := h.encode(ev.Channel(), ev)
	if !ok {
		return
	}

	h.mu.Lock()
	h.last = &msg
	sent := 0
	for client := range h.clients {
		if h.deliver(client, msg) {
			sent++
		}
	}
	h.mu.Unlock()

	if sent > 0 {
		h.logger.Debug("websocket event sent", "channel", msg.channel, "recipients", sent)
	}
}

func (h *Hub) encode(channel string, payload any) (outbound, bool) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return outbound{}, false
	}
	return outbound{channel: channel, data: data}, true
}

// deliver queues msg for client if it subscribes to the channel. It reports
// whether the message was queued. It never blocks, so callers may hold h.mu.
func (h *Hub) deliver(client *WSClient, msg outbound) bool {
	if !client.isSubscribed(msg.channel) {
		return false
	}
	if !client.trySend(msg.data) {
		h.dropped.Add(1)
		return false
	}
	return true
}

// matchChannel reports whether subscription covers channel, either exactly
// or as a "prefix.*" pattern.
func matchChannel(subscription, channel string) bool {
	if subscription == channel {
		return true
	}
	prefix, ok := strings.CutSuffix(subscription, "*")
	return ok && strings.HasPrefix(channel, prefix)
}
