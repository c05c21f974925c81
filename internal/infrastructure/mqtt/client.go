package mqtt

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/posebridge/internal/infrastructure/config"
)

// Logger is the logging the client needs. *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler receives one message. Handlers run one at a time in
// arrival order on the paho router goroutine and must not block.
// A returned error is logged.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is the bridge's broker connection. It announces the bridge on
// Topics.BridgeStatus (retained, with an offline will), re-subscribes every
// tracked filter after a reconnect, and is safe for concurrent use.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	topics  Topics

	connected atomic.Bool
	connects  atomic.Uint64

	mu            sync.RWMutex
	subscriptions map[string]subscription
	onConnect     func()
	onDisconnect  func(err error)
	logger        Logger
}

// Connect dials the broker and waits up to defaultConnectTimeout for the
// session.
//
// Parameters:
//   - cfg: MQTT section of config.yaml
//   - topics: Topic layout for this bridge instance
//
// Returns:
//   - *Client: Connected client
//   - error: Wrapped ErrConnectionFailed
func Connect(cfg config.MQTTConfig, topics Topics) (*Client, error) {
	c := newClient(cfg, topics)
	c.client = pahomqtt.NewClient(c.options)

	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs asynchronously.
	c.connected.Store(true)
	return c, nil
}

func newClient(cfg config.MQTTConfig, topics Topics) *Client {
	c := &Client{
		cfg:           cfg,
		topics:        topics,
		subscriptions: make(map[string]subscription),
		logger:        noopLogger{},
	}

	c.options = buildClientOptions(cfg)
	c.options.SetWill(topics.BridgeStatus(), string(willPayload(cfg.Broker.ClientID)), willQoS, true)
	c.options.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	c.options.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })
	c.options.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log().Warn("MQTT reconnecting", "client_id", cfg.Broker.ClientID)
	})
	return c
}

// handleConnect runs on the first connect and on every reconnect.
func (c *Client) handleConnect() {
	c.connected.Store(true)
	if n := c.connects.Add(1); n > 1 {
		c.log().Info("MQTT reconnected", "reconnects", n-1)
	}

	c.restoreSubscriptions()
	c.client.Publish(c.topics.BridgeStatus(), byte(c.cfg.QoS), true, onlinePayload(c.cfg.Broker.ClientID))

	c.mu.RLock()
	callback := c.onConnect
	c.mu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connected.Store(false)

	c.mu.RLock()
	callback := c.onDisconnect
	c.mu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-issues every tracked filter. The tracking service
// retains its status and list topics, so the broker replays them at once.
func (c *Client) restoreSubscriptions() {
	c.mu.RLock()
	subs := maps.Clone(c.subscriptions)
	c.mu.RUnlock()

	for topic, sub := range subs {
		token := c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
		go func() {
			if err := awaitToken(token, ErrSubscribeFailed); err != nil {
				c.log().Error("restoring MQTT subscription", "topic", topic, "error", err)
			}
		}()
	}
}

// Close publishes a graceful offline status and disconnects. It is safe to
// call on a client that never connected.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.client.Publish(c.topics.BridgeStatus(), byte(c.cfg.QoS), true, offlinePayload(c.cfg.Broker.ClientID))
		token.WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(disconnectQuiesceMillis)
	c.connected.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the broker session is up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.connected.Load() && c.client.IsConnected()
}

// Reconnects returns how many times the session came back after a loss.
func (c *Client) Reconnects() uint64 {
	n := c.connects.Load()
	if n == 0 {
		return 0
	}
	return n - 1
}

// SetOnConnect registers a callback run each time the session comes up,
// after subscriptions have been re-issued.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback run when the session is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger replaces the logger. A nil logger discards output.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.logger == nil {
		return noopLogger{}
	}
	return c.logger
}

// wrapHandler adapts handler to paho, logging returned errors and
// recovering panics so one bad frame cannot stop the router.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log().Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.log().Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
