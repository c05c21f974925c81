package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/posebridge/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "posebridge-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopics(t *testing.T) {
	topics := NewTopics("psmove", "rig-a")

	tests := []struct {
		name     string
		builder  func() string
		expected string
	}{
		{"ServiceStatus", topics.ServiceStatus, "psmove/service/status"},
		{"ControllerList", topics.ControllerList, "psmove/controllers/list"},
		{"HMDList", topics.HMDList, "psmove/hmds/list"},
		{"ControllerState", func() string { return topics.ControllerState(2) }, "psmove/controllers/2/state"},
		{"HMDState", func() string { return topics.HMDState(0) }, "psmove/hmds/0/state"},
		{"AllControllerStates", topics.AllControllerStates, "psmove/controllers/+/state"},
		{"AllHMDStates", topics.AllHMDStates, "psmove/hmds/+/state"},
		{"Poll", topics.Poll, "psmove/poll"},
		{"BridgeStatus", topics.BridgeStatus, "posebridge/rig-a/status"},
		{"BridgeConnection", topics.BridgeConnection, "posebridge/rig-a/connection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.builder(); got != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}

func TestNewTopics_Prefix(t *testing.T) {
	if got := NewTopics("", "x").Prefix(); got != DefaultTrackingPrefix {
		t.Errorf("empty prefix = %q, want %q", got, DefaultTrackingPrefix)
	}
	if got := NewTopics("lab/psmove/", "x").Poll(); got != "lab/psmove/poll" {
		t.Errorf("trailing slash Poll() = %q", got)
	}
}

func TestTopics_ParseDeviceState(t *testing.T) {
	topics := NewTopics("psmove", "rig-a")

	tests := []struct {
		topic  string
		kind   string
		id     int
		wantOK bool
	}{
		{"psmove/controllers/0/state", DeviceKindController, 0, true},
		{"psmove/hmds/12/state", DeviceKindHMD, 12, true},
		{"psmove/controllers/list", "", 0, false},
		{"psmove/controllers/x/state", "", 0, false},
		{"psmove/controllers/-1/state", "", 0, false},
		{"psmove/trackers/0/state", "", 0, false},
		{"other/controllers/0/state", "", 0, false},
		{"psmove/controllers/0/state/extra", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			kind, id, ok := topics.ParseDeviceState(tt.topic)
			if ok != tt.wantOK || kind != tt.kind || id != tt.id {
				t.Errorf("ParseDeviceState(%q) = (%q, %d, %v), want (%q, %d, %v)",
					tt.topic, kind, id, ok, tt.kind, tt.id, tt.wantOK)
			}
		})
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "bridge"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "posebridge-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.Order {
		t.Error("Order = false, want ordered delivery")
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Errorf("AutoReconnect = %v, CleanSession = %v", opts.AutoReconnect, opts.CleanSession)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or below minimum version")
	}
}

func TestNewClient_Will(t *testing.T) {
	cfg := testConfig()
	topics := NewTopics("psmove", "rig-a")

	c := newClient(cfg, topics)

	if !c.options.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if c.options.WillTopic != "posebridge/rig-a/status" {
		t.Errorf("WillTopic = %q", c.options.WillTopic)
	}
	if !c.options.WillRetained || c.options.WillQos != 1 {
		t.Errorf("WillRetained = %v, WillQos = %d", c.options.WillRetained, c.options.WillQos)
	}

	var will statusPayload
	if err := json.Unmarshal(c.options.WillPayload, &will); err != nil {
		t.Fatalf("will payload: %v", err)
	}
	if will.Status != "offline" || will.ClientID != "posebridge-test" || will.Reason != "unexpected_disconnect" {
		t.Errorf("will = %+v", will)
	}
}

func TestStatusPayloads(t *testing.T) {
	tests := []struct {
		name       string
		payload    []byte
		wantStatus string
		wantReason string
	}{
		{"online", onlinePayload("c1"), StatusOnline, ""},
		{"offline", offlinePayload("c1"), StatusOffline, "graceful_shutdown"},
		{"will", willPayload("c1"), StatusOffline, "unexpected_disconnect"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got statusPayload
			if err := json.Unmarshal(tt.payload, &got); err != nil {
				t.Fatal(err)
			}
			if got.Status != tt.wantStatus || got.Reason != tt.wantReason || got.ClientID != "c1" || got.Timestamp == "" {
				t.Errorf("payload = %+v", got)
			}
		})
	}
}

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		cfg  config.MQTTBrokerConfig
		want string
	}{
		{config.MQTTBrokerConfig{Host: "127.0.0.1", Port: 1883}, "tcp://127.0.0.1:1883"},
		{config.MQTTBrokerConfig{Host: "broker.lan", Port: 8883, TLS: true}, "ssl://broker.lan:8883"},
		{config.MQTTBrokerConfig{Host: "::1", Port: 1883}, "tcp://[::1]:1883"},
	}
	for _, tt := range tests {
		if got := brokerURL(tt.cfg); got != tt.want {
			t.Errorf("brokerURL(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}

// =============================================================================
// Validation Tests (no broker)
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestPublish_Validation(t *testing.T) {
	client := newClient(testConfig(), NewTopics("psmove", "rig-a"))

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", nil, 0, ErrInvalidTopic},
		{"bad qos", "a/b", nil, 3, ErrInvalidQoS},
		{"oversize", "a/b", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
		{"not connected", "a/b", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := client.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
			if err := client.PublishAsync(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("PublishAsync() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := newClient(testConfig(), NewTopics("psmove", "rig-a"))
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 0, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := client.Subscribe("a/b", 5, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos error = %v", err)
	}
	if err := client.Subscribe("a/b", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}
	if err := client.Subscribe("a/b", 0, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
	if got := client.Subscriptions(); len(got) != 0 {
		t.Errorf("Subscriptions() = %v, want none", got)
	}
	if err := client.Subscribe("psmove/#/state", 0, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("malformed filter error = %v", err)
	}
}

func TestClose_Unconnected(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
	warns  []string
}

func (l *recordingLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestWrapHandler(t *testing.T) {
	client := &Client{}
	logger := &recordingLogger{}
	client.SetLogger(logger)

	var gotTopic string
	var gotPayload []byte
	wrapped := client.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, payload
		return nil
	})
	wrapped(nil, fakeMessage{topic: "psmove/poll", payload: []byte("1")})

	if gotTopic != "psmove/poll" || string(gotPayload) != "1" {
		t.Errorf("handler got (%q, %q)", gotTopic, gotPayload)
	}
	if len(logger.errors) != 0 || len(logger.warns) != 0 {
		t.Errorf("unexpected log output: %+v", logger)
	}
}

func TestWrapHandler_Error(t *testing.T) {
	client := &Client{}
	logger := &recordingLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		return fmt.Errorf("bad frame")
	})
	wrapped(nil, fakeMessage{topic: "t"})

	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one handler error", logger.warns)
	}
}

func TestWrapHandler_Panic(t *testing.T) {
	client := &Client{}
	logger := &recordingLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, fakeMessage{topic: "t"})

	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one recovered panic", logger.errors)
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	client := &Client{}

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	// Must not propagate the panic.
	wrapped(nil, fakeMessage{topic: "t"})
}

func TestConnectionCallbacks(t *testing.T) {
	client := newClient(testConfig(), NewTopics("psmove", "rig-a"))

	var lost error
	client.SetOnDisconnect(func(err error) { lost = err })

	cause := errors.New("eof")
	client.handleDisconnect(cause)

	if !errors.Is(lost, cause) {
		t.Errorf("OnDisconnect got %v, want %v", lost, cause)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after connection lost")
	}
}

func TestHandleConnect_CountsReconnects(t *testing.T) {
	client := newClient(testConfig(), NewTopics("psmove", "rig-a"))
	// Unconnected paho client: publishes fail fast instead of blocking.
	client.client = pahomqtt.NewClient(client.options)
	logger := &recordingLogger{}
	client.SetLogger(logger)

	calls := 0
	client.SetOnConnect(func() { calls++ })

	client.handleConnect()
	if client.Reconnects() != 0 {
		t.Errorf("Reconnects() = %d after first connect, want 0", client.Reconnects())
	}
	client.handleDisconnect(errors.New("eof"))
	client.handleConnect()

	if client.Reconnects() != 1 {
		t.Errorf("Reconnects() = %d, want 1", client.Reconnects())
	}
	if calls != 2 {
		t.Errorf("OnConnect calls = %d, want 2", calls)
	}
	if len(logger.infos) != 1 {
		t.Errorf("info logs = %v, want one reconnect message", logger.infos)
	}
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		topic string
		valid bool
	}{
		{"psmove/service/status", true},
		{"psmove/controllers/+/state", true},
		{"psmove/#", true},
		{"#", true},
		{"+", true},
		{"+/+/state", true},
		{"", false},
		{"psmove/#/state", false},
		{"psmove/controllers#", false},
		{"psmove/controllers/+1/state", false},
		{"psmove/a+b", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			err := validateFilter(tt.topic)
			if tt.valid && err != nil {
				t.Errorf("validateFilter(%q) error = %v", tt.topic, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidTopic) {
				t.Errorf("validateFilter(%q) error = %v, want ErrInvalidTopic", tt.topic, err)
			}
		})
	}
}

func TestSubscriptions_Sorted(t *testing.T) {
	client := newClient(testConfig(), NewTopics("psmove", "rig-a"))
	handler := func(string, []byte) error { return nil }
	for _, topic := range []string{"psmove/poll", "psmove/controllers/list", "psmove/service/status"} {
		client.subscriptions[topic] = subscription{handler: handler}
	}

	got := client.Subscriptions()
	want := []string{"psmove/controllers/list", "psmove/poll", "psmove/service/status"}
	if len(got) != len(want) {
		t.Fatalf("Subscriptions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Subscriptions()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if !client.HasSubscription("psmove/poll") || client.SubscriptionCount() != 3 {
		t.Error("tracked subscriptions out of sync")
	}
}
