package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"net"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/posebridge/internal/infrastructure/config"
)

const (
	defaultConnectTimeout   = 10 * time.Second
	defaultPublishTimeout   = 5 * time.Second
	defaultKeepAlive        = 30 * time.Second
	disconnectQuiesceMillis = 1000

	maxQoS  = 2
	willQoS = 1

	tlsMinVersion = tls.VersionTLS12
)

// Bridge status values published on Topics.BridgeStatus.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// brokerURL returns the paho server URL for cfg.
func brokerURL(cfg config.MQTTBrokerConfig) string {
	scheme := "tcp://"
	if cfg.TLS {
		scheme = "ssl://"
	}
	return scheme + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// buildClientOptions maps the MQTT config onto paho options. The will and
// the connection handlers are added by newClient.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true). // state is retained or streamed, nothing to resume
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive).
		// A poll marker must never overtake the frames published before it.
		SetOrderMatters(true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	return opts
}

// statusPayload is the retained body on the bridge status topic.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusMessage(status, clientID, reason string) []byte {
	data, _ := json.Marshal(statusPayload{ //nolint:errcheck // Plain strings always marshal
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return data
}

func onlinePayload(clientID string) []byte {
	return statusMessage(StatusOnline, clientID, "")
}

func offlinePayload(clientID string) []byte {
	return statusMessage(StatusOffline, clientID, "graceful_shutdown")
}

// willPayload is what the broker publishes if the bridge drops without
// closing.
func willPayload(clientID string) []byte {
	return statusMessage(StatusOffline, clientID, "unexpected_disconnect")
}
