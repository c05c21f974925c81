// Package mqtt provides MQTT client connectivity for posebridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Topic naming for the tracking service and the bridge itself
//
// # Architecture
//
// The tracking service publishes device lists, per-device state frames and a
// poll marker after every cycle. The bridge subscribes to those and publishes
// its own retained status and connection state:
//
//	Tracking Service → MQTT Broker → posebridge → shared-memory consumer
//	                                     ↓
//	                     posebridge/{site}/status, /connection
//
// # Ordering
//
// Options enable order-preserving delivery, so handlers run one at a time in
// arrival order. A poll marker therefore never overtakes the frames that were
// published before it. Handlers must hand work off rather than block.
//
// # Security Considerations
//
//   - TLS should be enabled when the broker is not on the loopback interface
//   - Credentials are best supplied via environment variables
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.Tracking.TopicPrefix, cfg.Site.ID)
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.AllControllerStates(), 0,
//	    func(topic string, payload []byte) error {
//	        kind, id, _ := topics.ParseDeviceState(topic)
//	        log.Printf("%s %d: %s", kind, id, payload)
//	        return nil
//	    })
package mqtt
