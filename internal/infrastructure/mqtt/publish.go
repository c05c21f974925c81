package mqtt

import "fmt"

// maxPayloadSize caps a single message at 1 MiB.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker to acknowledge it
// (for QoS 0, until it is written to the connection).
//
// Retain state topics such as the bridge connection; never retain streamed
// frames.
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or a wrapped
//     ErrPublishFailed
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := c.checkPublish(topic, payload, qos); err != nil {
		return err
	}
	return awaitToken(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// PublishAsync queues payload and returns without waiting, so the tracking
// dispatcher can call it. Failures after queueing are logged.
func (c *Client) PublishAsync(topic string, payload []byte, qos byte, retained bool) error {
	if err := c.checkPublish(topic, payload, qos); err != nil {
		return err
	}

	token := c.client.Publish(topic, qos, retained, payload)
	go func() {
		if err := awaitToken(token, ErrPublishFailed); err != nil {
			c.log().Warn("MQTT async publish failed", "topic", topic, "error", err)
		}
	}()
	return nil
}

func (c *Client) checkPublish(topic string, payload []byte, qos byte) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	case !c.IsConnected():
		return ErrNotConnected
	}
	return nil
}
