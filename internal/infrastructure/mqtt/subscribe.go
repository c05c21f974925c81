package mqtt

import (
	"fmt"
	"sort"
	"strings"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe registers handler for messages matching the topic filter.
//
// Filters may use + for one level and # for the remainder, e.g.
// "psmove/controllers/+/state". Handlers run in arrival order on the paho
// router goroutine and must not block; mqttsource only decodes and queues.
//
// The subscription is remembered and restored after a reconnect.
//
// Parameters:
//   - topic: Topic filter
//   - qos: Maximum QoS for delivered messages (0, 1, or 2)
//   - handler: Called for each message; a returned error is logged
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or a wrapped
//     ErrSubscribeFailed
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validateFilter(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.subscriptions[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := awaitToken(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), ErrSubscribeFailed); err != nil {
		c.forget(topic)
		return err
	}
	return nil
}

// Unsubscribe removes the subscription for topic. Messages already routed
// may still reach the handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(topic)
	return awaitToken(c.client.Unsubscribe(topic), ErrUnsubscribeFailed)
}

func (c *Client) forget(topic string) {
	c.mu.Lock()
	delete(c.subscriptions, topic)
	c.mu.Unlock()
}

// Subscriptions returns the tracked topic filters in sorted order.
func (c *Client) Subscriptions() []string {
	c.mu.RLock()
	topics := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		topics = append(topics, topic)
	}
	c.mu.RUnlock()

	sort.Strings(topics)
	return topics
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription reports whether exactly this filter is tracked.
func (c *Client) HasSubscription(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}

// awaitToken waits for a broker acknowledgement, wrapping failures in
// failure.
func awaitToken(token pahomqtt.Token, failure error) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", failure, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", failure, err)
	}
	return nil
}

// validateFilter checks the MQTT wildcard rules: + must fill a whole level
// and # must be the whole final level.
func validateFilter(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	levels := strings.Split(topic, "/")
	for i, level := range levels {
		switch {
		case level == "#" && i != len(levels)-1:
			return fmt.Errorf("%w: # must be the last level in %q", ErrInvalidTopic, topic)
		case level != "#" && strings.Contains(level, "#"):
			return fmt.Errorf("%w: # must fill a level in %q", ErrInvalidTopic, topic)
		case level != "+" && strings.Contains(level, "+"):
			return fmt.Errorf("%w: + must fill a level in %q", ErrInvalidTopic, topic)
		}
	}
	return nil
}
