package mqtt

import "fmt"

// Subscribe registers a handler for messages on the given topic.
//
// The subscription is tracked and automatically restored if the
// connection drops and reconnects. Handlers run in paho-managed
// goroutines with panic recovery; returned errors are logged but do
// not affect message acknowledgment.
//
// Parameters:
//   - topic: Topic filter (wildcards + and # allowed)
//   - handler: Callback invoked for each message
//
// Returns:
//   - error: ErrNotConnected, ErrInvalidQoS, or ErrSubscribeFailed
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	return c.SubscribeWithQoS(topic, byte(c.cfg.QoS), handler)
}

// SubscribeWithQoS registers a handler with an explicit QoS level.
func (c *Client) SubscribeWithQoS(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}
	if qos > maxQoS {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	if !c.IsConnected() {
		return fmt.Errorf("%w: cannot subscribe to %s", ErrNotConnected, topic)
	}

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("%w: timeout subscribing to %s", ErrSubscribeFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Unlock()

	return nil
}

// Unsubscribe removes a subscription and stops tracking it.
func (c *Client) Unsubscribe(topic string) error {
	if !c.IsConnected() {
		return fmt.Errorf("%w: cannot unsubscribe from %s", ErrNotConnected, topic)
	}

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("%w: timeout unsubscribing from %s", ErrSubscribeFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()

	return nil
}
