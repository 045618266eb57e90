package mqtt

import "fmt"

// Subscribe registers a handler for messages on the specified topic.
//
// The subscription is tracked and automatically restored after
// reconnection. Subscribing again to the same topic replaces the
// previous handler.
//
// Parameters:
//   - topic: Topic filter (supports + and # wildcards)
//   - handler: Callback invoked for each received message
//
// Returns:
//   - error: If not connected, or the subscribe fails or times out
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if !c.IsConnected() {
		return fmt.Errorf("subscribing to %s: %w", topic, ErrNotConnected)
	}

	qos := byte(c.cfg.QoS)
	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultSubscribeTimeout) {
		return fmt.Errorf("%w: topic %s: timeout", ErrSubscribeFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: topic %s: %w", ErrSubscribeFailed, topic, err)
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Unlock()

	return nil
}

// Unsubscribe removes the subscription for the specified topic.
func (c *Client) Unsubscribe(topic string) error {
	if !c.IsConnected() {
		return fmt.Errorf("unsubscribing from %s: %w", topic, ErrNotConnected)
	}

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(defaultSubscribeTimeout) {
		return fmt.Errorf("unsubscribing from %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", topic, err)
	}

	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()

	return nil
}
