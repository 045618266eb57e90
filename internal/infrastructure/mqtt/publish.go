package mqtt

import (
	"context"
	"fmt"
)

// Publish sends a message to the specified topic.
//
// The message is published with the configured QoS level. The call
// blocks until the broker acknowledges the publish, the context is
// cancelled, or the publish timeout elapses.
//
// Parameters:
//   - ctx: Context for cancellation
//   - topic: Destination topic
//   - payload: Raw message bytes
//
// Returns:
//   - error: If not connected, or the publish fails or times out
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	return c.publish(ctx, topic, payload, false)
}

// PublishRetained sends a retained message to the specified topic.
// The broker delivers the last retained message to new subscribers.
func (c *Client) PublishRetained(ctx context.Context, topic string, payload []byte) error {
	return c.publish(ctx, topic, payload, true)
}

func (c *Client) publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("publishing to %s: %w", topic, ErrNotConnected)
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), retained, payload)

	completed := make(chan bool, 1)
	go func() {
		completed <- token.WaitTimeout(defaultPublishTimeout)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("publishing to %s: %w", topic, ctx.Err())
	case ok := <-completed:
		if !ok {
			return fmt.Errorf("%w: topic %s: timeout", ErrPublishFailed, topic)
		}
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: topic %s: %w", ErrPublishFailed, topic, err)
	}

	return nil
}
