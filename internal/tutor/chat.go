package tutor

import (
	"context"
	"fmt"
	"strings"
)

// SendChat sends a chat message to the tutor. While disconnected the
// message is deferred once; see Outbox.Send. Only one message may wait
// for delivery at a time.
func (c *Controller) SendChat(ctx context.Context, content string) error {
	return c.do(ctx, func() error {
		if strings.TrimSpace(content) == "" {
			return ErrEmptyMessage
		}
		if err := c.state.CanChat(); err != nil {
			return err
		}
		if c.outbox.Pending() > 0 {
			return fmt.Errorf("chat: message awaiting delivery: %w", ErrBusy)
		}
		return c.outbox.Send(content)
	})
}

// ReviewLesson asks the tutor to go over topic again.
func (c *Controller) ReviewLesson(ctx context.Context, topic string) error {
	return c.do(ctx, func() error {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			return ErrEmptyTopic
		}
		if err := c.state.CanChat(); err != nil {
			return err
		}
		if !c.conn.IsOpen() {
			return ErrNotConnected
		}
		return c.outbox.transmit("Review lesson about " + topic)
	})
}
