package tutor

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/tutor-client/internal/domain"
	"github.com/ashureev/tutor-client/internal/eventloop"
	"github.com/ashureev/tutor-client/internal/metrics"
	"github.com/ashureev/tutor-client/internal/protocol"
	"github.com/ashureev/tutor-client/internal/state"
)

// connection is the part of transport.Manager the outbox and the assessment
// flow depend on.
type connection interface {
	IsOpen() bool
	Open(session *domain.Session)
	Send(frame protocol.Outbound) error
}

// Outbox sends chat messages, deferring one retry when the connection is
// down. It runs on the event loop.
type Outbox struct {
	loop    *eventloop.Loop
	conn    connection
	delay   time.Duration
	emit    func(state.Event)
	session func() *domain.Session
	newID   func() string
	logger  *slog.Logger
	metrics *metrics.Metrics

	pending []*deferredSend
}

type deferredSend struct {
	content string
	timer   *eventloop.Timer
}

// Send transmits content now if the connection is open. Otherwise it asks
// the connection to open and retries exactly once after the deferred-send
// delay; if the connection is still down then, the message is dropped and
// an undelivered notice is recorded.
func (o *Outbox) Send(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	if o.conn.IsOpen() {
		return o.transmit(content)
	}

	o.conn.Open(o.session())
	d := &deferredSend{content: content}
	d.timer = o.loop.AfterFunc(o.delay, func() { o.fire(d) })
	o.pending = append(o.pending, d)
	o.metrics.DeferredSend("scheduled")
	o.logger.Info("connection not open, deferring message", "delay", o.delay)
	return nil
}

// Pending returns how many deferred messages are waiting.
func (o *Outbox) Pending() int {
	return len(o.pending)
}

func (o *Outbox) transmit(content string) error {
	if err := o.conn.Send(protocol.ChatMessage{Content: content}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	o.emit(state.ChatSent{Message: domain.ChatMessage{
		ID:        o.newID(),
		Kind:      domain.KindUser,
		Content:   content,
		CreatedAt: o.loop.Clock().Now(),
	}})
	return nil
}

func (o *Outbox) fire(d *deferredSend) {
	o.remove(d)
	if o.conn.IsOpen() {
		if err := o.transmit(d.content); err == nil {
			o.metrics.DeferredSend("sent")
			return
		}
	}
	o.drop(d)
}

func (o *Outbox) drop(d *deferredSend) {
	o.metrics.DeferredSend("dropped")
	o.logger.Warn("deferred message dropped, connection still not open")
	o.emit(state.SendUndelivered{Content: d.content, At: o.loop.Clock().Now()})
}

// Flush sends every deferred message immediately. It is called once the
// connection opens so queued messages do not wait out their timers.
func (o *Outbox) Flush() {
	pending := o.pending
	o.pending = nil
	for _, d := range pending {
		d.timer.Stop()
		if err := o.transmit(d.content); err != nil {
			o.drop(d)
			continue
		}
		o.metrics.DeferredSend("sent")
	}
}

// Cancel discards deferred messages without sending them.
func (o *Outbox) Cancel() {
	for _, d := range o.pending {
		d.timer.Stop()
	}
	o.pending = nil
}

func (o *Outbox) remove(d *deferredSend) {
	for i, p := range o.pending {
		if p == d {
			o.pending = append(o.pending[:i:i], o.pending[i+1:]...)
			return
		}
	}
}
