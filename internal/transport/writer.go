package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrQueueFull is returned when the outbound queue cannot accept a frame.
var ErrQueueFull = errors.New("outbound queue full")

const (
	writeQueueSize = 64
	writeTimeout   = 10 * time.Second
)

// asyncWriter drains frames to a connection on its own goroutine so a slow
// peer never blocks the event loop. Frames are written in enqueue order.
type asyncWriter struct {
	conn    Conn
	out     chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	logger  *slog.Logger
	onError func(error)
}

func newAsyncWriter(parent context.Context, conn Conn, logger *slog.Logger, onError func(error)) *asyncWriter {
	ctx, cancel := context.WithCancel(parent)
	w := &asyncWriter{
		conn:    conn,
		out:     make(chan []byte, writeQueueSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  logger,
		onError: onError,
	}
	go w.run()
	return w
}

// Enqueue queues data without blocking.
func (w *asyncWriter) Enqueue(data []byte) error {
	select {
	case <-w.ctx.Done():
		return ErrNotOpen
	default:
	}
	select {
	case w.out <- data:
		return nil
	default:
		w.logger.Warn("outbound queue full, rejecting frame", "queue_len", len(w.out))
		return ErrQueueFull
	}
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case data := <-w.out:
			start := time.Now()
			ctx, cancel := context.WithTimeout(w.ctx, writeTimeout)
			err := w.conn.Write(ctx, data)
			cancel()
			if err != nil {
				if w.ctx.Err() == nil {
					w.onError(err)
				}
				return
			}
			if took := time.Since(start); took > time.Second {
				w.logger.Warn("slow websocket write", "duration_ms", took.Milliseconds())
			}
		}
	}
}

// Close stops the writer. Frames still queued are discarded.
func (w *asyncWriter) Close() {
	w.cancel()
}
