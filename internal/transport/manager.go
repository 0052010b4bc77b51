// Package transport owns the tutor session's WebSocket connection: dialing,
// reading, writing, and reconnecting after the link drops.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ashureev/tutor-client/internal/domain"
	"github.com/ashureev/tutor-client/internal/eventloop"
	"github.com/ashureev/tutor-client/internal/metrics"
	"github.com/ashureev/tutor-client/internal/protocol"
)

// ErrNotOpen is returned by Send when there is no open connection.
var ErrNotOpen = errors.New("connection not open")

// Hooks are invoked on the event loop.
type Hooks struct {
	// OnOpen runs once per successfully opened connection.
	OnOpen func()
	// OnFrame receives every text frame read from the open connection.
	OnFrame func(data []byte)
	// OnStateChange observes every lifecycle transition.
	OnStateChange func(State)
}

// Options configures a Manager.
type Options struct {
	BaseURL     string // e.g. ws://localhost:8000
	Dialer      Dialer
	BackOff     backoff.BackOff
	DialTimeout time.Duration
	Hooks       Hooks
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Manager keeps at most one connection per signed-in session.
//
// Every method must be called on the event loop. Dial results, reads and
// write failures arrive from background goroutines as posted closures tagged
// with the generation they belong to; anything from an older generation is
// discarded.
type Manager struct {
	loop        *eventloop.Loop
	baseURL     string
	dialer      Dialer
	backoff     backoff.BackOff
	dialTimeout time.Duration
	hooks       Hooks
	logger      *slog.Logger
	metrics     *metrics.Metrics

	state     State
	session   *domain.Session
	gen       uint64
	conn      Conn
	writer    *asyncWriter
	cancel    context.CancelFunc
	reconnect *eventloop.Timer
}

// NewManager creates a disconnected manager.
func NewManager(loop *eventloop.Loop, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer{}
	}
	if opts.BackOff == nil {
		opts.BackOff = backoff.NewConstantBackOff(DefaultReconnectDelay)
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	return &Manager{
		loop:        loop,
		baseURL:     opts.BaseURL,
		dialer:      opts.Dialer,
		backoff:     opts.BackOff,
		dialTimeout: opts.DialTimeout,
		hooks:       opts.Hooks,
		logger:      opts.Logger.With("component", "transport"),
		metrics:     opts.Metrics,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return m.state
}

// IsOpen reports whether frames can be sent.
func (m *Manager) IsOpen() bool {
	return m.state == Open
}

// ReconnectPending reports whether a reconnect attempt is scheduled.
func (m *Manager) ReconnectPending() bool {
	return m.reconnect.Pending()
}

// Endpoint returns the WebSocket URL for a user.
func (m *Manager) Endpoint(userID string) string {
	return fmt.Sprintf("%s/ws/tutor/%s", m.baseURL, url.PathEscape(userID))
}

// Open starts connecting for session. It does nothing unless the manager is
// disconnected, so repeated calls never produce a second connection.
func (m *Manager) Open(session *domain.Session) {
	if !session.Valid() {
		return
	}
	m.session = session
	if m.state != Disconnected {
		return
	}
	m.reconnect.Stop()
	m.reconnect = nil
	m.dial()
}

func (m *Manager) dial() {
	m.gen++
	gen := m.gen
	endpoint := m.Endpoint(m.session.UserID)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.setState(Connecting)

	m.logger.Info("connecting", "user_id", m.session.UserID, "url", endpoint)

	go func() {
		dialCtx, dialCancel := context.WithTimeout(ctx, m.dialTimeout)
		conn, err := m.dialer.Dial(dialCtx, endpoint)
		dialCancel()
		posted := m.loop.Post(func() { m.dialed(ctx, gen, conn, err) })
		if !posted && conn != nil {
			conn.Close()
		}
	}()
}

func (m *Manager) dialed(ctx context.Context, gen uint64, conn Conn, err error) {
	if gen != m.gen || m.state != Connecting {
		if conn != nil {
			go conn.Close()
		}
		return
	}
	if err != nil {
		m.metrics.DialAttempt("failure")
		m.logger.Warn("dial failed", "user_id", m.session.UserID, "error", err)
		m.cancel()
		m.cancel = nil
		m.setState(Disconnected)
		m.scheduleReconnect()
		return
	}

	m.metrics.DialAttempt("success")
	m.backoff.Reset()
	m.conn = conn
	m.writer = newAsyncWriter(ctx, conn, m.logger, func(err error) {
		m.loop.Post(func() { m.lost(gen, fmt.Errorf("write: %w", err)) })
	})
	m.setState(Open)
	m.logger.Info("connected", "user_id", m.session.UserID)

	go m.readLoop(ctx, gen, conn)

	if m.hooks.OnOpen != nil {
		m.hooks.OnOpen()
	}
}

func (m *Manager) readLoop(ctx context.Context, gen uint64, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			m.loop.Post(func() { m.lost(gen, fmt.Errorf("read: %w", err)) })
			return
		}
		posted := m.loop.Post(func() {
			if gen != m.gen || m.state != Open {
				m.metrics.FrameDropped("stale")
				return
			}
			if m.hooks.OnFrame != nil {
				m.hooks.OnFrame(data)
			}
		})
		if !posted {
			return
		}
	}
}

// lost handles a transport failure on an open connection.
func (m *Manager) lost(gen uint64, err error) {
	if gen != m.gen || m.state != Open {
		return
	}
	m.logger.Warn("connection lost", "user_id", m.session.UserID, "error", err)
	m.teardown()
	m.setState(Disconnected)
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	if m.session == nil || m.reconnect.Pending() {
		return
	}
	delay := m.backoff.NextBackOff()
	if delay == backoff.Stop {
		m.logger.Error("reconnect policy exhausted", "user_id", m.session.UserID)
		return
	}
	m.metrics.ReconnectScheduled(delay)
	m.logger.Info("reconnect scheduled", "user_id", m.session.UserID, "delay", delay)

	m.reconnect = m.loop.AfterFunc(delay, func() {
		m.reconnect = nil
		if m.session == nil || m.state != Disconnected {
			return
		}
		m.dial()
	})
}

// Close tears the connection down without scheduling a reconnect. It is the
// logout path; Open must be called again with a session to reconnect.
func (m *Manager) Close() {
	m.session = nil
	m.reconnect.Stop()
	m.reconnect = nil
	if m.state == Disconnected {
		return
	}
	m.setState(Closing)
	m.gen++
	m.teardown()
	m.backoff.Reset()
	m.setState(Disconnected)
	m.logger.Info("connection closed")
}

func (m *Manager) teardown() {
	if m.writer != nil {
		m.writer.Close()
		m.writer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		// The close handshake can wait on the peer.
		go m.conn.Close()
		m.conn = nil
	}
}

// Send encodes frame and queues it on the open connection.
func (m *Manager) Send(frame protocol.Outbound) error {
	if m.state != Open || m.writer == nil {
		return ErrNotOpen
	}
	data, err := protocol.EncodeOutbound(frame)
	if err != nil {
		return fmt.Errorf("encode %s: %w", frame.Kind(), err)
	}
	if err := m.writer.Enqueue(data); err != nil {
		return err
	}
	m.metrics.FrameSent(string(frame.Kind()))
	return nil
}

func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	m.state = s
	m.metrics.SetConnectionOpen(s == Open)
	if m.hooks.OnStateChange != nil {
		m.hooks.OnStateChange(s)
	}
}
