// Package tutor is the client-side session controller for the tutoring
// service. It owns the connection lifecycle, the outbound message queue, the
// dispatch of inbound frames, and the view state machine, and exposes every
// learner action as a method.
//
// All state lives on a single event loop. Public methods post their work to
// the loop and wait for it, so they are safe to call from any goroutine, but
// never from inside an OnChange listener.
package tutor

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/ashureev/tutor-client/internal/config"
	"github.com/ashureev/tutor-client/internal/domain"
	"github.com/ashureev/tutor-client/internal/eventloop"
	"github.com/ashureev/tutor-client/internal/metrics"
	"github.com/ashureev/tutor-client/internal/state"
	"github.com/ashureev/tutor-client/internal/store"
	"github.com/ashureev/tutor-client/internal/transport"
)

// Collaborators are the REST reads the controller consumes.
type Collaborators interface {
	Conversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	Analytics(ctx context.Context, userID string) (*domain.Analytics, error)
}

// Options configures a Controller.
type Options struct {
	WSURL             string
	BackOff           backoff.BackOff
	DialTimeout       time.Duration
	DeferredSendDelay time.Duration
	RequestTimeout    time.Duration // zero disables the request watchdog
	FetchTimeout      time.Duration

	Clock   eventloop.Clock
	Dialer  transport.Dialer
	Store   store.Repository
	API     Collaborators
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// OptionsFromConfig maps the environment configuration onto Options. The
// caller still supplies Store, API and Metrics.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		WSURL:             cfg.WSURL,
		BackOff:           transport.NewBackOff(cfg.Reconnect),
		DialTimeout:       cfg.Timeouts.Dial,
		DeferredSendDelay: cfg.Timeouts.DeferredSend,
		RequestTimeout:    cfg.Timeouts.Request,
		FetchTimeout:      cfg.Timeouts.HTTP,
	}
}

// Controller coordinates one learner's session.
type Controller struct {
	loop       *eventloop.Loop
	conn       *transport.Manager
	outbox     *Outbox
	dispatcher *Dispatcher
	watchdog   *watchdog
	store      store.Repository
	api        Collaborators
	logger     *slog.Logger
	metrics    *metrics.Metrics

	fetchTimeout time.Duration

	// Loop-owned.
	state     state.State
	listeners []func(state.State)
	epoch     uint64 // bumped on login and logout; tags background fetches
	epochCtx  context.Context
	cancel    context.CancelFunc
}

// New wires a controller. Run must be called before any other method.
func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DeferredSendDelay <= 0 {
		opts.DeferredSendDelay = 3 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}

	c := &Controller{
		loop:         eventloop.New(opts.Clock, opts.Logger),
		store:        opts.Store,
		api:          opts.API,
		logger:       opts.Logger.With("component", "tutor"),
		metrics:      opts.Metrics,
		fetchTimeout: opts.FetchTimeout,
		state:        state.Initial(),
		epochCtx:     context.Background(),
		cancel:       func() {},
	}

	c.conn = transport.NewManager(c.loop, transport.Options{
		BaseURL:     opts.WSURL,
		Dialer:      opts.Dialer,
		BackOff:     opts.BackOff,
		DialTimeout: opts.DialTimeout,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
		Hooks: transport.Hooks{
			OnOpen:        c.connected,
			OnFrame:       func(data []byte) { c.dispatcher.Handle(data) },
			OnStateChange: func(s transport.State) { c.apply(state.ConnectionChanged{Open: s == transport.Open}) },
		},
	})
	c.outbox = &Outbox{
		loop:    c.loop,
		conn:    c.conn,
		delay:   opts.DeferredSendDelay,
		emit:    c.apply,
		session: func() *domain.Session { return c.state.Session },
		newID:   uuid.NewString,
		logger:  c.logger,
		metrics: opts.Metrics,
	}
	c.dispatcher = &Dispatcher{
		emit:    c.apply,
		newID:   uuid.NewString,
		now:     c.loop.Clock().Now,
		logger:  c.logger,
		metrics: opts.Metrics,
	}
	c.watchdog = newWatchdog(c.loop, opts.RequestTimeout, func(flag state.Flag) {
		c.metrics.RequestTimeout(string(flag))
		c.logger.Warn("request timed out", "flag", flag)
		c.apply(state.RequestTimedOut{Flag: flag, At: c.loop.Clock().Now()})
	})
	return c
}

// Run drives the event loop until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	return c.loop.Run(ctx)
}

// OnChange registers fn to receive a copy of every new snapshot. Listeners
// run on the event loop and must not call Controller methods.
func (c *Controller) OnChange(fn func(state.State)) {
	_ = c.loop.Post(func() { c.listeners = append(c.listeners, fn) })
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot(ctx context.Context) (state.State, error) {
	return query(ctx, c, func() state.State { return c.state.Clone() })
}

// ConnectionState reports the transport lifecycle state.
func (c *Controller) ConnectionState(ctx context.Context) (transport.State, error) {
	return query(ctx, c, func() transport.State { return c.conn.State() })
}

// PendingSends reports how many deferred chat messages are waiting.
func (c *Controller) PendingSends(ctx context.Context) (int, error) {
	return query(ctx, c, func() int { return c.outbox.Pending() })
}

// Shutdown closes the connection and cancels timers but keeps the persisted
// session, so the next start restores it.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.teardown()
		return nil
	})
}

// do runs fn on the loop and returns its error.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	err, callErr := query(ctx, c, fn)
	if callErr != nil {
		return callErr
	}
	return err
}

// query runs fn on the loop and hands its result back over a channel. If
// ctx ends first the zero value is returned and fn's result, should it
// still run, is discarded.
func query[T any](ctx context.Context, c *Controller, fn func() T) (T, error) {
	result := make(chan T, 1)
	if err := c.loop.Call(ctx, func() { result <- fn() }); err != nil {
		var zero T
		return zero, err
	}
	select {
	case v := <-result:
		return v, nil
	default:
		// fn panicked; the loop logged it.
		var zero T
		return zero, nil
	}
}

// apply reduces ev into the state and notifies listeners. Loop only.
func (c *Controller) apply(ev state.Event) {
	c.state = state.Reduce(c.state, ev)
	c.watchdog.sync(c.state.Flags)
	for _, fn := range c.listeners {
		fn(c.state.Clone())
	}
}

// connected runs once per opened connection.
func (c *Controller) connected() {
	c.outbox.Flush()
	c.refreshConversations()
}

// teardown stops everything that could act on the current session.
func (c *Controller) teardown() {
	c.outbox.Cancel()
	c.watchdog.stop()
	c.conn.Close()
	c.cancel()
	c.cancel = func() {}
	c.epoch++
}

// beginEpoch starts a new session epoch for background fetches.
func (c *Controller) beginEpoch() {
	c.cancel()
	c.epoch++
	c.epochCtx, c.cancel = context.WithCancel(context.Background())
}

// fetch runs get off the loop and hands its result back on the loop, unless
// the session changed in the meantime.
func fetch[T any](c *Controller, get func(ctx context.Context) (T, error), done func(T)) {
	epoch := c.epoch
	parent := c.epochCtx
	go func() {
		ctx, cancel := context.WithTimeout(parent, c.fetchTimeout)
		defer cancel()
		v, err := get(ctx)
		c.loop.Post(func() {
			if epoch != c.epoch || err != nil {
				return
			}
			done(v)
		})
	}()
}
