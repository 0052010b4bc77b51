// Package eventloop runs closures one at a time on a single goroutine.
//
// Everything that mutates controller state (inbound frames, dial results,
// timer fires, user actions) is posted to a Loop and runs to completion
// before the next closure starts, so that state needs no locks.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// ErrStopped is returned when work is submitted to a loop that has exited.
var ErrStopped = errors.New("event loop stopped")

const defaultQueueSize = 256

// Loop is a single-consumer work queue.
type Loop struct {
	queue    chan func()
	done     chan struct{}
	clock    Clock
	logger   *slog.Logger
	stopOnce sync.Once
}

// New creates a loop. A nil clock uses wall-clock time.
func New(clock Clock, logger *slog.Logger) *Loop {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:  make(chan func(), defaultQueueSize),
		done:   make(chan struct{}),
		clock:  clock,
		logger: logger,
	}
}

// Clock returns the loop's time source.
func (l *Loop) Clock() Clock {
	return l.clock
}

// Run processes posted closures until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stopOnce.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			l.exec(fn)
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post enqueues fn. It reports false if the loop has stopped. Post must not
// be called from inside the loop when the queue may be full; code already
// running on the loop should call functions directly.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it to finish. It must not be
// called from inside the loop.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// The loop may have run fn just before stopping.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop handler panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Timer is a cancellable delayed callback that fires on the loop.
// Stop and the callback both run on the loop, so a timer stopped after its
// clock fired but before its callback was dequeued never runs.
type Timer struct {
	stopper Stopper
	stopped bool
	fired   bool
}

// AfterFunc schedules fn to run on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.stopper = l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped || t.fired {
				return
			}
			t.fired = true
			fn()
		})
	})
	return t
}

// Stop cancels the timer. It must be called on the loop. It reports whether
// the callback was prevented from running.
func (t *Timer) Stop() bool {
	if t == nil || t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.stopper.Stop()
	return true
}

// Pending reports whether the timer has neither fired nor been stopped.
// It must be called on the loop.
func (t *Timer) Pending() bool {
	return t != nil && !t.stopped && !t.fired
}
