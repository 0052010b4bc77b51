package tutor

import (
	"time"

	"github.com/ashureev/tutor-client/internal/eventloop"
	"github.com/ashureev/tutor-client/internal/state"
)

var watchedFlags = []state.Flag{
	state.FlagAIThinking,
	state.FlagLoadingAssessment,
	state.FlagEvaluatingAssessment,
}

// watchdog clears a processing flag whose response never arrives, for
// example because the response frame was malformed and dropped.
type watchdog struct {
	loop      *eventloop.Loop
	timeout   time.Duration
	timers    map[state.Flag]*eventloop.Timer
	onTimeout func(state.Flag)
}

func newWatchdog(loop *eventloop.Loop, timeout time.Duration, onTimeout func(state.Flag)) *watchdog {
	return &watchdog{
		loop:      loop,
		timeout:   timeout,
		timers:    make(map[state.Flag]*eventloop.Timer),
		onTimeout: onTimeout,
	}
}

// sync arms a timer for every newly set flag and disarms cleared ones.
func (w *watchdog) sync(flags state.Flags) {
	if w.timeout <= 0 {
		return
	}
	for _, flag := range watchedFlags {
		t := w.timers[flag]
		switch set := flags.Get(flag); {
		case set && !t.Pending():
			w.timers[flag] = w.loop.AfterFunc(w.timeout, func() { w.onTimeout(flag) })
		case !set && t != nil:
			t.Stop()
			delete(w.timers, flag)
		}
	}
}

func (w *watchdog) stop() {
	for flag, t := range w.timers {
		t.Stop()
		delete(w.timers, flag)
	}
}
