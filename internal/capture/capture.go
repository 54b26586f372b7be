// Package capture turns physical input reported by an input.Listener into
// timestamped RecordedEvents in an EventBuffer.
package capture

import (
	"time"

	"github.com/TeYo001/Mimic/internal/input"
	"github.com/TeYo001/Mimic/internal/metrics"
	"github.com/TeYo001/Mimic/internal/queue"
	"github.com/TeYo001/Mimic/pkg/types"
)

// Clock returns monotonic nanoseconds since an arbitrary origin
type Clock func() int64

// MonotonicClock returns a Clock counting from the moment it is created.
// time.Since reads the monotonic clock, so wall clock jumps do not leak in.
func MonotonicClock() Clock {
	origin := time.Now()
	return func() int64 { return time.Since(origin).Nanoseconds() }
}

// Options configures a Recorder
type Options struct {
	Buffer  *queue.EventBuffer
	Clock   Clock              // defaults to MonotonicClock()
	Ignore  []types.Key        // hotkeys, never recorded
	Metrics *metrics.Collector // optional
}

// Recorder converts listener callbacks into recorded events
type Recorder struct {
	buf     *queue.EventBuffer
	now     Clock
	ignore  []types.Key
	metrics *metrics.Collector
}

// NewRecorder creates a Recorder
func NewRecorder(opts Options) *Recorder {
	now := opts.Clock
	if now == nil {
		now = MonotonicClock()
	}
	return &Recorder{
		buf:     opts.Buffer,
		now:     now,
		ignore:  opts.Ignore,
		metrics: opts.Metrics,
	}
}

// Callbacks returns the listener callbacks feeding this recorder
func (r *Recorder) Callbacks() input.Callbacks {
	return input.Callbacks{
		Move: func(x, y int) {
			r.push(types.NewMouseMove(x, y, r.now()))
		},
		Click: func(_, _ int, b types.Button, pressed bool) {
			// replay turns one MC line into a full click
			if pressed {
				r.push(types.NewMouseClick(b, r.now()))
			}
		},
		Scroll: func(_, _, dx, dy int) {
			r.push(types.NewMouseScroll(dx, dy, r.now()))
		},
		KeyPress: func(k types.Key) {
			if r.recordable(k) {
				r.push(types.NewKeyPress(k.Physical(), r.now()))
			}
		},
		KeyRelease: func(k types.Key) {
			if r.recordable(k) {
				r.push(types.NewKeyRelease(k.Physical(), r.now()))
			}
		},
	}
}

// recordable reports whether a key event belongs in the recording. Keys
// without a virtual-key code cannot be saved and count as dropped.
func (r *Recorder) recordable(k types.Key) bool {
	if r.ignored(k) {
		return false
	}
	if k.Code == 0 {
		r.metrics.EventDropped()
		return false
	}
	return true
}

func (r *Recorder) ignored(k types.Key) bool {
	for _, ig := range r.ignore {
		if ig.Matches(k) {
			return true
		}
	}
	return false
}

func (r *Recorder) push(e types.RecordedEvent) {
	if r.buf.Push(e) {
		r.metrics.EventCaptured()
	} else {
		r.metrics.EventDropped()
	}
}
