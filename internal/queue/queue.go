// ============================================================================
// Mimic Queue Layer
// ============================================================================
//
// Package: internal/queue
// File: queue.go
// Purpose: Bounded channels carrying actions to the scheduler, plus the
//          capture buffer fed by the input listener.
//
// Queues:
//   ┌──────────────┐  Push (blocks)   ┌───────────────┐
//   │ hotkeys      │ ───────────────→ │ interrupt (10)│ ──┐
//   │ remote ctl   │                  └───────────────┘   │ Pop, interrupt first
//   └──────────────┘                                      ├──→ Scheduler
//   ┌──────────────┐  Push / Offer    ┌───────────────┐   │
//   │ parser       │ ───────────────→ │ scripted (128)│ ──┘
//   │ repeat       │                  └───────────────┘
//   └──────────────┘
//   ┌──────────────┐  Push (never     ┌───────────────┐  Drain
//   │ capture      │  blocks)  ─────→ │ events (4096) │ ──────→ Saving
//   └──────────────┘                  └───────────────┘
//
// Concurrency:
//   - ActionQueue is safe for many producers and a single consumer.
//   - Producers of the interrupt queue block rather than drop, so a hotkey
//     is never lost to backpressure.
//   - Close never closes the data channel, only the done channel; a producer
//     racing Close gets ErrQueueClosed instead of a send-on-closed panic.
//
// ============================================================================

package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/TeYo001/Mimic/pkg/types"
)

var (
	// ErrQueueClosed means the queue no longer accepts or hands out actions
	ErrQueueClosed = errors.New("queue is closed")
	// ErrQueueFull is returned by Offer when no slot is free
	ErrQueueFull = errors.New("queue is full")
	// ErrTimeout is returned by Pop when nothing arrived in time
	ErrTimeout = errors.New("queue pop timed out")
)

// Default capacities
const (
	DefaultInterruptCapacity = 10
	DefaultScriptedCapacity  = 128
	DefaultEventCapacity     = 4096
)

// ActionQueue is a bounded FIFO of actions
type ActionQueue struct {
	name      string
	ch        chan types.Action
	done      chan struct{}
	closeOnce sync.Once
}

// NewActionQueue creates a queue holding at most capacity actions
func NewActionQueue(name string, capacity int) *ActionQueue {
	return &ActionQueue{
		name: name,
		ch:   make(chan types.Action, capacity),
		done: make(chan struct{}),
	}
}

// Name returns the queue name used in logs and metrics
func (q *ActionQueue) Name() string {
	return q.name
}

// Push enqueues a, blocking while the queue is full
func (q *ActionQueue) Push(ctx context.Context, a types.Action) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- a:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Offer enqueues a without blocking
func (q *ActionQueue) Offer(a types.Action) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- a:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop dequeues the oldest action. A timeout <= 0 waits indefinitely.
func (q *ActionQueue) Pop(ctx context.Context, timeout time.Duration) (types.Action, error) {
	// hand out what is already queued before honouring Close
	select {
	case a := <-q.ch:
		return a, nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case a := <-q.ch:
		return a, nil
	case <-expired:
		return types.Action{}, ErrTimeout
	case <-q.done:
		return types.Action{}, ErrQueueClosed
	case <-ctx.Done():
		return types.Action{}, ctx.Err()
	}
}

// TryPop dequeues without waiting
func (q *ActionQueue) TryPop() (types.Action, bool) {
	select {
	case a := <-q.ch:
		return a, true
	default:
		return types.Action{}, false
	}
}

// Len returns the number of queued actions
func (q *ActionQueue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity
func (q *ActionQueue) Cap() int {
	return cap(q.ch)
}

// Close stops the queue. Safe to call more than once.
func (q *ActionQueue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// ============================================================================
// Event capture buffer
// ============================================================================

// EventBuffer collects recorded events from the capture listener.
// The lock is held only for a single push or drain, so capture never waits
// on a save in progress.
type EventBuffer struct {
	mu       sync.Mutex
	events   []types.RecordedEvent
	capacity int
	dropped  uint64
}

// NewEventBuffer creates a buffer holding at most capacity events
func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{capacity: capacity}
}

// Push appends e. When the buffer is full the event is dropped and
// Push returns false.
func (b *EventBuffer) Push(e types.RecordedEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) >= b.capacity {
		b.dropped++
		return false
	}
	b.events = append(b.events, e)
	return true
}

// Drain removes and returns every buffered event in capture order
func (b *EventBuffer) Drain() []types.RecordedEvent {
	b.mu.Lock()
	out := b.events
	b.events = nil
	b.mu.Unlock()
	return out
}

// Restore puts drained events back in front of anything captured since.
// Events beyond capacity are dropped from the newest end.
func (b *EventBuffer) Restore(events []types.RecordedEvent) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	merged := append(events[:len(events):len(events)], b.events...)
	if over := len(merged) - b.capacity; over > 0 {
		b.dropped += uint64(over)
		merged = merged[:b.capacity]
	}
	b.events = merged
}

// Len returns the number of buffered events
func (b *EventBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Cap returns the buffer capacity
func (b *EventBuffer) Cap() int {
	return b.capacity
}

// Dropped returns how many events were discarded because the buffer was full
func (b *EventBuffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
