package scheduler

// ============================================================================
// Per-state handlers
//
//   state        enter                  run                        exit
//   Idle         -                      tick                       -
//   Recording    start capture          tick                       stop capture
//   Replaying    load file, reset       inject due event           -
//   Saving       -                      drain buffer, write file   -
//   Typing       reset cursor           tap next character         -
//   WaitTime     -                      sleep                      -
//   AwaitPress   watch key              tick                       stop watching
//   Repeat       re-enqueue program     done                       -
// ============================================================================

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TeYo001/Mimic/internal/input"
	"github.com/TeYo001/Mimic/internal/queue"
	"github.com/TeYo001/Mimic/pkg/types"
)

// handler implements one state. run reports done=true together with the
// state to move to once the action has completed.
type handler interface {
	enter(ctx context.Context, s *Scheduler, a *types.Action) error
	run(ctx context.Context, s *Scheduler, a *types.Action) (next types.State, done bool)
	exit(ctx context.Context, s *Scheduler, a *types.Action)
}

// noHooks supplies empty enter and exit
type noHooks struct{}

func (noHooks) enter(context.Context, *Scheduler, *types.Action) error { return nil }
func (noHooks) exit(context.Context, *Scheduler, *types.Action)        {}

func handlerFor(st types.State) (handler, error) {
	switch st {
	case types.StateIdle:
		return idleHandler{}, nil
	case types.StateRecording:
		return recordingHandler{}, nil
	case types.StateReplaying:
		return replayingHandler{}, nil
	case types.StateSaving:
		return savingHandler{}, nil
	case types.StateTyping:
		return typingHandler{}, nil
	case types.StateWaitTime:
		return waitTimeHandler{}, nil
	case types.StateAwaitPress:
		return awaitPressHandler{}, nil
	case types.StateRepeat:
		return repeatHandler{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingHandler, st)
}

// ============================================================================
// Idle
// ============================================================================

type idleHandler struct{ noHooks }

func (idleHandler) run(ctx context.Context, s *Scheduler, _ *types.Action) (types.State, bool) {
	sleep(ctx, s.cfg.Tick)
	return 0, false
}

// ============================================================================
// Recording
// ============================================================================

type recordingHandler struct{}

func (recordingHandler) enter(_ context.Context, s *Scheduler, _ *types.Action) error {
	if err := s.capture.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	s.log.Info("Recording started")
	return nil
}

func (recordingHandler) run(ctx context.Context, s *Scheduler, _ *types.Action) (types.State, bool) {
	sleep(ctx, s.cfg.Tick)
	return 0, false
}

func (recordingHandler) exit(_ context.Context, s *Scheduler, _ *types.Action) {
	if err := s.capture.Stop(); err != nil {
		s.log.Warn("Failed to stop capture", "error", err)
	}
	s.log.Info("Recording stopped", "buffered", s.events.Len())
}

// ============================================================================
// Replaying
// ============================================================================

type replayingHandler struct{ noHooks }

// enter replaces the replay buffer with the file's contents. Any load error
// aborts the action; nothing from a bad file is replayed.
func (replayingHandler) enter(_ context.Context, s *Scheduler, a *types.Action) error {
	if a.Filename != "" {
		s.filename = a.Filename
	}
	events, err := s.store.Load(s.filename)
	if err != nil {
		s.record = nil
		return fmt.Errorf("load %s: %w", s.filename, err)
	}

	types.NormalizeTimestamps(events)
	s.record = events
	s.cursor = 0
	s.base = time.Now()
	s.log.Info("Replay started", "file", s.filename, "events", len(events))
	return nil
}

// run injects at most one event per call. Waits longer than SpinThreshold
// are slept in Tick slices so the loop can check for interrupts; only the
// final stretch is busy-waited.
func (replayingHandler) run(ctx context.Context, s *Scheduler, _ *types.Action) (types.State, bool) {
	if s.cursor >= len(s.record) {
		s.log.Info("Replay finished", "file", s.filename)
		return types.StateIdle, true
	}

	e := s.record[s.cursor]
	due := s.base.Add(time.Duration(e.Timestamp))

	if remaining := time.Until(due); remaining > s.cfg.SpinThreshold {
		sleep(ctx, min(remaining-s.cfg.SpinThreshold, s.cfg.Tick))
		return 0, false
	}
	for time.Now().Before(due) {
	}

	s.metrics.ObserveReplayLag(time.Since(due))
	if err := input.Inject(s.controller, e); err != nil {
		// a missed event is skipped, replay continues with the next one
		s.log.Warn("Failed to inject event", "event", e.String(), "error", err)
	}
	s.cursor++
	return 0, false
}

// ============================================================================
// Saving
// ============================================================================

type savingHandler struct{ noHooks }

func (savingHandler) run(_ context.Context, s *Scheduler, a *types.Action) (types.State, bool) {
	if a.Filename != "" {
		s.filename = a.Filename
	}
	events := s.events.Drain()
	if err := s.store.Save(s.filename, events); err != nil {
		s.events.Restore(events)
		s.log.Error("Failed to save recording, events kept", "file", s.filename, "events", len(events), "error", err)
		return types.StateIdle, true
	}
	s.log.Info("Recording saved", "file", s.filename, "events", len(events))
	return types.StateIdle, true
}

// ============================================================================
// Typing
// ============================================================================

type typingHandler struct{ noHooks }

func (typingHandler) enter(_ context.Context, s *Scheduler, a *types.Action) error {
	s.message = []rune(a.Message)
	s.cursor = 0
	return nil
}

func (typingHandler) run(_ context.Context, s *Scheduler, _ *types.Action) (types.State, bool) {
	if s.cursor >= len(s.message) {
		return types.StateIdle, true
	}
	k := types.KeyFromChar(s.message[s.cursor])
	if err := input.Tap(s.controller, k); err != nil {
		s.log.Warn("Failed to type character", "key", k.String(), "error", err)
	}
	s.cursor++
	return 0, false
}

// ============================================================================
// WaitTime
// ============================================================================

type waitTimeHandler struct{ noHooks }

// run sleeps the whole duration in one call, so a wait is never preempted
// part way. Negative durations wait zero.
func (waitTimeHandler) run(ctx context.Context, s *Scheduler, a *types.Action) (types.State, bool) {
	sleep(ctx, max(a.Wait, 0))
	return types.StateIdle, true
}

// ============================================================================
// AwaitPress
// ============================================================================

type awaitPressHandler struct{}

func (awaitPressHandler) enter(_ context.Context, s *Scheduler, a *types.Action) error {
	if s.hotkeys == nil {
		return fmt.Errorf("%w: hotkey handler", ErrMissingDependency)
	}
	s.hotkeys.Await(a.Key)
	s.log.Info("Waiting for key", "key", a.Key.String())
	return nil
}

func (awaitPressHandler) run(ctx context.Context, s *Scheduler, _ *types.Action) (types.State, bool) {
	sleep(ctx, s.cfg.Tick)
	return 0, false
}

func (awaitPressHandler) exit(_ context.Context, s *Scheduler, _ *types.Action) {
	s.hotkeys.ClearAwait()
}

// ============================================================================
// Repeat
// ============================================================================

type repeatHandler struct{ noHooks }

// enter queues the program again, this repeat included. The scheduler is the
// queue's only consumer, so a full queue cannot drain while we wait; the
// remainder is dropped instead.
func (repeatHandler) enter(_ context.Context, s *Scheduler, a *types.Action) error {
	next := a.Expand()
	for i, n := range next {
		if err := s.scripted.Offer(n); err != nil {
			if errors.Is(err, queue.ErrQueueFull) {
				s.log.Error("Scripted queue full, repeat cut short",
					"queued", i, "dropped", len(next)-i)
				return nil
			}
			return fmt.Errorf("requeue: %w", err)
		}
	}
	s.log.Debug("Program requeued", "actions", len(next))
	return nil
}

func (repeatHandler) run(context.Context, *Scheduler, *types.Action) (types.State, bool) {
	return types.StateIdle, true
}
