// ============================================================================
// Mimic Scheduler - the action state machine
// ============================================================================
//
// Package: internal/scheduler
// File: scheduler.go
// Purpose: Pull actions from the interrupt and scripted queues and drive the
//          per-state handlers, one action at a time.
//
// Top-level loop:
//   1. next()      interrupt first; scripted only when no interrupt waits
//   2. dispatch()  Exiting stops; Idle stops unless daemon (or unless it
//                  came from an awaited key with script left to run);
//                  otherwise enter -> run until done or preempted -> exit
//
// Dequeue policy:
//   - interrupt empty, scripted pending   pop scripted (scripted_poll timeout)
//   - daemon                              wait on interrupt, re-checking the
//                                         scripted queue every scripted_poll
//   - otherwise                           wait idle_timeout on interrupt, stop
//                                         when nothing arrives
//
// Run phase, checked before every call to run:
//   - not must-finish and an interrupt is pending   preempt
//   - state is Idle and scripted work is pending    yield to it
//   - run reports done                              take its next state
//
// Preempting a Replaying or Typing action abandons its progress: entering
// the state again starts from the first event or character.
//
// Concurrency:
//   - Run executes on a single goroutine and owns the replay buffer, cursor
//     and base time; none of it is locked.
//   - State(), Status(), Submit() and Interrupt() are safe from any goroutine.
//
// ============================================================================

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/TeYo001/Mimic/internal/hotkey"
	"github.com/TeYo001/Mimic/internal/input"
	"github.com/TeYo001/Mimic/internal/metrics"
	"github.com/TeYo001/Mimic/internal/queue"
	"github.com/TeYo001/Mimic/pkg/types"
	"github.com/google/uuid"
)

// ============================================================================
// Errors
// ============================================================================

var (
	// ErrMissingHandler means a dispatchable state has no handler
	ErrMissingHandler = errors.New("scheduler: no handler for state")
	// ErrMissingDependency means a required collaborator was not supplied
	ErrMissingDependency = errors.New("scheduler: missing dependency")
	// ErrNotEnoughRoom means a submitted program does not fit the scripted queue
	ErrNotEnoughRoom = errors.New("scheduler: scripted queue has no room for the program")
)

// ============================================================================
// Configuration
// ============================================================================

// Config is the immutable runtime configuration
type Config struct {
	Daemon          bool   // keep running when the queues drain
	ForceMustFinish bool   // no self-completing action may be preempted
	RecordingFile   string // default file for save and replay

	IdleTimeout   time.Duration // how long a non-daemon waits for an interrupt
	ScriptedPoll  time.Duration // scripted pop timeout and daemon re-check period
	Tick          time.Duration // sleep of the polling handlers
	SpinThreshold time.Duration // replay busy-waits only the last SpinThreshold
}

// DefaultConfig returns the stock timings
func DefaultConfig() Config {
	return Config{
		RecordingFile: "save.txt",
		IdleTimeout:   time.Second,
		ScriptedPoll:  time.Second,
		Tick:          10 * time.Millisecond,
		SpinThreshold: 2 * time.Millisecond,
	}
}

// Store persists recordings
type Store interface {
	Save(path string, events []types.RecordedEvent) error
	Load(path string) ([]types.RecordedEvent, error)
}

// Options wires a Scheduler to its collaborators
type Options struct {
	Config Config

	Interrupts *queue.ActionQueue
	Scripted   *queue.ActionQueue
	Events     *queue.EventBuffer

	Controller input.Controller // replay and typing output
	Capture    input.Listener   // started while Recording
	Hotkeys    *hotkey.Handler  // AwaitPress target, optional
	Store      Store

	Metrics *metrics.Collector // optional
	Logger  *slog.Logger
}

// ============================================================================
// Scheduler
// ============================================================================

// Scheduler is the single-threaded action state machine
type Scheduler struct {
	cfg        Config
	interrupts *queue.ActionQueue
	scripted   *queue.ActionQueue
	events     *queue.EventBuffer
	controller input.Controller
	capture    input.Listener
	hotkeys    *hotkey.Handler
	store      Store
	metrics    *metrics.Collector
	log        *slog.Logger
	session    uuid.UUID

	state      atomic.Int32
	dispatched atomic.Uint64

	// owned by the Run goroutine
	record   []types.RecordedEvent
	cursor   int
	base     time.Time
	filename string
	message  []rune
}

// New validates opts and builds a Scheduler. A dispatchable state without a
// handler is a configuration error.
func New(opts Options) (*Scheduler, error) {
	switch {
	case opts.Interrupts == nil:
		return nil, fmt.Errorf("%w: interrupt queue", ErrMissingDependency)
	case opts.Scripted == nil:
		return nil, fmt.Errorf("%w: scripted queue", ErrMissingDependency)
	case opts.Events == nil:
		return nil, fmt.Errorf("%w: event buffer", ErrMissingDependency)
	case opts.Controller == nil:
		return nil, fmt.Errorf("%w: input controller", ErrMissingDependency)
	case opts.Capture == nil:
		return nil, fmt.Errorf("%w: capture listener", ErrMissingDependency)
	case opts.Store == nil:
		return nil, fmt.Errorf("%w: recording store", ErrMissingDependency)
	}

	for s := types.StateIdle; s < types.StateExiting; s++ {
		if _, err := handlerFor(s); err != nil {
			return nil, err
		}
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	sc := &Scheduler{
		cfg:        opts.Config,
		interrupts: opts.Interrupts,
		scripted:   opts.Scripted,
		events:     opts.Events,
		controller: opts.Controller,
		capture:    opts.Capture,
		hotkeys:    opts.Hotkeys,
		store:      opts.Store,
		metrics:    opts.Metrics,
		log:        log,
		session:    uuid.New(),
		filename:   opts.Config.RecordingFile,
	}
	sc.state.Store(int32(types.StateIdle))
	return sc, nil
}

// State returns the current state
func (s *Scheduler) State() types.State {
	return types.State(s.state.Load())
}

func (s *Scheduler) setState(st types.State) {
	s.state.Store(int32(st))
}

// Run executes actions until an Exiting action arrives, a non-daemon
// scheduler runs out of work, or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("Scheduler started",
		"session", s.session,
		"daemon", s.cfg.Daemon,
		"forceMustFinish", s.cfg.ForceMustFinish,
	)

	for {
		a, err := s.next(ctx)
		if errors.Is(err, queue.ErrTimeout) {
			if s.cfg.Daemon || s.scripted.Len() > 0 || s.interrupts.Len() > 0 {
				continue
			}
			s.log.Info("No work left, scheduler stopping")
			return nil
		}
		if err != nil {
			s.log.Info("Scheduler stopped", "reason", err)
			return err
		}

		if !s.dispatch(ctx, a) {
			s.log.Info("Scheduler stopped", "state", s.State(), "dispatched", s.dispatched.Load())
			return nil
		}
	}
}

// next picks the next action per the dequeue policy
func (s *Scheduler) next(ctx context.Context) (types.Action, error) {
	s.reportDepths()

	if s.interrupts.Len() == 0 && s.scripted.Len() > 0 {
		return s.scripted.Pop(ctx, s.cfg.ScriptedPoll)
	}
	if s.cfg.Daemon {
		// woken periodically so work submitted to the scripted queue is seen
		return s.interrupts.Pop(ctx, s.cfg.ScriptedPoll)
	}
	return s.interrupts.Pop(ctx, s.cfg.IdleTimeout)
}

// dispatch executes one action. It returns false when the loop must stop.
func (s *Scheduler) dispatch(ctx context.Context, a types.Action) bool {
	log := s.log.With("actionID", a.ID, "state", a.Target, "origin", a.Origin)

	switch {
	case a.Target == types.StateExiting:
		s.setState(types.StateExiting)
		log.Info("Exit requested")
		return false
	case a.Target == types.StateIdle && !s.cfg.Daemon:
		// the awaited-key Idle ends the run like any other Idle
		s.setState(types.StateIdle)
		log.Debug("Idle outside daemon mode, stopping", "pendingScripted", s.scripted.Len())
		return false
	}

	h, err := handlerFor(a.Target)
	if err != nil {
		log.Error("Dropping action", "error", err)
		return true
	}

	// Idle, Recording and AwaitPress stay preemptible so Exit can still stop them
	mustFinish := a.MustFinish || (s.cfg.ForceMustFinish && selfCompleting(a.Target))

	s.dispatched.Add(1)
	s.metrics.ActionDispatched(a.Target)
	start := time.Now()
	defer func() { s.metrics.ObserveActionDuration(a.Target, time.Since(start)) }()

	log.Debug("Dispatching action", "mustFinish", mustFinish)

	if err := h.enter(ctx, s, &a); err != nil {
		log.Error("Action aborted", "error", err)
		s.setState(types.StateIdle)
		return true
	}
	// published after enter, so a Recording state means capture is live
	s.setState(a.Target)

	for ctx.Err() == nil {
		if !mustFinish && s.interrupts.Len() > 0 {
			s.metrics.ActionPreempted(a.Target)
			log.Debug("Action preempted by interrupt")
			break
		}
		if s.State() == types.StateIdle && s.scripted.Len() > 0 {
			break
		}
		if next, done := h.run(ctx, s, &a); done {
			s.setState(next)
			break
		}
	}

	h.exit(ctx, s, &a)
	return true
}

// selfCompleting reports whether a state's run phase ends on its own
func selfCompleting(st types.State) bool {
	switch st {
	case types.StateReplaying, types.StateSaving, types.StateTyping,
		types.StateWaitTime, types.StateRepeat:
		return true
	}
	return false
}

func (s *Scheduler) reportDepths() {
	s.metrics.SetQueueDepth("interrupt", s.interrupts.Len())
	s.metrics.SetQueueDepth("scripted", s.scripted.Len())
	s.metrics.SetQueueDepth("events", s.events.Len())
}

// ============================================================================
// Producers and introspection
// ============================================================================

// Submit enqueues a program's actions onto the scripted queue in order.
// It fails without enqueueing anything when the queue lacks room.
func (s *Scheduler) Submit(p *types.Program) (int, error) {
	actions := p.Actions()
	if free := s.scripted.Cap() - s.scripted.Len(); len(actions) > free {
		return 0, fmt.Errorf("%w: %d actions, %d free", ErrNotEnoughRoom, len(actions), free)
	}
	for i, a := range actions {
		if err := s.scripted.Offer(a); err != nil {
			return i, fmt.Errorf("submit action %d: %w", i, err)
		}
	}
	s.log.Debug("Program submitted", "actions", len(actions))
	return len(actions), nil
}

// Interrupt enqueues a onto the interrupt queue, waiting for room
func (s *Scheduler) Interrupt(ctx context.Context, a types.Action) error {
	return s.interrupts.Push(ctx, a)
}

// Status is a point-in-time view of the scheduler
type Status struct {
	Session        uuid.UUID
	State          types.State
	Daemon         bool
	InterruptDepth int
	ScriptedDepth  int
	EventsBuffered int
	EventsDropped  uint64
	Dispatched     uint64
}

// Status reports the current state and queue depths
func (s *Scheduler) Status() Status {
	return Status{
		Session:        s.session,
		State:          s.State(),
		Daemon:         s.cfg.Daemon,
		InterruptDepth: s.interrupts.Len(),
		ScriptedDepth:  s.scripted.Len(),
		EventsBuffered: s.events.Len(),
		EventsDropped:  s.events.Dropped(),
		Dispatched:     s.dispatched.Load(),
	}
}

// sleep waits d or until ctx ends. It reports whether the full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
