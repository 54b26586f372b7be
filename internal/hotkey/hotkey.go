// Package hotkey maps dedicated keys to interrupt actions and watches for
// the key an AwaitPress action is waiting on.
package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/TeYo001/Mimic/internal/input"
	"github.com/TeYo001/Mimic/internal/queue"
	"github.com/TeYo001/Mimic/pkg/types"
)

// Bindings assigns a key to every hotkey
type Bindings struct {
	Record types.Key
	Replay types.Key
	Save   types.Key
	Exit   types.Key
	Idle   types.Key
}

// DefaultBindings returns home=record, up=replay, down=save, delete=exit, end=idle
func DefaultBindings() Bindings {
	b, err := ParseBindings("home", "up", "down", "delete", "end")
	if err != nil {
		panic(err)
	}
	return b
}

// ParseBindings resolves key names into Bindings
func ParseBindings(record, replay, save, exit, idle string) (Bindings, error) {
	var b Bindings
	for _, f := range []struct {
		name string
		dst  *types.Key
	}{
		{record, &b.Record},
		{replay, &b.Replay},
		{save, &b.Save},
		{exit, &b.Exit},
		{idle, &b.Idle},
	} {
		k, err := types.ParseKey(f.name)
		if err != nil {
			return Bindings{}, fmt.Errorf("hotkey: %w", err)
		}
		*f.dst = k
	}
	return b, nil
}

// Keys returns every bound key, for exclusion from capture
func (b Bindings) Keys() []types.Key {
	return []types.Key{b.Record, b.Replay, b.Save, b.Exit, b.Idle}
}

// NewInterrupt builds the action a hotkey or remote interrupt enqueues.
// Saving and Exiting must finish; everything else is preemptible.
func NewInterrupt(target types.State, filename string) (types.Action, error) {
	switch target {
	case types.StateRecording, types.StateReplaying, types.StateIdle:
	case types.StateSaving, types.StateExiting:
	default:
		return types.Action{}, fmt.Errorf("hotkey: %s cannot be triggered as an interrupt", target)
	}
	mustFinish := target == types.StateSaving || target == types.StateExiting
	a := types.NewAction(types.OriginSpecialKey, target, mustFinish)
	a.Filename = filename
	return a, nil
}

// Options configures a Handler
type Options struct {
	Bindings Bindings
	// SpecialKeys enables the record, replay and save hotkeys.
	// Idle, exit and the awaited key always fire.
	SpecialKeys bool
	Queue       *queue.ActionQueue // interrupt queue
	Logger      *slog.Logger
}

// Handler turns key presses into interrupt actions
type Handler struct {
	ctx      context.Context
	bindings Bindings
	special  bool
	q        *queue.ActionQueue
	log      *slog.Logger

	mu       sync.Mutex
	awaited  types.Key
	awaiting bool
}

// NewHandler creates a Handler. ctx bounds how long a press may block on a
// full interrupt queue.
func NewHandler(ctx context.Context, opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		ctx:      ctx,
		bindings: opts.Bindings,
		special:  opts.SpecialKeys,
		q:        opts.Queue,
		log:      log,
	}
}

// Callbacks returns listener callbacks that feed OnPress
func (h *Handler) Callbacks() input.Callbacks {
	return input.Callbacks{KeyPress: h.OnPress}
}

// Bindings returns the configured key bindings
func (h *Handler) Bindings() Bindings {
	return h.bindings
}

// Await makes the next press of k end the current AwaitPress action
func (h *Handler) Await(k types.Key) {
	h.mu.Lock()
	h.awaited, h.awaiting = k, true
	h.mu.Unlock()
}

// ClearAwait stops watching for the awaited key
func (h *Handler) ClearAwait() {
	h.mu.Lock()
	h.awaited, h.awaiting = types.Key{}, false
	h.mu.Unlock()
}

// Awaited returns the key currently watched for
func (h *Handler) Awaited() (types.Key, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.awaited, h.awaiting
}

// OnPress handles one physical key press
func (h *Handler) OnPress(k types.Key) {
	if h.special {
		switch {
		case k.Matches(h.bindings.Record):
			h.push(types.StateRecording, types.OriginSpecialKey)
		case k.Matches(h.bindings.Replay):
			h.push(types.StateReplaying, types.OriginSpecialKey)
		case k.Matches(h.bindings.Save):
			h.push(types.StateSaving, types.OriginSpecialKey)
		}
	}

	awaited, awaiting := h.Awaited()
	switch {
	case k.Matches(h.bindings.Idle):
		h.push(types.StateIdle, types.OriginSpecialKey)
	case k.Matches(h.bindings.Exit):
		h.push(types.StateExiting, types.OriginSpecialKey)
	case awaiting && k.Matches(awaited):
		h.push(types.StateIdle, types.OriginCommand)
	}
}

func (h *Handler) push(target types.State, origin types.Origin) {
	a, err := NewInterrupt(target, "")
	if err != nil {
		h.log.Error("Failed to build interrupt", "state", target, "error", err)
		return
	}
	a.Origin = origin

	// blocks while the interrupt queue is full, a press is never dropped
	if err := h.q.Push(h.ctx, a); err != nil {
		h.log.Warn("Interrupt not delivered", "state", target, "error", err)
		return
	}
	h.log.Debug("Interrupt queued", "actionID", a.ID, "state", target, "origin", origin)
}
