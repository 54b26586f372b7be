package input

// ============================================================================
// Virtual input device
//
// An in-memory Device for headless runs and tests. Injected operations are
// logged and kept in an operation log; Emit* simulate physical input and
// fan out to every started listener. Injection does not echo back into
// listeners.
// ============================================================================

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TeYo001/Mimic/pkg/types"
)

// ErrListenerStopped is returned when stopping a listener that is not running
var ErrListenerStopped = errors.New("listener is not running")

// OpKind names an injected operation
type OpKind string

const (
	OpSetPosition OpKind = "set_position"
	OpClick       OpKind = "click"
	OpScroll      OpKind = "scroll"
	OpPress       OpKind = "press"
	OpRelease     OpKind = "release"
)

// Op is one injected operation
type Op struct {
	Kind   OpKind
	X, Y   int // position or scroll delta
	Button types.Button
	Key    types.Key
	At     time.Time
}

func (o Op) String() string {
	switch o.Kind {
	case OpSetPosition, OpScroll:
		return fmt.Sprintf("%s(%d,%d)", o.Kind, o.X, o.Y)
	case OpClick:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Button)
	default:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Key)
	}
}

// Virtual is an in-memory Device
type Virtual struct {
	mu        sync.Mutex
	ops       []Op
	x, y      int
	listeners []*virtualListener
	log       *slog.Logger
	now       func() time.Time
}

// NewVirtual creates a virtual device logging to log, or slog.Default() when nil
func NewVirtual(log *slog.Logger) *Virtual {
	if log == nil {
		log = slog.Default()
	}
	return &Virtual{log: log, now: time.Now}
}

func (v *Virtual) record(op Op) {
	op.At = v.now()
	v.mu.Lock()
	v.ops = append(v.ops, op)
	v.mu.Unlock()
	v.log.Debug("Injected input", "op", op.String())
}

func (v *Virtual) SetPosition(x, y int) error {
	v.mu.Lock()
	v.x, v.y = x, y
	v.mu.Unlock()
	v.record(Op{Kind: OpSetPosition, X: x, Y: y})
	return nil
}

func (v *Virtual) Click(button types.Button) error {
	if !button.Valid() {
		return fmt.Errorf("invalid button %s", button)
	}
	v.record(Op{Kind: OpClick, Button: button})
	return nil
}

func (v *Virtual) Scroll(dx, dy int) error {
	v.record(Op{Kind: OpScroll, X: dx, Y: dy})
	return nil
}

func (v *Virtual) Press(key types.Key) error {
	v.record(Op{Kind: OpPress, Key: key})
	return nil
}

func (v *Virtual) Release(key types.Key) error {
	v.record(Op{Kind: OpRelease, Key: key})
	return nil
}

// Position returns the last position set by SetPosition or EmitMove
func (v *Virtual) Position() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.x, v.y
}

// Ops returns a copy of the operation log
func (v *Virtual) Ops() []Op {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Op, len(v.ops))
	copy(out, v.ops)
	return out
}

// Reset clears the operation log
func (v *Virtual) Reset() {
	v.mu.Lock()
	v.ops = nil
	v.mu.Unlock()
}

// Listen registers cb
func (v *Virtual) Listen(cb Callbacks) Listener {
	l := &virtualListener{cb: cb}
	v.mu.Lock()
	v.listeners = append(v.listeners, l)
	v.mu.Unlock()
	return l
}

// ============================================================================
// Simulated physical input
// ============================================================================

func (v *Virtual) active() []Callbacks {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []Callbacks
	for _, l := range v.listeners {
		if l.running() {
			out = append(out, l.cb)
		}
	}
	return out
}

// EmitMove simulates the pointer moving to x, y
func (v *Virtual) EmitMove(x, y int) {
	v.mu.Lock()
	v.x, v.y = x, y
	v.mu.Unlock()
	for _, cb := range v.active() {
		if cb.Move != nil {
			cb.Move(x, y)
		}
	}
}

// EmitClick simulates a button press or release at the current position
func (v *Virtual) EmitClick(button types.Button, pressed bool) {
	x, y := v.Position()
	for _, cb := range v.active() {
		if cb.Click != nil {
			cb.Click(x, y, button, pressed)
		}
	}
}

// EmitScroll simulates a scroll at the current position
func (v *Virtual) EmitScroll(dx, dy int) {
	x, y := v.Position()
	for _, cb := range v.active() {
		if cb.Scroll != nil {
			cb.Scroll(x, y, dx, dy)
		}
	}
}

// EmitKeyPress simulates a key going down
func (v *Virtual) EmitKeyPress(key types.Key) {
	for _, cb := range v.active() {
		if cb.KeyPress != nil {
			cb.KeyPress(key)
		}
	}
}

// EmitKeyRelease simulates a key going up
func (v *Virtual) EmitKeyRelease(key types.Key) {
	for _, cb := range v.active() {
		if cb.KeyRelease != nil {
			cb.KeyRelease(key)
		}
	}
}

// EmitKeyTap simulates a full key press and release
func (v *Virtual) EmitKeyTap(key types.Key) {
	v.EmitKeyPress(key)
	v.EmitKeyRelease(key)
}

type virtualListener struct {
	mu      sync.Mutex
	cb      Callbacks
	started bool
}

func (l *virtualListener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = true
	return nil
}

func (l *virtualListener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return ErrListenerStopped
	}
	l.started = false
	return nil
}

func (l *virtualListener) running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}
