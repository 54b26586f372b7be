// Package input defines the boundary to the platform input-automation layer:
// listeners that report physical mouse and keyboard activity, and a
// controller that synthesizes it.
package input

import "github.com/TeYo001/Mimic/pkg/types"

// Callbacks receives physical input. Any field may be nil.
// Callbacks run on the listener's own goroutine and must not block for long.
type Callbacks struct {
	Move       func(x, y int)
	Click      func(x, y int, button types.Button, pressed bool)
	Scroll     func(x, y, dx, dy int)
	KeyPress   func(key types.Key)
	KeyRelease func(key types.Key)
}

// Listener delivers physical input to its Callbacks while started
type Listener interface {
	Start() error
	Stop() error
}

// Controller injects synthetic input
type Controller interface {
	SetPosition(x, y int) error
	Click(button types.Button) error
	Scroll(dx, dy int) error
	Press(key types.Key) error
	Release(key types.Key) error
}

// Device is a complete input backend
type Device interface {
	Controller
	// Listen registers cb and returns a listener that is initially stopped
	Listen(cb Callbacks) Listener
}

// Inject replays a single recorded event through c
func Inject(c Controller, e types.RecordedEvent) error {
	switch e.Kind {
	case types.MouseMove:
		return c.SetPosition(e.X, e.Y)
	case types.MouseClick:
		return c.Click(e.Button)
	case types.MouseScroll:
		return c.Scroll(e.X, e.Y)
	case types.KeyPress:
		return c.Press(e.Key)
	case types.KeyRelease:
		return c.Release(e.Key)
	}
	return types.ErrUnknownEventType
}

// Tap presses and releases key
func Tap(c Controller, key types.Key) error {
	if err := c.Press(key); err != nil {
		return err
	}
	return c.Release(key)
}
