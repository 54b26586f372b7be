package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ============================================================================
// Recorded events and their line format
//
//   <TYPE><PAYLOAD>;<TIMESTAMP>
//
//   MM<x>,<y>      absolute mouse position
//   MC<button>     left | middle | right
//   MS<dx>,<dy>    scroll delta
//   KP<vk>         key press, decimal virtual-key code
//   KR<vk>         key release
//
// Example: MM120,340;1582300000
// ============================================================================

var (
	// ErrMalformedEvent indicates a line that does not follow the grammar
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEventType indicates a line whose two-letter tag is not known
	ErrUnknownEventType = errors.New("unknown event type")
)

// EventKind discriminates RecordedEvent payloads
type EventKind int

const (
	MouseMove EventKind = iota
	MouseClick
	MouseScroll
	KeyPress
	KeyRelease
)

var kindTags = [...]string{
	MouseMove:   "MM",
	MouseClick:  "MC",
	MouseScroll: "MS",
	KeyPress:    "KP",
	KeyRelease:  "KR",
}

// Tag returns the two-letter prefix used in saved recordings
func (k EventKind) Tag() string {
	if k < 0 || int(k) >= len(kindTags) {
		return ""
	}
	return kindTags[k]
}

func (k EventKind) String() string {
	switch k {
	case MouseMove:
		return "mouse_move"
	case MouseClick:
		return "mouse_click"
	case MouseScroll:
		return "mouse_scroll"
	case KeyPress:
		return "key_press"
	case KeyRelease:
		return "key_release"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Button is a mouse button
type Button int

const (
	ButtonLeft Button = iota + 1
	ButtonMiddle
	ButtonRight
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	default:
		return fmt.Sprintf("button(%d)", int(b))
	}
}

// Valid reports whether b is one of the three known buttons
func (b Button) Valid() bool {
	return b >= ButtonLeft && b <= ButtonRight
}

// ParseButton resolves a button from its name
func ParseButton(s string) (Button, error) {
	switch s {
	case "left":
		return ButtonLeft, nil
	case "middle":
		return ButtonMiddle, nil
	case "right":
		return ButtonRight, nil
	}
	return 0, fmt.Errorf("%w: unknown button %q", ErrMalformedEvent, s)
}

// RecordedEvent is one captured input occurrence.
//
// X and Y carry the absolute position for MouseMove and the scroll delta for
// MouseScroll. Timestamp is in nanoseconds; it is absolute while capturing and
// relative to the first event once a sequence has been normalized.
type RecordedEvent struct {
	Kind      EventKind
	X, Y      int
	Button    Button
	Key       Key
	Timestamp int64
}

func NewMouseMove(x, y int, ts int64) RecordedEvent {
	return RecordedEvent{Kind: MouseMove, X: x, Y: y, Timestamp: ts}
}

func NewMouseClick(b Button, ts int64) RecordedEvent {
	return RecordedEvent{Kind: MouseClick, Button: b, Timestamp: ts}
}

func NewMouseScroll(dx, dy int, ts int64) RecordedEvent {
	return RecordedEvent{Kind: MouseScroll, X: dx, Y: dy, Timestamp: ts}
}

func NewKeyPress(k Key, ts int64) RecordedEvent {
	return RecordedEvent{Kind: KeyPress, Key: k, Timestamp: ts}
}

func NewKeyRelease(k Key, ts int64) RecordedEvent {
	return RecordedEvent{Kind: KeyRelease, Key: k, Timestamp: ts}
}

// MarshalText encodes the event as one line without the trailing newline
func (e RecordedEvent) MarshalText() ([]byte, error) {
	tag := e.Kind.Tag()
	var b []byte
	switch e.Kind {
	case MouseMove, MouseScroll:
		b = fmt.Appendf(b, "%s%d,%d", tag, e.X, e.Y)
	case MouseClick:
		if !e.Button.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrMalformedEvent, e.Button)
		}
		b = fmt.Appendf(b, "%s%s", tag, e.Button)
	case KeyPress, KeyRelease:
		if e.Key.Code == 0 {
			return nil, fmt.Errorf("%w: key %s has no virtual-key code", ErrMalformedEvent, e.Key)
		}
		b = fmt.Appendf(b, "%s%d", tag, e.Key.Code)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, e.Kind)
	}
	return fmt.Appendf(b, ";%d", e.Timestamp), nil
}

// UnmarshalText decodes a single line produced by MarshalText
func (e *RecordedEvent) UnmarshalText(text []byte) error {
	ev, err := ParseEvent(string(text))
	if err != nil {
		return err
	}
	*e = ev
	return nil
}

func (e RecordedEvent) String() string {
	b, err := e.MarshalText()
	if err != nil {
		return fmt.Sprintf("%s(invalid)", e.Kind)
	}
	return string(b)
}

// ParseEvent decodes one saved line. A trailing newline is tolerated.
func ParseEvent(line string) (RecordedEvent, error) {
	line = strings.TrimRight(line, "\r\n")
	sep := strings.LastIndexByte(line, ';')
	if len(line) < 2 || sep < 2 {
		return RecordedEvent{}, fmt.Errorf("%w: %q", ErrMalformedEvent, line)
	}

	ts, err := strconv.ParseInt(line[sep+1:], 10, 64)
	if err != nil {
		return RecordedEvent{}, fmt.Errorf("%w: bad timestamp in %q", ErrMalformedEvent, line)
	}

	tag, payload := line[:2], line[2:sep]
	switch tag {
	case "MM", "MS":
		x, y, err := parsePair(payload)
		if err != nil {
			return RecordedEvent{}, err
		}
		if tag == "MM" {
			return NewMouseMove(x, y, ts), nil
		}
		return NewMouseScroll(x, y, ts), nil
	case "MC":
		b, err := ParseButton(payload)
		if err != nil {
			return RecordedEvent{}, err
		}
		return NewMouseClick(b, ts), nil
	case "KP", "KR":
		code, err := strconv.ParseUint(payload, 10, 16)
		if err != nil || code == 0 {
			return RecordedEvent{}, fmt.Errorf("%w: bad key code %q", ErrMalformedEvent, payload)
		}
		if tag == "KP" {
			return NewKeyPress(KeyFromCode(uint16(code)), ts), nil
		}
		return NewKeyRelease(KeyFromCode(uint16(code)), ts), nil
	}
	return RecordedEvent{}, fmt.Errorf("%w: %q", ErrUnknownEventType, tag)
}

func parsePair(s string) (int, int, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%w: expected <int>,<int>, got %q", ErrMalformedEvent, s)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedEvent, s)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedEvent, s)
	}
	return x, y, nil
}

// NormalizeTimestamps rewrites timestamps relative to the first event,
// so events[0].Timestamp becomes 0.
func NormalizeTimestamps(events []RecordedEvent) {
	if len(events) == 0 {
		return
	}
	base := events[0].Timestamp
	for i := range events {
		events[i].Timestamp -= base
	}
}
