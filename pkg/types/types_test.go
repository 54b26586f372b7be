package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Event codec
// ============================================================================

func TestEventRoundTrip(t *testing.T) {
	home, err := KeyByName("home")
	require.NoError(t, err)

	events := []RecordedEvent{
		NewMouseMove(120, 340, 1582300000),
		NewMouseMove(-15, 0, 0),
		NewMouseClick(ButtonLeft, 7),
		NewMouseClick(ButtonMiddle, 8),
		NewMouseClick(ButtonRight, 9),
		NewMouseScroll(0, -3, 1234567890123),
		NewKeyPress(KeyFromCode(0x41), 42),
		NewKeyRelease(KeyFromCode(0x41), 43),
		NewKeyPress(home, 44),
		NewKeyRelease(KeyFromCode(0x7B), 45),
	}

	for _, e := range events {
		text, err := e.MarshalText()
		require.NoError(t, err)

		got, err := ParseEvent(string(text) + "\n")
		require.NoError(t, err, "line %q", text)
		assert.Equal(t, e, got, "line %q", text)
	}
}

// Every printable ASCII character has a virtual-key code. Decoding yields
// the physical key, which is what capture records.
func TestCharKeyEventsRoundTrip(t *testing.T) {
	for r := rune(0x20); r < 0x7F; r++ {
		k := KeyFromChar(r)
		require.NotZero(t, k.Code, "char %q", r)

		for _, e := range []RecordedEvent{NewKeyPress(k, int64(r)), NewKeyRelease(k, int64(r))} {
			text, err := e.MarshalText()
			require.NoError(t, err, "char %q", r)

			got, err := ParseEvent(string(text))
			require.NoError(t, err, "line %q", text)
			assert.Equal(t, e.Kind, got.Kind)
			assert.Equal(t, k.Physical(), got.Key, "char %q", r)
			assert.True(t, got.Key.Matches(k), "char %q", r)

			physical := e
			physical.Key = k.Physical()
			again, err := physical.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, text, again)
			roundTrip, err := ParseEvent(string(again))
			require.NoError(t, err)
			assert.Equal(t, physical, roundTrip, "char %q", r)
		}
	}
}

func TestShiftedCharsSharePhysicalKey(t *testing.T) {
	tests := []struct {
		shifted, base rune
	}{
		{'A', 'a'},
		{'!', '1'},
		{')', '0'},
		{':', ';'},
		{'?', '/'},
		{'"', '\''},
		{'|', '\\'},
		{'~', '`'},
	}
	for _, tt := range tests {
		assert.Equal(t, KeyFromChar(tt.base), KeyFromChar(tt.shifted).Physical(), "%q", tt.shifted)
	}
	assert.Equal(t, Key{Char: 'é'}, KeyFromChar('é').Physical())
}

func TestEventMarshalFormat(t *testing.T) {
	tests := []struct {
		event RecordedEvent
		want  string
	}{
		{NewMouseMove(120, 340, 1582300000), "MM120,340;1582300000"},
		{NewMouseClick(ButtonRight, 5), "MCright;5"},
		{NewMouseScroll(1, -2, 6), "MS1,-2;6"},
		{NewKeyPress(KeyFromChar('a'), 7), "KP65;7"},
		{NewKeyRelease(KeyFromCode(0x2E), 8), "KR46;8"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.event.String())
	}
}

func TestEventUnmarshalText(t *testing.T) {
	var e RecordedEvent
	require.NoError(t, e.UnmarshalText([]byte("MS3,4;99")))
	assert.Equal(t, NewMouseScroll(3, 4, 99), e)
}

func TestParseEventErrors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"", ErrMalformedEvent},
		{"MM1,2", ErrMalformedEvent},
		{"MM1;5", ErrMalformedEvent},
		{"MMa,b;5", ErrMalformedEvent},
		{"MM1,2;abc", ErrMalformedEvent},
		{"MCdouble;5", ErrMalformedEvent},
		{"KPx;5", ErrMalformedEvent},
		{"KP0;5", ErrMalformedEvent},
		{"XX1,2;5", ErrUnknownEventType},
		{"ZZ;5", ErrUnknownEventType},
	}

	for _, tt := range tests {
		_, err := ParseEvent(tt.line)
		assert.ErrorIs(t, err, tt.want, "line %q", tt.line)
	}
}

func TestMarshalRejectsUnencodable(t *testing.T) {
	_, err := NewMouseClick(Button(0), 1).MarshalText()
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = NewKeyPress(KeyFromChar('é'), 1).MarshalText()
	assert.ErrorIs(t, err, ErrMalformedEvent, "no virtual-key code")

	_, err = RecordedEvent{Kind: EventKind(99)}.MarshalText()
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestNormalizeTimestamps(t *testing.T) {
	events := []RecordedEvent{
		NewMouseMove(0, 0, 1000),
		NewMouseMove(1, 1, 1100),
		NewMouseMove(2, 2, 1350),
	}
	NormalizeTimestamps(events)

	assert.Equal(t, int64(0), events[0].Timestamp)
	assert.Equal(t, int64(100), events[1].Timestamp)
	assert.Equal(t, int64(350), events[2].Timestamp)

	assert.NotPanics(t, func() { NormalizeTimestamps(nil) })
}

// ============================================================================
// Keys
// ============================================================================

func TestParseKey(t *testing.T) {
	k, err := ParseKey("a")
	require.NoError(t, err)
	assert.Equal(t, Key{Code: 0x41, Char: 'a'}, k)

	k, err = ParseKey("f12")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x7B), k.Code)
	assert.Equal(t, "f12", k.String())

	k, err = ParseKey("!")
	require.NoError(t, err)
	assert.Equal(t, Key{Code: '1', Char: '!'}, k)

	_, err = ParseKey("hyper")
	assert.ErrorIs(t, err, ErrUnknownKey)

	_, err = ParseKey("F1")
	assert.ErrorIs(t, err, ErrUnknownKey, "names match exactly")
}

func TestKeyMatches(t *testing.T) {
	space, err := KeyByName("space")
	require.NoError(t, err)

	assert.True(t, KeyFromChar(' ').Matches(space))
	assert.True(t, KeyFromChar('A').Matches(KeyFromCode(0x41)))
	assert.True(t, KeyFromChar('!').Matches(Key{Char: '!'}))
	assert.False(t, KeyFromChar('!').Matches(KeyFromChar('?')))
	assert.False(t, Key{}.Matches(Key{}))
}

func TestAltGrSharesAltR(t *testing.T) {
	altGr, err := KeyByName("alt_gr")
	require.NoError(t, err)
	assert.Equal(t, "alt_r", altGr.String())
	assert.Contains(t, KeyNames(), "alt_gr")
}

// ============================================================================
// Actions and programs
// ============================================================================

func TestStateNames(t *testing.T) {
	for s := StateIdle; s < StateInvalid; s++ {
		got, err := ParseState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseState("invalid")
	assert.Error(t, err)
}

func TestProgramInstancesAreCopies(t *testing.T) {
	typing := NewAction(OriginCommand, StateTyping, false)
	typing.Message = "hi"
	p := NewProgram([]Action{typing})

	a := p.At(0)
	b := p.At(0)
	assert.NotEqual(t, a.ID, b.ID)

	a.Message = "changed"
	assert.Equal(t, "hi", p.At(0).Message)
}

func TestRepeatExpandIsStable(t *testing.T) {
	wait := NewAction(OriginCommand, StateWaitTime, false)
	wait.Wait = time.Millisecond
	repeat := NewAction(OriginCommand, StateRepeat, false)
	repeat.Sequence = []int{0, 1}

	p := NewProgram([]Action{wait, repeat})
	current := p.At(1)

	for cycle := 0; cycle < 50; cycle++ {
		next := current.Expand()
		require.Len(t, next, 2)
		assert.Equal(t, StateWaitTime, next[0].Target)
		assert.Equal(t, StateRepeat, next[1].Target)
		assert.Equal(t, OriginCommandSequence, next[1].Origin)
		current = next[1]
	}

	assert.Nil(t, wait.Expand())
}
