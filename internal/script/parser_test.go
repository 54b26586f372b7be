package script

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/TeYo001/Mimic/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAllCommands(t *testing.T) {
	p, err := Parse("record replay demo.txt type 'hi' wait_time 0.25 await_press f5 await_press q")
	require.NoError(t, err)
	require.Equal(t, 6, p.Len())

	actions := p.Actions()
	targets := make([]types.State, len(actions))
	for i, a := range actions {
		targets[i] = a.Target
		assert.Equal(t, types.OriginCommand, a.Origin)
		assert.False(t, a.MustFinish)
	}
	assert.Equal(t, []types.State{
		types.StateRecording,
		types.StateReplaying,
		types.StateTyping,
		types.StateWaitTime,
		types.StateAwaitPress,
		types.StateAwaitPress,
	}, targets)

	assert.Equal(t, "demo.txt", actions[1].Filename)
	assert.Equal(t, "hi", actions[2].Message)
	assert.Equal(t, 250*time.Millisecond, actions[3].Wait)
	assert.Equal(t, uint16(0x74), actions[4].Key.Code)
	assert.Equal(t, 'q', actions[5].Key.Char)
}

func TestParseQuotedMessages(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"type 'hi'", "hi"},
		{"type 'hello world'", "hello world"},
		{"type 'two  spaces'", "two  spaces"},
		{"type 'it's'", "it's"},
		{"type ''", ""},
	}

	for _, tt := range tests {
		p, err := Parse(tt.src)
		require.NoError(t, err, tt.src)
		require.Equal(t, 1, p.Len(), tt.src)
		assert.Equal(t, tt.want, p.At(0).Message, tt.src)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		want error
		tok  string
	}{
		{"type hi", ErrUnquotedMessage, "hi"},
		{"type 'hi", ErrUnquotedMessage, "'hi"},
		{"type '", ErrUnquotedMessage, "'"},
		{"type", ErrMissingArgument, "type"},
		{"replay", ErrMissingArgument, "replay"},
		{"wait_time", ErrMissingArgument, "wait_time"},
		{"wait_time soon", ErrBadDuration, "soon"},
		{"wait_time NaN", ErrBadDuration, "NaN"},
		{"wait_time +Inf", ErrBadDuration, "+Inf"},
		{"await_press", ErrMissingArgument, "await_press"},
		{"await_press hyper", types.ErrUnknownKey, "hyper"},
		{"record jump", ErrUnknownCommand, "jump"},
	}

	for _, tt := range tests {
		_, err := Parse(tt.src)
		require.Error(t, err, tt.src)
		assert.ErrorIs(t, err, tt.want, tt.src)

		var pe *ParseError
		require.ErrorAs(t, err, &pe, tt.src)
		assert.Equal(t, tt.tok, pe.Token, tt.src)
	}
}

func TestParseEmptyMessage(t *testing.T) {
	p, err := Parse("type ''")
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())
	assert.Equal(t, "", p.At(0).Message)
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("record   bogus")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 9, pe.Pos)
	assert.Contains(t, pe.Error(), "bogus")
}

func TestParseEmpty(t *testing.T) {
	p, err := Parse("   ")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())
}

func TestParseNegativeWaitAccepted(t *testing.T) {
	p, err := Parse("wait_time -1")
	require.NoError(t, err)
	assert.Equal(t, -time.Second, p.At(0).Wait)
}

func TestParseRepeatSequence(t *testing.T) {
	p, err := Parse("type 'a' wait_time 0 repeat")
	require.NoError(t, err)
	require.Equal(t, 3, p.Len())

	repeat := p.At(2)
	assert.Equal(t, types.StateRepeat, repeat.Target)
	assert.Equal(t, []int{0, 1, 2}, repeat.Sequence)
	assert.Same(t, p, repeat.Program)

	next := repeat.Expand()
	require.Len(t, next, 3)
	assert.Equal(t, "a", next[0].Message)
	assert.Equal(t, types.StateRepeat, next[2].Target)
}

func TestParseRepeatTrailingWarns(t *testing.T) {
	var buf bytes.Buffer
	parser := NewParser(Options{Logger: slog.New(slog.NewTextHandler(&buf, nil))})

	p, err := parser.Parse("type 'a' repeat type 'b'")
	require.NoError(t, err)
	require.Equal(t, 3, p.Len())
	assert.Equal(t, []int{0, 1}, p.At(1).Sequence)
	assert.Contains(t, buf.String(), "level=WARN")

	buf.Reset()
	_, err = parser.Parse("repeat")
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestParseMaxActions(t *testing.T) {
	parser := NewParser(Options{MaxActions: 2})

	_, err := parser.Parse("record record")
	require.NoError(t, err)

	_, err = parser.Parse("record record record")
	assert.ErrorIs(t, err, ErrProgramTooLarge)
}

func TestFormatRoundTrip(t *testing.T) {
	src := "record replay save.txt type 'hello world' wait_time 1.5 await_press space await_press x repeat"
	p, err := Parse(src)
	require.NoError(t, err)

	formatted := strings.Join(FormatProgram(p), " ")
	assert.Equal(t, src, formatted)

	again, err := Parse(formatted)
	require.NoError(t, err)
	assert.Equal(t, p.Len(), again.Len())
}
