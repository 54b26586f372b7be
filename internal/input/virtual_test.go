package input

import (
	"testing"

	"github.com/TeYo001/Mimic/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualRecordsInjections(t *testing.T) {
	v := NewVirtual(nil)

	require.NoError(t, v.SetPosition(10, 20))
	require.NoError(t, v.Click(types.ButtonRight))
	require.NoError(t, v.Scroll(0, -2))
	require.NoError(t, Tap(v, types.KeyFromChar('h')))

	ops := v.Ops()
	require.Len(t, ops, 5)
	assert.Equal(t, OpSetPosition, ops[0].Kind)
	assert.Equal(t, OpClick, ops[1].Kind)
	assert.Equal(t, OpScroll, ops[2].Kind)
	assert.Equal(t, OpPress, ops[3].Kind)
	assert.Equal(t, OpRelease, ops[4].Kind)
	assert.Equal(t, 'h', ops[3].Key.Char)

	x, y := v.Position()
	assert.Equal(t, 10, x)
	assert.Equal(t, 20, y)

	assert.Error(t, v.Click(types.Button(0)))

	v.Reset()
	assert.Empty(t, v.Ops())
}

func TestInjectDispatchesByKind(t *testing.T) {
	v := NewVirtual(nil)
	events := []types.RecordedEvent{
		types.NewMouseMove(1, 2, 0),
		types.NewMouseClick(types.ButtonLeft, 0),
		types.NewMouseScroll(3, 4, 0),
		types.NewKeyPress(types.KeyFromCode(0x41), 0),
		types.NewKeyRelease(types.KeyFromCode(0x41), 0),
	}
	for _, e := range events {
		require.NoError(t, Inject(v, e))
	}

	kinds := []OpKind{}
	for _, op := range v.Ops() {
		kinds = append(kinds, op.Kind)
	}
	assert.Equal(t, []OpKind{OpSetPosition, OpClick, OpScroll, OpPress, OpRelease}, kinds)

	assert.ErrorIs(t, Inject(v, types.RecordedEvent{Kind: types.EventKind(42)}), types.ErrUnknownEventType)
}

func TestVirtualListenerLifecycle(t *testing.T) {
	v := NewVirtual(nil)

	var moves, keys int
	l := v.Listen(Callbacks{
		Move:     func(x, y int) { moves++ },
		KeyPress: func(types.Key) { keys++ },
	})

	v.EmitMove(1, 1)
	assert.Equal(t, 0, moves, "stopped listeners receive nothing")

	require.NoError(t, l.Start())
	v.EmitMove(2, 2)
	v.EmitKeyTap(types.KeyFromChar('a'))
	v.EmitScroll(0, 1)
	assert.Equal(t, 1, moves)
	assert.Equal(t, 1, keys)

	require.NoError(t, l.Stop())
	assert.ErrorIs(t, l.Stop(), ErrListenerStopped)
	v.EmitMove(3, 3)
	assert.Equal(t, 1, moves)
}

func TestInjectionDoesNotEcho(t *testing.T) {
	v := NewVirtual(nil)
	var moves int
	l := v.Listen(Callbacks{Move: func(x, y int) { moves++ }})
	require.NoError(t, l.Start())

	require.NoError(t, v.SetPosition(5, 5))
	assert.Equal(t, 0, moves)
}
