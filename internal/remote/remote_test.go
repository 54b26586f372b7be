package remote

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/TeYo001/Mimic/internal/queue"
	"github.com/TeYo001/Mimic/internal/scheduler"
	"github.com/TeYo001/Mimic/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// fakeBackend records what the service asks of it
type fakeBackend struct {
	mu           sync.Mutex
	programs     []*types.Program
	interrupts   []types.Action
	submitErr    error
	interruptErr error
	status       scheduler.Status
}

func (f *fakeBackend) Submit(p *types.Program) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return 0, f.submitErr
	}
	f.programs = append(f.programs, p)
	return p.Len(), nil
}

func (f *fakeBackend) Interrupt(_ context.Context, a types.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.interruptErr != nil {
		return f.interruptErr
	}
	f.interrupts = append(f.interrupts, a)
	return nil
}

func (f *fakeBackend) Status() scheduler.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// startControl serves a Server for backend over an in-memory listener
func startControl(t *testing.T, backend Backend, maxActions int) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, lis, NewServer(backend, maxActions, nil)) }()

	client, conn, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("control server did not stop")
		}
	})
	return client
}

func rpcCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmitQueuesParsedProgram(t *testing.T) {
	backend := &fakeBackend{}
	client := startControl(t, backend, 128)

	n, err := client.Submit(rpcCtx(t), "type 'hi there' wait_time 0.5 repeat")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, backend.programs, 1)
	p := backend.programs[0]
	assert.Equal(t, types.StateTyping, p.At(0).Target)
	assert.Equal(t, "hi there", p.At(0).Message)
	assert.Equal(t, 500*time.Millisecond, p.At(1).Wait)
	assert.Equal(t, types.StateRepeat, p.At(2).Target)
}

func TestSubmitParseErrorIsInvalidArgument(t *testing.T) {
	backend := &fakeBackend{}
	client := startControl(t, backend, 128)

	_, err := client.Submit(rpcCtx(t), "dance")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Empty(t, backend.programs)
}

func TestSubmitTooLargeIsRejected(t *testing.T) {
	client := startControl(t, &fakeBackend{}, 2)

	_, err := client.Submit(rpcCtx(t), "record record record")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSubmitWithoutRoomIsResourceExhausted(t *testing.T) {
	backend := &fakeBackend{submitErr: scheduler.ErrNotEnoughRoom}
	client := startControl(t, backend, 128)

	_, err := client.Submit(rpcCtx(t), "record")
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestInterruptBuildsSpecialKeyAction(t *testing.T) {
	backend := &fakeBackend{}
	client := startControl(t, backend, 128)

	require.NoError(t, client.Interrupt(rpcCtx(t), "save", "out.txt"))
	require.NoError(t, client.Interrupt(rpcCtx(t), "replaying", ""))

	require.Len(t, backend.interrupts, 2)
	save := backend.interrupts[0]
	assert.Equal(t, types.StateSaving, save.Target)
	assert.Equal(t, types.OriginSpecialKey, save.Origin)
	assert.True(t, save.MustFinish)
	assert.Equal(t, "out.txt", save.Filename)

	replay := backend.interrupts[1]
	assert.Equal(t, types.StateReplaying, replay.Target)
	assert.False(t, replay.MustFinish)
}

func TestInterruptRejectsBadStates(t *testing.T) {
	client := startControl(t, &fakeBackend{}, 128)

	for _, name := range []string{"", "dance", "typing", "repeat"} {
		err := client.Interrupt(rpcCtx(t), name, "")
		require.Error(t, err, name)
		assert.Equal(t, codes.InvalidArgument, status.Code(err), name)
	}
}

func TestInterruptOnClosedQueueIsUnavailable(t *testing.T) {
	client := startControl(t, &fakeBackend{interruptErr: queue.ErrQueueClosed}, 128)

	err := client.Interrupt(rpcCtx(t), "exit", "")
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestStatusRoundTrip(t *testing.T) {
	want := scheduler.Status{
		Session:        uuid.New(),
		State:          types.StateRecording,
		Daemon:         true,
		InterruptDepth: 1,
		ScriptedDepth:  4,
		EventsBuffered: 17,
		EventsDropped:  2,
		Dispatched:     9,
	}
	client := startControl(t, &fakeBackend{status: want}, 128)

	got, err := client.Status(rpcCtx(t))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseInterrupt(t *testing.T) {
	tests := []struct {
		in   string
		want types.State
	}{
		{"record", types.StateRecording},
		{"REPLAY", types.StateReplaying},
		{" save ", types.StateSaving},
		{"idle", types.StateIdle},
		{"exit", types.StateExiting},
		{"exiting", types.StateExiting},
	}
	for _, tt := range tests {
		got, err := ParseInterrupt(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseInterrupt("nope")
	assert.Error(t, err)
}
