package remote

import (
	"context"
	"fmt"

	"github.com/TeYo001/Mimic/internal/scheduler"
	"github.com/TeYo001/Mimic/pkg/types"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client talks to a remote mimic.v1.Control service
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an established connection
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial connects to addr without transport security. The control service is
// meant for loopback use.
func Dial(addr string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewClient(conn), conn, nil
}

// Submit sends a script and returns the number of actions queued
func (c *Client) Submit(ctx context.Context, src string) (int, error) {
	out := new(wrapperspb.Int32Value)
	if err := c.conn.Invoke(ctx, submitMethod, wrapperspb.String(src), out); err != nil {
		return 0, fmt.Errorf("rpc submit failed: %w", err)
	}
	return int(out.GetValue()), nil
}

// Interrupt asks the remote scheduler to switch to state, e.g. "record".
// filename is optional and only used by save and replay.
func (c *Client) Interrupt(ctx context.Context, state, filename string) error {
	in, err := structpb.NewStruct(map[string]any{
		"state":    state,
		"filename": filename,
	})
	if err != nil {
		return fmt.Errorf("encode interrupt: %w", err)
	}
	if err := c.conn.Invoke(ctx, interruptMethod, in, new(emptypb.Empty)); err != nil {
		return fmt.Errorf("rpc interrupt failed: %w", err)
	}
	return nil
}

// Status fetches the remote scheduler's status
func (c *Client) Status(ctx context.Context) (scheduler.Status, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, statusMethod, new(emptypb.Empty), out); err != nil {
		return scheduler.Status{}, fmt.Errorf("rpc status failed: %w", err)
	}
	return decodeStatus(out)
}

func decodeStatus(s *structpb.Struct) (scheduler.Status, error) {
	f := s.GetFields()

	session, err := uuid.Parse(f["session"].GetStringValue())
	if err != nil {
		return scheduler.Status{}, fmt.Errorf("decode status session: %w", err)
	}
	state, err := types.ParseState(f["state"].GetStringValue())
	if err != nil {
		return scheduler.Status{}, fmt.Errorf("decode status state: %w", err)
	}

	return scheduler.Status{
		Session:        session,
		State:          state,
		Daemon:         f["daemon"].GetBoolValue(),
		InterruptDepth: int(f["interrupt_depth"].GetNumberValue()),
		ScriptedDepth:  int(f["scripted_depth"].GetNumberValue()),
		EventsBuffered: int(f["events_buffered"].GetNumberValue()),
		EventsDropped:  uint64(f["events_dropped"].GetNumberValue()),
		Dispatched:     uint64(f["dispatched"].GetNumberValue()),
	}, nil
}
