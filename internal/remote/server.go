// ============================================================================
// Mimic Remote Control - gRPC service
// ============================================================================
//
// Package: internal/remote
// File: server.go
// Purpose: Let another process drive a running scheduler: submit scripts,
//          send interrupts and read the current status.
//
// Service mimic.v1.Control, messages are protobuf well-known types:
//
//   Submit    (StringValue script)             -> Int32Value  actions queued
//   Interrupt (Struct{state, filename})        -> Empty
//   Status    (Empty)                          -> Struct      state, depths
//
// Interrupt states: record | replay | save | idle | exit, or any state name
// an interrupt may target ("recording", "saving", ...).
//
// Error mapping:
//   - parse errors, unknown states            InvalidArgument
//   - program larger than the free room       ResourceExhausted
//   - interrupt queue closed                  Unavailable
//
// ============================================================================

package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/TeYo001/Mimic/internal/hotkey"
	"github.com/TeYo001/Mimic/internal/queue"
	"github.com/TeYo001/Mimic/internal/scheduler"
	"github.com/TeYo001/Mimic/internal/script"
	"github.com/TeYo001/Mimic/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "mimic.v1.Control"

const (
	submitMethod    = "/" + ServiceName + "/Submit"
	interruptMethod = "/" + ServiceName + "/Interrupt"
	statusMethod    = "/" + ServiceName + "/Status"
)

// Backend is the part of the scheduler the service drives
type Backend interface {
	Submit(p *types.Program) (int, error)
	Interrupt(ctx context.Context, a types.Action) error
	Status() scheduler.Status
}

// ControlServer is the server API of mimic.v1.Control
type ControlServer interface {
	Submit(context.Context, *wrapperspb.StringValue) (*wrapperspb.Int32Value, error)
	Interrupt(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// interruptAliases maps the hotkey names to their target states
var interruptAliases = map[string]types.State{
	"record": types.StateRecording,
	"replay": types.StateReplaying,
	"save":   types.StateSaving,
	"idle":   types.StateIdle,
	"exit":   types.StateExiting,
}

// ParseInterrupt resolves a hotkey or state name to an interrupt target
func ParseInterrupt(name string) (types.State, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if st, ok := interruptAliases[name]; ok {
		return st, nil
	}
	return types.ParseState(name)
}

// ============================================================================
// Server
// ============================================================================

// Server implements ControlServer on top of a Backend
type Server struct {
	backend    Backend
	maxActions int
	log        *slog.Logger
}

// NewServer creates the service. maxActions bounds submitted programs,
// normally the scripted queue capacity.
func NewServer(backend Backend, maxActions int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{backend: backend, maxActions: maxActions, log: log}
}

// Register attaches the service to gs
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&controlServiceDesc, s)
}

// Submit parses a script and queues its actions
func (s *Server) Submit(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int32Value, error) {
	p, err := script.NewParser(script.Options{MaxActions: s.maxActions, Logger: s.log}).Parse(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	n, err := s.backend.Submit(p)
	if err != nil {
		if errors.Is(err, scheduler.ErrNotEnoughRoom) || errors.Is(err, queue.ErrQueueFull) {
			return nil, status.Error(codes.ResourceExhausted, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	s.log.Info("Remote script submitted", "actions", n)
	return wrapperspb.Int32(int32(n)), nil
}

// Interrupt queues an interrupt as if its hotkey had been pressed
func (s *Server) Interrupt(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	fields := req.GetFields()
	target, err := ParseInterrupt(fields["state"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	a, err := hotkey.NewInterrupt(target, fields["filename"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.backend.Interrupt(ctx, a); err != nil {
		switch {
		case errors.Is(err, queue.ErrQueueClosed):
			return nil, status.Error(codes.Unavailable, err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, status.FromContextError(err).Err()
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	s.log.Info("Remote interrupt queued", "actionID", a.ID, "state", target)
	return &emptypb.Empty{}, nil
}

// Status reports the backend's current status
func (s *Server) Status(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	st, err := encodeStatus(s.backend.Status())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

// Serve runs a gRPC server for s on lis until ctx is cancelled
func Serve(ctx context.Context, lis net.Listener, s *Server) error {
	gs := grpc.NewServer()
	s.Register(gs)

	errCh := make(chan error, 1)
	go func() { errCh <- gs.Serve(lis) }()
	s.log.Info("Control service listening", "addr", lis.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("control service: %w", err)
	case <-ctx.Done():
		gs.GracefulStop()
		<-errCh
		return nil
	}
}

// ============================================================================
// Status encoding
// ============================================================================

func encodeStatus(st scheduler.Status) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"session":         st.Session.String(),
		"state":           st.State.String(),
		"daemon":          st.Daemon,
		"interrupt_depth": st.InterruptDepth,
		"scripted_depth":  st.ScriptedDepth,
		"events_buffered": st.EventsBuffered,
		"events_dropped":  st.EventsDropped,
		"dispatched":      st.Dispatched,
	})
}

// ============================================================================
// Service descriptor
// ============================================================================

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: submitHandler},
		{MethodName: "Interrupt", Handler: interruptHandler},
		{MethodName: "Status", Handler: statusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mimic/v1/control.proto",
}

func submitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: submitMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).Submit(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func interruptHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).Interrupt(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: interruptMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).Interrupt(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: statusMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
