package monitor

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// MonitorServiceName is the fully-qualified gRPC service name
const MonitorServiceName = "mgtune.v1.Monitor"

const (
	getSessionMethod = "/" + MonitorServiceName + "/GetSession"
	getBestMethod    = "/" + MonitorServiceName + "/GetBest"
)

// MonitorServer is the server API for the Monitor service
type MonitorServer interface {
	GetSession(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetBest(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// GRPCServer implements MonitorServer over a SessionStore
type GRPCServer struct {
	store *SessionStore
}

func NewGRPCServer(store *SessionStore) *GRPCServer {
	return &GRPCServer{store: store}
}

func (s *GRPCServer) GetSession(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.store.Snapshot())
}

func (s *GRPCServer) GetBest(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap := s.store.Snapshot()
	if snap.Best == nil {
		return nil, status.Error(codes.NotFound, "no trial has been measured yet")
	}
	return toStruct(snap.Best)
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "decode: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "struct: %v", err)
	}
	return out, nil
}

var monitorServiceDesc = grpc.ServiceDesc{
	ServiceName: MonitorServiceName,
	HandlerType: (*MonitorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSession", Handler: getSessionHandler},
		{MethodName: "GetBest", Handler: getBestHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mgtune/v1/monitor.proto",
}

func getSessionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MonitorServer).GetSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getSessionMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MonitorServer).GetSession(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getBestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MonitorServer).GetBest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getBestMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MonitorServer).GetBest(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterMonitorServer registers srv on s
func RegisterMonitorServer(s grpc.ServiceRegistrar, srv MonitorServer) {
	s.RegisterService(&monitorServiceDesc, srv)
}

// RegisterHealth registers the standard health service and keeps the
// Monitor entry in step with the session: SERVING while pending or running,
// NOT_SERVING once it has finished.
func RegisterHealth(s grpc.ServiceRegistrar, store *SessionStore) *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus(MonitorServiceName, healthpb.HealthCheckResponse_SERVING)
	store.OnStatus(func(st SessionStatus) {
		switch st {
		case SessionCompleted, SessionFailed:
			hs.SetServingStatus(MonitorServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		default:
			hs.SetServingStatus(MonitorServiceName, healthpb.HealthCheckResponse_SERVING)
		}
	})
	healthpb.RegisterHealthServer(s, hs)
	return hs
}

// MonitorClient calls a remote Monitor service
type MonitorClient struct {
	cc grpc.ClientConnInterface
}

func NewMonitorClient(cc grpc.ClientConnInterface) *MonitorClient {
	return &MonitorClient{cc: cc}
}

func (c *MonitorClient) GetSession(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getSessionMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, fmt.Errorf("GetSession: %w", err)
	}
	return out, nil
}

func (c *MonitorClient) GetBest(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getBestMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, fmt.Errorf("GetBest: %w", err)
	}
	return out, nil
}
