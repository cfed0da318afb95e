// Package worker exposes evaluation over gRPC. The service is declared
// directly on well-known protobuf types, so no generated code is needed.
package worker

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "fitter.worker.v1.Worker"

const (
	broadcastMethod = "/" + ServiceName + "/Broadcast"
	evaluateMethod  = "/" + ServiceName + "/Evaluate"
)

// WorkerServer is the server side of the worker service.
type WorkerServer interface {
	// Broadcast installs the shared read-only resource. It is accepted once.
	Broadcast(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Evaluate runs one fully resolved job.
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the worker service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Broadcast", Handler: broadcastHandler},
		{MethodName: "Evaluate", Handler: evaluateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fitter/worker/v1/worker.proto",
}

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv WorkerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func broadcastHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServer).Broadcast(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: broadcastMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WorkerServer).Broadcast(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: evaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WorkerServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
