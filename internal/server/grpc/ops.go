package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full method names of the ops service. Requests and responses are
// google.protobuf.Struct documents.
const (
	OpsServiceName         = "memeforge.ops.v1.Ops"
	SeedMemeMethod         = "/" + OpsServiceName + "/SeedMeme"
	ReconcileOrphansMethod = "/" + OpsServiceName + "/ReconcileOrphans"
)

// OpsServer is implemented by the operator service.
type OpsServer interface {
	SeedMeme(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReconcileOrphans(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func structHandler(fullMethod string, call func(OpsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OpsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OpsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// OpsServiceDesc describes memeforge.ops.v1.Ops for grpc.Server.RegisterService.
var OpsServiceDesc = grpc.ServiceDesc{
	ServiceName: OpsServiceName,
	HandlerType: (*OpsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SeedMeme",
			Handler:    structHandler(SeedMemeMethod, OpsServer.SeedMeme),
		},
		{
			MethodName: "ReconcileOrphans",
			Handler:    structHandler(ReconcileOrphansMethod, OpsServer.ReconcileOrphans),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "memeforge/ops/v1/ops.proto",
}
