package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "jobsync.v1.JobService"

// JobServiceServer is the server API. Messages are protobuf well-known
// types so no generated code is needed.
type JobServiceServer interface {
	ListJobs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Health(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Apply(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Unapply(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

// ServiceDesc describes JobService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*JobServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListJobs", func() *structpb.Struct { return new(structpb.Struct) }, JobServiceServer.ListJobs),
		unary("GetStats", func() *emptypb.Empty { return new(emptypb.Empty) }, JobServiceServer.GetStats),
		unary("Health", func() *emptypb.Empty { return new(emptypb.Empty) }, JobServiceServer.Health),
		unary("Apply", func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, JobServiceServer.Apply),
		unary("Unapply", func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, JobServiceServer.Unapply),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jobsync/v1/jobs.proto",
}

// RegisterJobServiceServer registers srv on s.
func RegisterJobServiceServer(s grpc.ServiceRegistrar, srv JobServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary[Req, Resp proto.Message](
	method string,
	newReq func() Req,
	call func(JobServiceServer, context.Context, Req) (Resp, error),
) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(JobServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(JobServiceServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ─── Client ──────────────────────────────────────────────────────────────────

// Client is a thin JobService client over a grpc.ClientConnInterface.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) ListJobs(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ListJobs", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetStats", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Health", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Apply(ctx context.Context, id string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/Apply", wrapperspb.String(id), new(emptypb.Empty), opts...)
}

func (c *Client) Unapply(ctx context.Context, id string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/Unapply", wrapperspb.String(id), new(emptypb.Empty), opts...)
}
