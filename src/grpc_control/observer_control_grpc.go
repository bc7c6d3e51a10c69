package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages are well-known types, so the service needs no generated code.

const (
	ObserverControl_ServiceName                      = "alphatrak.ObserverControl"
	ObserverControl_GetStatus_FullMethodName         = "/alphatrak.ObserverControl/GetStatus"
	ObserverControl_Refresh_FullMethodName           = "/alphatrak.ObserverControl/Refresh"
	ObserverControl_UpdateCredentials_FullMethodName = "/alphatrak.ObserverControl/UpdateCredentials"
)

// -----------------------------------------------------------------------------

// ObserverControlServer is the server API for the ObserverControl service.
type ObserverControlServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateCredentials(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedObserverControlServer can be embedded for forward compatibility.
type UnimplementedObserverControlServer struct{}

func (UnimplementedObserverControlServer) GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStatus not implemented")
}
func (UnimplementedObserverControlServer) Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
}
func (UnimplementedObserverControlServer) UpdateCredentials(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateCredentials not implemented")
}

// -----------------------------------------------------------------------------

func RegisterObserverControlServer(s grpc.ServiceRegistrar, srv ObserverControlServer) {
	s.RegisterService(&ObserverControl_ServiceDesc, srv)
}

func _ObserverControl_GetStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ObserverControlServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ObserverControl_GetStatus_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ObserverControlServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _ObserverControl_Refresh_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ObserverControlServer).Refresh(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ObserverControl_Refresh_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ObserverControlServer).Refresh(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _ObserverControl_UpdateCredentials_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ObserverControlServer).UpdateCredentials(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ObserverControl_UpdateCredentials_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ObserverControlServer).UpdateCredentials(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ObserverControl_ServiceDesc is the grpc.ServiceDesc for the ObserverControl service.
var ObserverControl_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ObserverControl_ServiceName,
	HandlerType: (*ObserverControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: _ObserverControl_GetStatus_Handler},
		{MethodName: "Refresh", Handler: _ObserverControl_Refresh_Handler},
		{MethodName: "UpdateCredentials", Handler: _ObserverControl_UpdateCredentials_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "alphatrak/observer_control.proto",
}

// -----------------------------------------------------------------------------

// ObserverControlClient is the client API for the ObserverControl service.
type ObserverControlClient interface {
	GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpdateCredentials(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type observerControlClient struct {
	cc grpc.ClientConnInterface
}

func NewObserverControlClient(cc grpc.ClientConnInterface) ObserverControlClient {
	return &observerControlClient{cc}
}

func (c *observerControlClient) GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ObserverControl_GetStatus_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *observerControlClient) Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ObserverControl_Refresh_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *observerControlClient) UpdateCredentials(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ObserverControl_UpdateCredentials_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
