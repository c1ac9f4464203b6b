package proto

import (
	"context"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "vaultsync.v1.SyncService"

const (
	SyncService_RegisterDevice_FullMethodName = "/" + ServiceName + "/RegisterDevice"
	SyncService_GetSalt_FullMethodName        = "/" + ServiceName + "/GetSalt"
	SyncService_Push_FullMethodName           = "/" + ServiceName + "/Push"
	SyncService_Pull_FullMethodName           = "/" + ServiceName + "/Pull"
	SyncService_ListVersions_FullMethodName   = "/" + ServiceName + "/ListVersions"
	SyncService_ListDevices_FullMethodName    = "/" + ServiceName + "/ListDevices"
	SyncService_Ping_FullMethodName           = "/" + ServiceName + "/Ping"
)

// SyncServiceServer is the server API for the sync service.
type SyncServiceServer interface {
	RegisterDevice(context.Context, *RegisterDeviceRequest) (*RegisterDeviceResponse, error)
	GetSalt(context.Context, *GetSaltRequest) (*GetSaltResponse, error)
	Push(context.Context, *PushRequest) (*PushResponse, error)
	Pull(context.Context, *PullRequest) (*PullResponse, error)
	ListVersions(context.Context, *ListVersionsRequest) (*ListVersionsResponse, error)
	ListDevices(context.Context, *ListDevicesRequest) (*ListDevicesResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

// UnimplementedSyncServiceServer can be embedded to stay forward compatible.
type UnimplementedSyncServiceServer struct{}

func (UnimplementedSyncServiceServer) RegisterDevice(context.Context, *RegisterDeviceRequest) (*RegisterDeviceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterDevice not implemented")
}
func (UnimplementedSyncServiceServer) GetSalt(context.Context, *GetSaltRequest) (*GetSaltResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSalt not implemented")
}
func (UnimplementedSyncServiceServer) Push(context.Context, *PushRequest) (*PushResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Push not implemented")
}
func (UnimplementedSyncServiceServer) Pull(context.Context, *PullRequest) (*PullResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Pull not implemented")
}
func (UnimplementedSyncServiceServer) ListVersions(context.Context, *ListVersionsRequest) (*ListVersionsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListVersions not implemented")
}
func (UnimplementedSyncServiceServer) ListDevices(context.Context, *ListDevicesRequest) (*ListDevicesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListDevices not implemented")
}
func (UnimplementedSyncServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}

func RegisterSyncServiceServer(s grpc.ServiceRegistrar, srv SyncServiceServer) {
	s.RegisterService(&SyncService_ServiceDesc, srv)
}

// unaryHandler adapts one typed server method to a grpc.MethodHandler.
func unaryHandler[Req, Resp any](fullMethod string, call func(SyncServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SyncServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SyncServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var SyncService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterDevice", Handler: unaryHandler(SyncService_RegisterDevice_FullMethodName, SyncServiceServer.RegisterDevice)},
		{MethodName: "GetSalt", Handler: unaryHandler(SyncService_GetSalt_FullMethodName, SyncServiceServer.GetSalt)},
		{MethodName: "Push", Handler: unaryHandler(SyncService_Push_FullMethodName, SyncServiceServer.Push)},
		{MethodName: "Pull", Handler: unaryHandler(SyncService_Pull_FullMethodName, SyncServiceServer.Pull)},
		{MethodName: "ListVersions", Handler: unaryHandler(SyncService_ListVersions_FullMethodName, SyncServiceServer.ListVersions)},
		{MethodName: "ListDevices", Handler: unaryHandler(SyncService_ListDevices_FullMethodName, SyncServiceServer.ListDevices)},
		{MethodName: "Ping", Handler: unaryHandler(SyncService_Ping_FullMethodName, SyncServiceServer.Ping)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vaultsync/v1/sync.json",
}

// SyncServiceClient is the client API for the sync service.
type SyncServiceClient interface {
	RegisterDevice(ctx context.Context, in *RegisterDeviceRequest, opts ...grpc.CallOption) (*RegisterDeviceResponse, error)
	GetSalt(ctx context.Context, in *GetSaltRequest, opts ...grpc.CallOption) (*GetSaltResponse, error)
	Push(ctx context.Context, in *PushRequest, opts ...grpc.CallOption) (*PushResponse, error)
	Pull(ctx context.Context, in *PullRequest, opts ...grpc.CallOption) (*PullResponse, error)
	ListVersions(ctx context.Context, in *ListVersionsRequest, opts ...grpc.CallOption) (*ListVersionsResponse, error)
	ListDevices(ctx context.Context, in *ListDevicesRequest, opts ...grpc.CallOption) (*ListDevicesResponse, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
}

type syncServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSyncServiceClient(cc grpc.ClientConnInterface) SyncServiceClient {
	return &syncServiceClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(common.JSONContentSubtype)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) RegisterDevice(ctx context.Context, in *RegisterDeviceRequest, opts ...grpc.CallOption) (*RegisterDeviceResponse, error) {
	return invoke[RegisterDeviceResponse](ctx, c.cc, SyncService_RegisterDevice_FullMethodName, in, opts)
}

func (c *syncServiceClient) GetSalt(ctx context.Context, in *GetSaltRequest, opts ...grpc.CallOption) (*GetSaltResponse, error) {
	return invoke[GetSaltResponse](ctx, c.cc, SyncService_GetSalt_FullMethodName, in, opts)
}

func (c *syncServiceClient) Push(ctx context.Context, in *PushRequest, opts ...grpc.CallOption) (*PushResponse, error) {
	return invoke[PushResponse](ctx, c.cc, SyncService_Push_FullMethodName, in, opts)
}

func (c *syncServiceClient) Pull(ctx context.Context, in *PullRequest, opts ...grpc.CallOption) (*PullResponse, error) {
	return invoke[PullResponse](ctx, c.cc, SyncService_Pull_FullMethodName, in, opts)
}

func (c *syncServiceClient) ListVersions(ctx context.Context, in *ListVersionsRequest, opts ...grpc.CallOption) (*ListVersionsResponse, error) {
	return invoke[ListVersionsResponse](ctx, c.cc, SyncService_ListVersions_FullMethodName, in, opts)
}

func (c *syncServiceClient) ListDevices(ctx context.Context, in *ListDevicesRequest, opts ...grpc.CallOption) (*ListDevicesResponse, error) {
	return invoke[ListDevicesResponse](ctx, c.cc, SyncService_ListDevices_FullMethodName, in, opts)
}

func (c *syncServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, SyncService_Ping_FullMethodName, in, opts)
}
