package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "authkeeper.v1.TokenService"

// Method names of the token service.
const (
	MethodRegister   = "Register"
	MethodLogin      = "Login"
	MethodRefresh    = "Refresh"
	MethodLogout     = "Logout"
	MethodRevokeAll  = "RevokeAll"
	MethodMe         = "Me"
	MethodDeactivate = "Deactivate"
)

// FullMethod returns the "/service/method" path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// TokenServiceServer is the server API of the token service. Requests and
// responses are google.protobuf.Struct values.
type TokenServiceServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RevokeAll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Me(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Deactivate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(TokenServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(TokenServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*structpb.Struct))
		})
	}
}

// TokenServiceDesc describes the token service for grpc.Server.RegisterService.
var TokenServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TokenServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodRegister, Handler: unaryHandler(MethodRegister, TokenServiceServer.Register)},
		{MethodName: MethodLogin, Handler: unaryHandler(MethodLogin, TokenServiceServer.Login)},
		{MethodName: MethodRefresh, Handler: unaryHandler(MethodRefresh, TokenServiceServer.Refresh)},
		{MethodName: MethodLogout, Handler: unaryHandler(MethodLogout, TokenServiceServer.Logout)},
		{MethodName: MethodRevokeAll, Handler: unaryHandler(MethodRevokeAll, TokenServiceServer.RevokeAll)},
		{MethodName: MethodMe, Handler: unaryHandler(MethodMe, TokenServiceServer.Me)},
		{MethodName: MethodDeactivate, Handler: unaryHandler(MethodDeactivate, TokenServiceServer.Deactivate)},
	},
	Metadata: "authkeeper/v1/token_service.proto",
}

// RegisterTokenServiceServer registers srv on s.
func RegisterTokenServiceServer(s grpc.ServiceRegistrar, srv TokenServiceServer) {
	s.RegisterService(&TokenServiceDesc, srv)
}

// TokenServiceClient calls the token service over cc.
type TokenServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewTokenServiceClient(cc grpc.ClientConnInterface) *TokenServiceClient {
	return &TokenServiceClient{cc: cc}
}

// Call invokes method with in and returns the response struct.
func (c *TokenServiceClient) Call(ctx context.Context, method string, in map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
