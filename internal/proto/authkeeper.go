// Package proto defines the authkeeper.AuthService gRPC contract. Messages
// are google.protobuf.Struct values; the field names below are the schema.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "authkeeper.AuthService"

// Full method names, as seen by interceptors.
const (
	MethodRegister         = "/" + ServiceName + "/Register"
	MethodLogin            = "/" + ServiceName + "/Login"
	MethodRefresh          = "/" + ServiceName + "/Refresh"
	MethodLogout           = "/" + ServiceName + "/Logout"
	MethodWhoAmI           = "/" + ServiceName + "/WhoAmI"
	MethodRotateSigningKey = "/" + ServiceName + "/RotateSigningKey"
	MethodPing             = "/" + ServiceName + "/Ping"
)

// Message field names.
const (
	FieldID               = "id"
	FieldUsername         = "username"
	FieldEmail            = "email"
	FieldPassword         = "password"
	FieldLogin            = "login"
	FieldRole             = "role"
	FieldAccessToken      = "access_token"
	FieldRefreshToken     = "refresh_token"
	FieldTokenType        = "token_type"
	FieldExpiresIn        = "expires_in"
	FieldRefreshExpiresIn = "refresh_expires_in"
	FieldKID              = "kid"
	FieldStatus           = "status"
)

// AuthServiceServer is implemented by the server transport.
type AuthServiceServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WhoAmI(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RotateSigningKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(AuthServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name, fullMethod string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// AuthServiceDesc registers an AuthServiceServer on a *grpc.Server.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method("Register", MethodRegister, AuthServiceServer.Register),
		method("Login", MethodLogin, AuthServiceServer.Login),
		method("Refresh", MethodRefresh, AuthServiceServer.Refresh),
		method("Logout", MethodLogout, AuthServiceServer.Logout),
		method("WhoAmI", MethodWhoAmI, AuthServiceServer.WhoAmI),
		method("RotateSigningKey", MethodRotateSigningKey, AuthServiceServer.RotateSigningKey),
		method("Ping", MethodPing, AuthServiceServer.Ping),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authkeeper.proto",
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

// AuthServiceClient is the client stub of the service.
type AuthServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthServiceClient(cc grpc.ClientConnInterface) *AuthServiceClient {
	return &AuthServiceClient{cc: cc}
}

func (c *AuthServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthServiceClient) Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRegister, in, opts...)
}

func (c *AuthServiceClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodLogin, in, opts...)
}

func (c *AuthServiceClient) Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRefresh, in, opts...)
}

func (c *AuthServiceClient) Logout(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodLogout, in, opts...)
}

func (c *AuthServiceClient) WhoAmI(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodWhoAmI, in, opts...)
}

func (c *AuthServiceClient) RotateSigningKey(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRotateSigningKey, in, opts...)
}

func (c *AuthServiceClient) Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPing, in, opts...)
}

// String returns a string field of a message, or "" when absent.
func String(m *structpb.Struct, name string) string {
	return m.GetFields()[name].GetStringValue()
}

// Int returns a numeric field of a message truncated to int64.
func Int(m *structpb.Struct, name string) int64 {
	return int64(m.GetFields()[name].GetNumberValue())
}
