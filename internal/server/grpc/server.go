// Package grpc exposes AuthService over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	pb "github.com/dmitrijs2005/authkeeper/internal/proto"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/authz"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"google.golang.org/grpc"
)

// AuthService is the part of services.AuthService the transport needs.
type AuthService interface {
	authz.Authenticator
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, login, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken, accessToken string) error
	CurrentUser(ctx context.Context, claims *auth.AccessClaims) (*models.User, error)
	RotateSigningKey(ctx context.Context) (string, error)
}

type GRPCServer struct {
	address string
	auth    AuthService
	logger  logging.Logger
	// policies lists the methods that need an access token and who may call them.
	policies map[string]authz.Predicate
}

func NewGRPCServer(address string, l logging.Logger, svc AuthService) *GRPCServer {
	return &GRPCServer{
		address: address,
		auth:    svc,
		logger:  l.With("module", "grpc_server"),
		policies: map[string]authz.Predicate{
			pb.MethodWhoAmI:           authz.Authenticated(),
			pb.MethodRotateSigningKey: authz.RequireRoles(models.RoleAdmin),
		},
	}
}

// NewServer builds the *grpc.Server with interceptors and the service
// registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.accessTokenInterceptor))
	srv := grpc.NewServer(opts...)
	pb.RegisterAuthServiceServer(srv, &handler{s: s})
	return srv
}

// Run serves on the configured address until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
