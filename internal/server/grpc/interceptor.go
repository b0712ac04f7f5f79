package grpc

import (
	"context"
	"runtime/debug"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/authz"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// claimsFromContext returns the claims put there by accessTokenInterceptor.
func claimsFromContext(ctx context.Context) (*auth.AccessClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.AccessClaims)
	return c, ok
}

func accessTokenFromContext(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	allow, protected := s.policies[info.FullMethod]
	if !protected {
		return handler(ctx, req)
	}

	accessToken := accessTokenFromContext(ctx)
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := authz.Authorize(ctx, s.auth, accessToken, allow)
	if err != nil {
		s.logger.Debug(ctx, "request rejected", "method", info.FullMethod, "error", err)
		return nil, toStatus(err)
	}

	ctx = context.WithValue(ctx, claimsKey, claims)
	return handler(ctx, req)
}

func (s *GRPCServer) recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error(ctx, "panic in handler", "method", info.FullMethod, "panic", p, "stack", string(debug.Stack()))
			resp, err = nil, status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}
