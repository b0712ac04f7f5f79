package grpc

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	pb "github.com/dmitrijs2005/authkeeper/internal/proto"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// handler implements pb.AuthServiceServer on top of GRPCServer.
type handler struct {
	s *GRPCServer
}

// fail logs unexpected failures and converts err to a status.
func (h *handler) fail(ctx context.Context, op string, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		h.s.logger.Error(ctx, op+" failed", "error", err)
	}
	return st
}

func userMessage(u *models.User) (*structpb.Struct, error) {
	m := &pb.User{ID: u.ID, Username: u.UserName, Email: u.Email, Role: u.Role}
	return m.Struct()
}

func pairMessage(p *services.TokenPair) (*structpb.Struct, error) {
	m := &pb.TokenPair{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        p.TokenType,
		ExpiresIn:        int64(p.ExpiresIn.Seconds()),
		RefreshExpiresIn: int64(p.RefreshExpiresIn.Seconds()),
	}
	return m.Struct()
}

func (h *handler) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	h.s.logger.Info(ctx, "Registration request")

	u, err := h.s.auth.Register(ctx, pb.String(req, pb.FieldUsername), pb.String(req, pb.FieldEmail), pb.String(req, pb.FieldPassword))
	if err != nil {
		return nil, h.fail(ctx, "register", err)
	}

	h.s.logger.Info(ctx, "Registered", "user_id", u.ID)
	return userMessage(u)
}

func (h *handler) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	login := pb.String(req, pb.FieldLogin)
	if login == "" {
		login = pb.String(req, pb.FieldUsername)
	}

	pair, err := h.s.auth.Login(ctx, login, pb.String(req, pb.FieldPassword))
	if err != nil {
		return nil, h.fail(ctx, "login", err)
	}
	return pairMessage(pair)
}

func (h *handler) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pair, err := h.s.auth.Refresh(ctx, pb.String(req, pb.FieldRefreshToken))
	if err != nil {
		return nil, h.fail(ctx, "refresh", err)
	}
	return pairMessage(pair)
}

func (h *handler) Logout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accessToken := pb.String(req, pb.FieldAccessToken)
	if accessToken == "" {
		accessToken = accessTokenFromContext(ctx)
	}

	if err := h.s.auth.Logout(ctx, pb.String(req, pb.FieldRefreshToken), accessToken); err != nil {
		return nil, h.fail(ctx, "logout", err)
	}
	return structpb.NewStruct(map[string]any{pb.FieldStatus: "OK"})
}

func (h *handler) WhoAmI(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, common.ErrTokenInvalid.Error())
	}
	u, err := h.s.auth.CurrentUser(ctx, claims)
	if err != nil {
		return nil, h.fail(ctx, "whoami", err)
	}
	return userMessage(u)
}

func (h *handler) RotateSigningKey(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	claims, _ := claimsFromContext(ctx)
	kid, err := h.s.auth.RotateSigningKey(ctx)
	if err != nil {
		return nil, h.fail(ctx, "rotate signing key", err)
	}
	if claims != nil {
		h.s.logger.Info(ctx, "signing key rotated by admin", "user_id", claims.Subject, "kid", kid)
	}
	return structpb.NewStruct(map[string]any{pb.FieldKID: kid})
}

func (h *handler) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{pb.FieldStatus: "OK"})
}
