package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	pb "github.com/dmitrijs2005/authkeeper/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// authAPI is the subset of pb.AuthServiceClient the client calls.
type authAPI interface {
	Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Logout(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	WhoAmI(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	RotateSigningKey(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      authAPI
	now         func() time.Time

	// refreshMu serializes refreshes; a refresh token is single use.
	refreshMu sync.Mutex

	mu      sync.Mutex
	session models.Session
	// onRotate is called with every new token pair.
	onRotate func(models.Session)
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

// accessTokenInterceptor attaches the access token and retries once after a
// refresh when the server reports it expired.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if method == pb.MethodRefresh || method == pb.MethodLogin || method == pb.MethodRegister {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	sent := s.Session().AccessToken
	err := invoker(withAccessToken(ctx, sent), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}
	if s.Session().RefreshToken == "" {
		return err
	}

	if rerr := s.refreshExpired(ctx, sent); rerr != nil {
		return rerr
	}
	return invoker(withAccessToken(ctx, s.Session().AccessToken), method, req, reply, cc, opts...)
}

// refreshExpired refreshes the pair unless another call already replaced the
// expired access token while this one waited.
func (s *GRPCClient) refreshExpired(ctx context.Context, expired string) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.Session().AccessToken != expired {
		return nil
	}
	_, err := s.refresh(ctx)
	return err
}

// NewAuthKeeperClient prepares a connection to endpointURL. Dialing is lazy.
func NewAuthKeeperClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, now: time.Now}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewAuthServiceClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Session() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *GRPCClient) Resume(session models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// OnRotate registers fn to receive every token pair the client obtains,
// including the empty session after logout.
func (s *GRPCClient) OnRotate(fn func(models.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRotate = fn
}

func (s *GRPCClient) setSession(session models.Session) {
	s.mu.Lock()
	s.session = session
	cb := s.onRotate
	s.mu.Unlock()

	if cb != nil {
		cb(session)
	}
}

func request(fields map[string]any) *structpb.Struct {
	m, err := structpb.NewStruct(fields)
	if err != nil {
		// fields are always strings
		panic(err)
	}
	return m
}

func toUser(m *structpb.Struct) *models.User {
	u := pb.UserFromStruct(m)
	return &models.User{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

func (s *GRPCClient) toSession(login string, m *structpb.Struct) models.Session {
	p := pb.TokenPairFromStruct(m)
	now := s.now()
	return models.Session{
		Login:            login,
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  now.Add(time.Duration(p.ExpiresIn) * time.Second),
		RefreshExpiresAt: now.Add(time.Duration(p.RefreshExpiresIn) * time.Second),
	}
}

func (s *GRPCClient) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	resp, err := s.client.Register(ctx, request(map[string]any{
		pb.FieldUsername: username,
		pb.FieldEmail:    email,
		pb.FieldPassword: password,
	}))
	if err != nil {
		return nil, s.mapError(err)
	}
	return toUser(resp), nil
}

func (s *GRPCClient) Login(ctx context.Context, login, password string) (*models.Session, error) {
	resp, err := s.client.Login(ctx, request(map[string]any{
		pb.FieldLogin:    login,
		pb.FieldPassword: password,
	}))
	if err != nil {
		return nil, s.mapError(err)
	}

	session := s.toSession(login, resp)
	s.setSession(session)
	return &session, nil
}

// Refresh trades the current refresh token for a new pair.
func (s *GRPCClient) Refresh(ctx context.Context) (*models.Session, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.refresh(ctx)
}

func (s *GRPCClient) refresh(ctx context.Context) (*models.Session, error) {
	current := s.Session()
	if current.RefreshToken == "" {
		return nil, ErrNotLoggedIn
	}

	resp, err := s.client.Refresh(ctx, request(map[string]any{pb.FieldRefreshToken: current.RefreshToken}))
	if err != nil {
		return nil, s.mapError(err)
	}

	session := s.toSession(current.Login, resp)
	s.setSession(session)
	return &session, nil
}

// Logout ends the session on the server and forgets the tokens locally,
// even when the server call fails.
func (s *GRPCClient) Logout(ctx context.Context) error {
	current := s.Session()
	if current.RefreshToken == "" {
		return ErrNotLoggedIn
	}

	_, err := s.client.Logout(withAccessToken(ctx, current.AccessToken),
		request(map[string]any{pb.FieldRefreshToken: current.RefreshToken}))
	s.setSession(models.Session{})
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) WhoAmI(ctx context.Context) (*models.User, error) {
	resp, err := s.client.WhoAmI(ctx, request(nil))
	if err != nil {
		return nil, s.mapError(err)
	}
	return toUser(resp), nil
}

func (s *GRPCClient) RotateSigningKey(ctx context.Context) (string, error) {
	resp, err := s.client.RotateSigningKey(ctx, request(nil))
	if err != nil {
		return "", s.mapError(err)
	}
	return pb.String(resp, pb.FieldKID), nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, request(nil))
	if err != nil {
		return s.mapError(err)
	}

	if pb.String(resp, pb.FieldStatus) != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.PermissionDenied:
		return ErrForbidden
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidInput, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrAlreadyExists, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
