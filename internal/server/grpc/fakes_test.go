package grpc

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type fakeAuth struct {
	claims  *auth.AccessClaims
	authErr error

	user    *models.User
	userErr error

	pair    *services.TokenPair
	pairErr error

	logoutErr error
	gotLogout [2]string

	kid    string
	kidErr error
}

func (f *fakeAuth) Authenticate(context.Context, string) (*auth.AccessClaims, error) {
	return f.claims, f.authErr
}

func (f *fakeAuth) Register(context.Context, string, string, string) (*models.User, error) {
	return f.user, f.userErr
}

func (f *fakeAuth) Login(context.Context, string, string) (*services.TokenPair, error) {
	return f.pair, f.pairErr
}

func (f *fakeAuth) Refresh(context.Context, string) (*services.TokenPair, error) {
	return f.pair, f.pairErr
}

func (f *fakeAuth) Logout(_ context.Context, refresh, access string) error {
	f.gotLogout = [2]string{refresh, access}
	return f.logoutErr
}

func (f *fakeAuth) CurrentUser(context.Context, *auth.AccessClaims) (*models.User, error) {
	return f.user, f.userErr
}

func (f *fakeAuth) RotateSigningKey(context.Context) (string, error) {
	return f.kid, f.kidErr
}
