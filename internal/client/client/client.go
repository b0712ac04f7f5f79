package client

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
)

// Client is the CLI's view of the authkeeper server.
type Client interface {
	Close() error
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, login, password string) (*models.Session, error)
	Refresh(ctx context.Context) (*models.Session, error)
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) (*models.User, error)
	RotateSigningKey(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
	// Session returns the tokens currently in use.
	Session() models.Session
	// Resume installs a previously saved session.
	Resume(s models.Session)
	// OnRotate registers a callback for every new session.
	OnRotate(fn func(models.Session))
}
