// Package services contains application services for the authkeeper CLI.
// AuthService drives the server calls and keeps the local session file in
// step with the tokens the client holds.
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/client/repositories/session"
)

const persistTimeout = 3 * time.Second

// AuthService defines the account operations of the CLI.
//
// Login, Refresh and Logout update the saved session; Resume picks up the
// session saved by an earlier run.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, login, password string) (*models.Session, error)
	Refresh(ctx context.Context) (*models.Session, error)
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) (*models.User, error)
	RotateSigningKey(ctx context.Context) (string, error)
	Resume(ctx context.Context) (*models.Session, error)
	Current() models.Session
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client   client.Client
	sessions session.Repository
	now      func() time.Time
}

// NewAuthService binds the API client to the session repository. Every token
// pair the client obtains, including transparent refreshes, is saved.
func NewAuthService(c client.Client, sessions session.Repository) AuthService {
	a := &authService{client: c, sessions: sessions, now: time.Now}
	c.OnRotate(a.persist)
	return a
}

func (a *authService) persist(s models.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	if s.Empty() {
		err = a.sessions.Clear(ctx)
	} else {
		err = a.sessions.Save(ctx, &s)
	}
	if err != nil {
		log.Printf("session not saved: %s", err.Error())
	}
}

func (a *authService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	return a.client.Register(ctx, username, email, password)
}

func (a *authService) Login(ctx context.Context, login, password string) (*models.Session, error) {
	return a.client.Login(ctx, login, password)
}

func (a *authService) Refresh(ctx context.Context) (*models.Session, error) {
	return a.client.Refresh(ctx)
}

// Logout ends the session; the local copy is dropped even when the server
// rejects the call.
func (a *authService) Logout(ctx context.Context) error {
	err := a.client.Logout(ctx)
	if errors.Is(err, client.ErrNotLoggedIn) {
		return a.sessions.Clear(ctx)
	}
	return err
}

func (a *authService) WhoAmI(ctx context.Context) (*models.User, error) {
	return a.client.WhoAmI(ctx)
}

func (a *authService) RotateSigningKey(ctx context.Context) (string, error) {
	return a.client.RotateSigningKey(ctx)
}

// Resume installs the saved session. A session whose refresh token has
// already expired is discarded and reported as client.ErrNotLoggedIn.
func (a *authService) Resume(ctx context.Context) (*models.Session, error) {
	s, err := a.sessions.Load(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return nil, client.ErrNotLoggedIn
		}
		return nil, err
	}
	if !a.now().Before(s.RefreshExpiresAt) {
		if err := a.sessions.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, client.ErrNotLoggedIn
	}
	a.client.Resume(*s)
	return s, nil
}

func (a *authService) Current() models.Session {
	return a.client.Session()
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
