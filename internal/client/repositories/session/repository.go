// Package session persists the CLI's token pair in the local SQLite file.
package session

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
)

// ErrNoSession is returned by Load when nothing was saved.
var ErrNoSession = errors.New("no saved session")

// Repository keeps at most one session.
type Repository interface {
	// Save replaces the stored session.
	Save(ctx context.Context, s *models.Session) error
	// Load returns the stored session or ErrNoSession.
	Load(ctx context.Context) (*models.Session, error)
	// Clear removes the stored session; clearing nothing is not an error.
	Clear(ctx context.Context) error
}
