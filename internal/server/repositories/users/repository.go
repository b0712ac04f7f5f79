// Package users declares the user lookup capability consumed by the auth
// core and its PostgreSQL and in-memory implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository stores users. Lookups return common.ErrorNotFound when the user
// is absent.
type Repository interface {
	// Create inserts the user and fills in its ID. A duplicate username or
	// email yields common.ErrUsernameTaken.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByLogin finds a user by username or email.
	GetByLogin(ctx context.Context, login string) (*models.User, error)

	// GetByID finds a user by its identifier.
	GetByID(ctx context.Context, id string) (*models.User, error)
}
