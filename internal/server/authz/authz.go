// Package authz composes access token authentication with per-operation role
// predicates. It depends on the token engine only through Authenticator.
package authz

import (
	"context"
	"slices"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Authenticator turns an access token into verified, non-revoked claims.
// services.AuthService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.AccessClaims, error)
}

// Predicate decides whether the holder of claims may run an operation.
type Predicate func(claims *auth.AccessClaims) bool

// Authenticated admits any valid token.
func Authenticated() Predicate {
	return func(*auth.AccessClaims) bool { return true }
}

// RequireRoles admits the listed roles. Admins are always admitted.
func RequireRoles(roles ...string) Predicate {
	return func(c *auth.AccessClaims) bool {
		return c.Role == models.RoleAdmin || slices.Contains(roles, c.Role)
	}
}

// Authorize authenticates accessToken and applies allow. Authentication
// failures pass through unchanged; a rejected predicate is
// common.ErrForbidden.
func Authorize(ctx context.Context, a Authenticator, accessToken string, allow Predicate) (*auth.AccessClaims, error) {
	if accessToken == "" {
		return nil, common.ErrTokenInvalid
	}
	claims, err := a.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if allow != nil && !allow(claims) {
		return nil, common.ErrForbidden
	}
	return claims, nil
}
