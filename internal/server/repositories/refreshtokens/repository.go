// Package refreshtokens declares the server-side repository contract for
// refresh token records and their rotation chains.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository persists refresh token records. Only the revoked and
// replaced_by columns are ever updated in place, and only through the
// conditional updates below.
type Repository interface {
	// Create stores a new record.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find looks up a record by token id. Implementations return
	// common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, tokenID string) (*models.RefreshToken, error)

	// MarkReplaced atomically sets revoked=true and replaced_by=replacedBy on
	// a record that is neither revoked nor replaced. It reports whether this
	// call performed the transition; false means another writer got there
	// first (or the record does not exist).
	MarkReplaced(ctx context.Context, tokenID, replacedBy string) (bool, error)

	// Revoke atomically sets revoked=true on a live record without linking a
	// successor. It reports whether this call performed the transition.
	Revoke(ctx context.Context, tokenID string) (bool, error)

	// RevokeFamily revokes every not yet revoked record of a rotation chain
	// and returns how many were changed.
	RevokeFamily(ctx context.Context, familyID string) (int64, error)

	// ListFamily returns the records of a chain ordered by issue time.
	ListFamily(ctx context.Context, familyID string) ([]models.RefreshToken, error)

	// DeleteExpired removes revoked records that expired before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
