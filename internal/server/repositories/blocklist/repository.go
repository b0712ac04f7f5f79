// Package blocklist stores the ids of revoked access tokens until the tokens
// would have expired on their own.
package blocklist

import (
	"context"
	"time"
)

// Repository is implemented by the PostgreSQL, Redis and in-memory stores.
type Repository interface {
	// Add blocks tokenID until expiresAt. Adding an id twice keeps the later
	// expiry.
	Add(ctx context.Context, tokenID string, expiresAt time.Time) error

	// Contains reports whether tokenID is blocked at now.
	Contains(ctx context.Context, tokenID string, now time.Time) (bool, error)

	// DeleteExpired drops entries whose expiry is not after the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
