package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// Blocklist tracks access tokens revoked before their expiry. Unknown ids are
// never blocked; an entry only matters until the token would expire anyway.
type Blocklist struct {
	repos  repomanager.RepositoryManager
	now    func() time.Time
	logger logging.Logger
}

func NewBlocklist(m repomanager.RepositoryManager, opts ...Option) *Blocklist {
	o := buildOptions(opts)
	return &Blocklist{repos: m, now: o.now, logger: o.logger.With("module", "blocklist")}
}

// Revoke blocks tokenID until expiresAt. Revoking twice is harmless.
func (b *Blocklist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" || !expiresAt.After(b.now()) {
		return nil
	}
	if err := b.repos.Blocklist(b.repos.DB()).Add(ctx, tokenID, expiresAt); err != nil {
		return fmt.Errorf("blocklist add: %w", err)
	}
	return nil
}

func (b *Blocklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	found, err := b.repos.Blocklist(b.repos.DB()).Contains(ctx, tokenID, b.now())
	if err != nil {
		return false, fmt.Errorf("blocklist lookup: %w", err)
	}
	return found, nil
}

// Sweep removes entries whose tokens have expired.
func (b *Blocklist) Sweep(ctx context.Context) (int64, error) {
	return b.repos.Blocklist(b.repos.DB()).DeleteExpired(ctx, b.now())
}
