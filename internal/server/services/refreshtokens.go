package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// DefaultRefreshTTL is the lifetime of a refresh token.
const DefaultRefreshTTL = 30 * 24 * time.Hour

// refreshTokenBytes is the entropy of a refresh token; the string handed to
// clients is its hex form.
const refreshTokenBytes = 32

var errLostRotation = errors.New("refresh token rotated concurrently")

// RefreshTokenStore issues, rotates and revokes server-side refresh tokens.
//
// A token may be exchanged exactly once. Presenting a token that was already
// rotated or revoked is treated as theft and revokes its whole rotation
// chain (family); other sessions of the same user are not touched.
type RefreshTokenStore struct {
	repos     repomanager.RepositoryManager
	ttl       time.Duration
	retention time.Duration
	now       func() time.Time
	logger    logging.Logger
	newID     func() (string, error)
}

// NewRefreshTokenStore builds a store. retention is how long revoked records
// are kept after they expire before Sweep deletes them.
func NewRefreshTokenStore(m repomanager.RepositoryManager, ttl, retention time.Duration, opts ...Option) *RefreshTokenStore {
	o := buildOptions(opts)
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}
	return &RefreshTokenStore{
		repos:     m,
		ttl:       ttl,
		retention: retention,
		now:       o.now,
		logger:    o.logger.With("module", "refreshtokens"),
		newID:     func() (string, error) { return common.MakeRandHexString(refreshTokenBytes) },
	}
}

// TTL is the lifetime of issued tokens.
func (s *RefreshTokenStore) TTL() time.Duration {
	return s.ttl
}

// Issue starts a new rotation chain for the user.
func (s *RefreshTokenStore) Issue(ctx context.Context, userID string) (*models.RefreshToken, error) {
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	now := s.now()
	rec := &models.RefreshToken{
		TokenID:   id,
		UserID:    userID,
		FamilyID:  uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repos.RefreshTokens(s.repos.DB()).Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return rec, nil
}

// Rotate exchanges a live token for its successor in the same chain.
//
// The old record is marked with a conditional update that only matches while
// it is neither revoked nor replaced, so of two concurrent calls with the
// same token exactly one wins; the other gets ErrReuseDetected.
func (s *RefreshTokenStore) Rotate(ctx context.Context, tokenID string) (*models.RefreshToken, error) {
	cur, err := s.repos.RefreshTokens(s.repos.DB()).Find(ctx, tokenID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	if cur.Revoked || cur.Rotated() {
		return nil, s.reuseDetected(ctx, cur)
	}

	now := s.now()
	if !now.Before(cur.ExpiresAt) {
		return nil, common.ErrTokenExpired
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	next := &models.RefreshToken{
		TokenID:   id,
		UserID:    cur.UserID,
		FamilyID:  cur.FamilyID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	err = s.repos.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.RefreshTokens(tx)
		won, err := repo.MarkReplaced(ctx, cur.TokenID, next.TokenID)
		if err != nil {
			return err
		}
		if !won {
			return errLostRotation
		}
		return repo.Create(ctx, next)
	})
	if errors.Is(err, errLostRotation) {
		return nil, s.reuseDetected(ctx, cur)
	}
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.logger.Debug(ctx, "refresh token rotated", "user_id", cur.UserID, "family_id", cur.FamilyID)
	return next, nil
}

func (s *RefreshTokenStore) reuseDetected(ctx context.Context, rec *models.RefreshToken) error {
	n, err := s.repos.RefreshTokens(s.repos.DB()).RevokeFamily(ctx, rec.FamilyID)
	if err != nil {
		s.logger.Error(ctx, "revoking token family failed", "family_id", rec.FamilyID, "error", err)
		return fmt.Errorf("%w: %w", common.ErrReuseDetected, err)
	}
	s.logger.Warn(ctx, "refresh token reuse detected, chain revoked",
		"user_id", rec.UserID, "family_id", rec.FamilyID, "revoked", n)
	return common.ErrReuseDetected
}

// Revoke ends a chain at tokenID without a successor (logout). Revoking a
// token that is already revoked or rotated is a no-op.
func (s *RefreshTokenStore) Revoke(ctx context.Context, tokenID string) error {
	repo := s.repos.RefreshTokens(s.repos.DB())
	ok, err := repo.Revoke(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if ok {
		return nil
	}
	if _, err := repo.Find(ctx, tokenID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrTokenNotFound
		}
		return fmt.Errorf("find refresh token: %w", err)
	}
	return nil
}

// RevokeFamily revokes every record of a chain.
func (s *RefreshTokenStore) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	return s.repos.RefreshTokens(s.repos.DB()).RevokeFamily(ctx, familyID)
}

// Chain lists a rotation chain in issue order.
func (s *RefreshTokenStore) Chain(ctx context.Context, familyID string) ([]models.RefreshToken, error) {
	return s.repos.RefreshTokens(s.repos.DB()).ListFamily(ctx, familyID)
}

// Sweep deletes revoked records that expired more than the retention ago.
func (s *RefreshTokenStore) Sweep(ctx context.Context) (int64, error) {
	return s.repos.RefreshTokens(s.repos.DB()).DeleteExpired(ctx, s.now().Add(-s.retention))
}
