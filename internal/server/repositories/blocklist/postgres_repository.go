package blocklist

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, tokenID string, expiresAt time.Time) error {
	query := `
		INSERT INTO token_blocklist (token_id, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (token_id) DO UPDATE
		SET expires_at = GREATEST(token_blocklist.expires_at, EXCLUDED.expires_at)
	`
	if _, err := r.db.ExecContext(ctx, query, tokenID, expiresAt); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Contains(ctx context.Context, tokenID string, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM token_blocklist WHERE token_id = $1 AND expires_at > $2
		)
	`
	var found bool
	if err := r.db.QueryRowContext(ctx, query, tokenID, now).Scan(&found); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return found, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM token_blocklist
		WHERE expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
