// Package refreshtokens provides PostgreSQL-backed and in-memory repositories
// for refresh token records.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token_id, user_id, family_id, issued_at, expires_at, revoked, replaced_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.ExecContext(ctx, query,
		t.TokenID, t.UserID, t.FamilyID, t.IssuedAt, t.ExpiresAt, t.Revoked, t.ReplacedBy); err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return fmt.Errorf("user %s: %w", t.UserID, common.ErrorNotFound)
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, tokenID string) (*models.RefreshToken, error) {
	query := `
		SELECT token_id, user_id, family_id, issued_at, expires_at, revoked, replaced_by
		FROM refresh_tokens
		WHERE token_id = $1
	`
	t := &models.RefreshToken{}
	var replacedBy sql.NullString
	err := r.db.QueryRowContext(ctx, query, tokenID).
		Scan(&t.TokenID, &t.UserID, &t.FamilyID, &t.IssuedAt, &t.ExpiresAt, &t.Revoked, &replacedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if replacedBy.Valid {
		t.ReplacedBy = &replacedBy.String
	}
	return t, nil
}

// MarkReplaced relies on the row lock taken by UPDATE: a concurrent writer
// blocks until the first commits, then re-evaluates the WHERE clause against
// the committed row and matches nothing.
func (r *PostgresRepository) MarkReplaced(ctx context.Context, tokenID, replacedBy string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, replaced_by = $2
		WHERE token_id = $1 AND revoked = FALSE AND replaced_by IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, tokenID, replacedBy)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res) == 1, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, tokenID string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE token_id = $1 AND revoked = FALSE AND replaced_by IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, tokenID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res) == 1, nil
}

func (r *PostgresRepository) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE family_id = $1 AND revoked = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, familyID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}

func (r *PostgresRepository) ListFamily(ctx context.Context, familyID string) ([]models.RefreshToken, error) {
	query := `
		SELECT token_id, user_id, family_id, issued_at, expires_at, revoked, replaced_by
		FROM refresh_tokens
		WHERE family_id = $1
		ORDER BY issued_at, token_id
	`
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var chain []models.RefreshToken
	for rows.Next() {
		var t models.RefreshToken
		var replacedBy sql.NullString
		if err := rows.Scan(&t.TokenID, &t.UserID, &t.FamilyID, &t.IssuedAt, &t.ExpiresAt, &t.Revoked, &replacedBy); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if replacedBy.Valid {
			t.ReplacedBy = &replacedBy.String
		}
		chain = append(chain, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return chain, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE revoked = TRUE AND expires_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
