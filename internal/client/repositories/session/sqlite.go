package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, s *models.Session) error {
	query := `INSERT INTO session (id, login, access_token, refresh_token, access_expires_at, refresh_expires_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			login = excluded.login,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			access_expires_at = excluded.access_expires_at,
			refresh_expires_at = excluded.refresh_expires_at`

	_, err := r.db.ExecContext(ctx, query, s.Login, s.AccessToken, s.RefreshToken,
		s.AccessExpiresAt.Unix(), s.RefreshExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Load(ctx context.Context) (*models.Session, error) {
	query := `SELECT login, access_token, refresh_token, access_expires_at, refresh_expires_at FROM session WHERE id = 1`

	var (
		s               models.Session
		access, refresh int64
	)
	err := r.db.QueryRowContext(ctx, query).Scan(&s.Login, &s.AccessToken, &s.RefreshToken, &access, &refresh)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	s.AccessExpiresAt = time.Unix(access, 0)
	s.RefreshExpiresAt = time.Unix(refresh, 0)
	return &s, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
