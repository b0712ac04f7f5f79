// Package repomanager provides RepositoryManager implementations for
// PostgreSQL (with an optional Redis blocklist) and for process memory.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/blocklist"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	db    *sql.DB
	redis redis.Cmdable
}

// Option configures a PostgresRepositoryManager.
type Option func(*PostgresRepositoryManager)

// WithRedisBlocklist keeps the access token blocklist in Redis instead of
// the token_blocklist table.
func WithRedisBlocklist(client redis.Cmdable) Option {
	return func(m *PostgresRepositoryManager) {
		m.redis = client
	}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// RefreshTokens returns a refreshtokens.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

// Blocklist returns the Redis store when configured; db is ignored then.
func (m *PostgresRepositoryManager) Blocklist(db dbx.DBTX) blocklist.Repository {
	if m.redis != nil {
		return blocklist.NewRedisRepository(m.redis)
	}
	return blocklist.NewPostgresRepository(db)
}

// DB returns the pool handle for statements outside a transaction.
func (m *PostgresRepositoryManager) DB() dbx.DBTX {
	return m.db
}

// WithTx runs fn in a read-committed transaction.
func (m *PostgresRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, m.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
}

// Ping checks the database and, when configured, Redis.
func (m *PostgresRepositoryManager) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if m.redis != nil {
		if err := m.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the manager's database.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB, opts ...Option) (RepositoryManager, error) {
	if db == nil {
		return nil, fmt.Errorf("nil database handle")
	}
	m := &PostgresRepositoryManager{db: db}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}
