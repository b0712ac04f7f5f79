package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/blocklist"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/go-redis/redismock/v8"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestNewPostgresRepositoryManager_NilDB(t *testing.T) {
	_, err := NewPostgresRepositoryManager(nil)
	assert.Error(t, err)
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)

	m, err := NewPostgresRepositoryManager(db)
	require.NoError(t, err)

	assert.IsType(t, &users.PostgresRepository{}, m.Users(db))
	assert.IsType(t, &refreshtokens.PostgresRepository{}, m.RefreshTokens(db))
	assert.IsType(t, &blocklist.PostgresRepository{}, m.Blocklist(db))
	assert.Equal(t, dbx.DBTX(db), m.DB())
}

func TestBlocklist_UsesRedisWhenConfigured(t *testing.T) {
	db, _ := newDB(t)
	client, _ := redismock.NewClientMock()

	m, err := NewPostgresRepositoryManager(db, WithRedisBlocklist(client))
	require.NoError(t, err)
	assert.IsType(t, &blocklist.RedisRepository{}, m.Blocklist(db))
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	db, mock := newDB(t)
	m, _ := NewPostgresRepositoryManager(db)

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, m.WithTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error {
		return nil
	}))

	mock.ExpectBegin()
	mock.ExpectRollback()
	err := m.WithTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error {
		return errors.New("abort")
	})
	assert.EqualError(t, err, "abort")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	db, mock := newDB(t)
	client, rmock := redismock.NewClientMock()
	m, _ := NewPostgresRepositoryManager(db, WithRedisBlocklist(client))

	mock.ExpectPing()
	rmock.ExpectPing().SetVal("PONG")
	require.NoError(t, m.Ping(context.Background()))

	mock.ExpectPing()
	rmock.ExpectPing().SetErr(errors.New("down"))
	assert.ErrorContains(t, m.Ping(context.Background()), "redis")

	mock.ExpectPing().WillReturnError(errors.New("no route"))
	assert.ErrorContains(t, m.Ping(context.Background()), "postgres")
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, got *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if got != db {
			return errors.New("unexpected db")
		}
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m, _ := NewPostgresRepositoryManager(db)
	require.NoError(t, m.RunMigrations(context.Background()))
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m, _ := NewPostgresRepositoryManager(db)
	assert.EqualError(t, m.RunMigrations(context.Background()), "boom")
}
