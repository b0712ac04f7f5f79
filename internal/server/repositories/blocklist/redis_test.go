package blocklist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T, now time.Time) (*RedisRepository, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	t.Cleanup(func() { _ = client.Close() })
	repo := NewRedisRepository(client)
	repo.now = func() time.Time { return now }
	return repo, mock
}

func TestRedis_AddSetsTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo, mock := newRedisRepo(t, now)

	mock.ExpectPTTL("blocklist:jti-1").SetVal(-2 * time.Millisecond)
	mock.ExpectSet("blocklist:jti-1", 1, 90*time.Second).SetVal("OK")

	require.NoError(t, repo.Add(context.Background(), "jti-1", now.Add(90*time.Second)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_AddKeepsLongerTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo, mock := newRedisRepo(t, now)

	mock.ExpectPTTL("blocklist:jti-1").SetVal(5 * time.Minute)

	require.NoError(t, repo.Add(context.Background(), "jti-1", now.Add(time.Minute)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_AddAlreadyExpired(t *testing.T) {
	now := time.Now()
	repo, mock := newRedisRepo(t, now)

	require.NoError(t, repo.Add(context.Background(), "jti-1", now.Add(-time.Second)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_AddError(t *testing.T) {
	now := time.Now()
	repo, mock := newRedisRepo(t, now)
	mock.ExpectPTTL("blocklist:jti-1").SetErr(errors.New("conn refused"))

	err := repo.Add(context.Background(), "jti-1", now.Add(time.Minute))
	assert.ErrorContains(t, err, "conn refused")
}

func TestRedis_Contains(t *testing.T) {
	repo, mock := newRedisRepo(t, time.Now())
	mock.ExpectExists("blocklist:jti-1").SetVal(1)
	mock.ExpectExists("blocklist:jti-2").SetVal(0)

	hit, err := repo.Contains(context.Background(), "jti-1", time.Now())
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = repo.Contains(context.Background(), "jti-2", time.Now())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_ContainsError(t *testing.T) {
	repo, mock := newRedisRepo(t, time.Now())
	mock.ExpectExists("blocklist:jti-1").SetErr(errors.New("timeout"))

	_, err := repo.Contains(context.Background(), "jti-1", time.Now())
	assert.ErrorContains(t, err, "redis exists")
}

func TestRedis_DeleteExpiredIsNoop(t *testing.T) {
	repo, mock := newRedisRepo(t, time.Now())
	n, err := repo.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
