package blocklist

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "blocklist:"

// RedisRepository keeps one key per blocked token with a TTL matching the
// token's remaining lifetime, so Redis expires entries by itself.
type RedisRepository struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisRepository(client redis.Cmdable) *RedisRepository {
	return &RedisRepository{client: client, now: time.Now}
}

func redisKey(tokenID string) string {
	return redisKeyPrefix + tokenID
}

func (r *RedisRepository) Add(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now()).Truncate(time.Millisecond)
	if ttl <= 0 {
		// already expired, nothing left to block
		return nil
	}

	key := redisKey(tokenID)
	current, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis pttl: %w", err)
	}
	if current >= ttl {
		return nil
	}
	if err := r.client.Set(ctx, key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Contains ignores now: an expired key is gone already.
func (r *RedisRepository) Contains(ctx context.Context, tokenID string, _ time.Time) (bool, error) {
	n, err := r.client.Exists(ctx, redisKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
