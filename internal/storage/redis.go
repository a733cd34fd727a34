package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 7 * 24 * time.Hour

// RedisStorage keeps one session's cart under cart:session:<id>. Every save
// refreshes the TTL, with jitter so sessions started together do not expire
// together.
type RedisStorage struct {
	client  *redis.Client
	key     string
	baseTTL time.Duration
}

func NewRedisStorage(client *redis.Client, sessionID string, ttl time.Duration) *RedisStorage {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStorage{
		client:  client,
		key:     cacheKey(sessionID),
		baseTTL: ttl,
	}
}

func (r *RedisStorage) Load(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisStorage) Save(ctx context.Context, data []byte) error {
	jitter := time.Duration(rand.Int63n(int64(r.baseTTL/10) + 1))
	if err := r.client.Set(ctx, r.key, data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func cacheKey(sessionID string) string {
	return fmt.Sprintf("cart:session:%s", sessionID)
}
