package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
	"github.com/FeruzLatifov/univer-back-sub003/internal/repository"
)

// RedisMenuStore implements MenuCacheStore backed by Redis.
type RedisMenuStore struct {
	client redis.UniversalClient
}

var _ repository.MenuCacheStore = (*RedisMenuStore)(nil)

// NewRedisMenuStore constructs a Redis-backed menu cache.
func NewRedisMenuStore(client redis.UniversalClient) *RedisMenuStore {
	return &RedisMenuStore{client: client}
}

// Get loads and decodes the cached menu; a miss returns (nil, nil).
func (s *RedisMenuStore) Get(ctx context.Context, key string) (*domain.CachedMenu, error) {
	bytes, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load menu: %w", err)
	}
	var cached domain.CachedMenu
	if err := json.Unmarshal(bytes, &cached); err != nil {
		return nil, fmt.Errorf("decode menu: %w", err)
	}
	return &cached, nil
}

// Put stores the encoded menu payload with TTL.
func (s *RedisMenuStore) Put(ctx context.Context, key string, menu domain.CachedMenu, ttl time.Duration) error {
	payload, err := json.Marshal(menu)
	if err != nil {
		return fmt.Errorf("marshal menu: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist menu: %w", err)
	}
	return nil
}

// Forget removes the given keys.
func (s *RedisMenuStore) Forget(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete menu keys: %w", err)
	}
	return nil
}
