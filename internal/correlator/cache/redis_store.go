package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang-stock-sentiment/internal/entity"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a Store shared between service instances. Entries are JSON encoded and
// expire natively through SET EX.
func NewRedisStore(client redis.Cmdable, prefix string) Store {
	return &redisStore{client: client, prefix: prefix}
}

func (s *redisStore) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *redisStore) Get(ctx context.Context, key string) (*entity.CacheEntry, bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry %s: %w", key, err)
	}

	var entry entity.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// A corrupt entry is treated as a miss and removed.
		_ = s.client.Del(ctx, s.key(key)).Err()
		return nil, false, nil
	}
	return &entry, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, entry *entity.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry %s: %w", key, err)
	}
	ttl := entry.TTL
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}
