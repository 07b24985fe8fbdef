package cache

import (
	"context"

	"golang-stock-sentiment/internal/entity"
)

// Store persists cache entries. Expiry is checked by ResultCache, stores may also expire natively.
type Store interface {
	Get(ctx context.Context, key string) (*entity.CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry *entity.CacheEntry) error
	Delete(ctx context.Context, key string) error
}
