package cache

import (
	"context"

	"golang-stock-sentiment/internal/entity"

	gocache "github.com/patrickmn/go-cache"
)

type memoryStore struct {
	items *gocache.Cache
}

// NewMemoryStore creates a process-local Store. It runs no janitor goroutine; expired
// entries are dropped when they are next read.
func NewMemoryStore() Store {
	return &memoryStore{items: gocache.New(gocache.NoExpiration, 0)}
}

func (s *memoryStore) Get(_ context.Context, key string) (*entity.CacheEntry, bool, error) {
	v, found := s.items.Get(key)
	if !found {
		// go-cache hides expired items from Get but keeps them until deleted.
		s.items.Delete(key)
		return nil, false, nil
	}
	entry, ok := v.(*entity.CacheEntry)
	if !ok {
		s.items.Delete(key)
		return nil, false, nil
	}
	return entry, true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, entry *entity.CacheEntry) error {
	ttl := entry.TTL
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.items.Set(key, entry, ttl)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

// Len counts stored items, expired ones included until they are read.
func (s *memoryStore) Len() int {
	return s.items.ItemCount()
}
