package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces the value for a missing key. It must honour ctx.
type ComputeFunc func(ctx context.Context) (*entity.CorrelationResult, error)

// flight is one shared in-progress computation and the callers waiting on it. Each flight owns a
// distinct singleflight key so a caller can never attach to a call that belongs to another flight.
type flight struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// ResultCache memoizes correlation results by CacheKey and coalesces concurrent misses so at most
// one computation per key is in flight.
type ResultCache struct {
	store Store
	ttl   time.Duration
	log   *logger.Logger
	now   func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	seq     uint64
	flights map[string]*flight

	// joined runs after a caller has joined a flight and before it waits on the result.
	joined func(k string)
}

func NewResultCache(store Store, ttl time.Duration, log *logger.Logger) *ResultCache {
	return &ResultCache{
		store:   store,
		ttl:     ttl,
		log:     log,
		now:     time.Now,
		flights: make(map[string]*flight),
	}
}

// TTL is the default lifetime applied by GetOrCompute.
func (c *ResultCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the live entry for key. An expired entry is deleted and reported as a miss.
// Store errors are logged and treated as a miss.
func (c *ResultCache) Get(ctx context.Context, key entity.CacheKey) (*entity.CorrelationResult, bool) {
	k := key.String()
	entry, found, err := c.store.Get(ctx, k)
	if err != nil {
		c.log.WarnContext(ctx, "Failed to read result cache", logger.StringField("key", k), logger.ErrorField(err))
		return nil, false
	}
	if !found || entry.Value == nil {
		return nil, false
	}
	if entry.Expired(c.now()) {
		if err := c.store.Delete(ctx, k); err != nil {
			c.log.WarnContext(ctx, "Failed to evict expired cache entry", logger.StringField("key", k), logger.ErrorField(err))
		}
		return nil, false
	}
	return entry.Value, true
}

// Put stores value under key for ttl. A zero ttl never expires.
func (c *ResultCache) Put(ctx context.Context, key entity.CacheKey, value *entity.CorrelationResult, ttl time.Duration) error {
	return c.store.Set(ctx, key.String(), &entity.CacheEntry{
		Key:       key,
		Value:     value,
		CreatedAt: c.now(),
		TTL:       ttl,
	})
}

// Invalidate removes key. A computation already in flight for key is not affected.
func (c *ResultCache) Invalidate(ctx context.Context, key entity.CacheKey) error {
	return c.store.Delete(ctx, key.String())
}

// GetOrCompute returns the cached value for key or runs fn once for all concurrent callers.
// fn runs on a context detached from any single caller; it is cancelled only when every waiter
// has gone. A failed or cancelled computation is not cached. cached reports a cache hit.
func (c *ResultCache) GetOrCompute(ctx context.Context, key entity.CacheKey, fn ComputeFunc) (result *entity.CorrelationResult, cached bool, err error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}

	k := key.String()
	f, ch := c.join(ctx, k, func(f *flight) func() (interface{}, error) {
		return func() (interface{}, error) {
			defer c.finish(k, f)

			v, err := fn(f.ctx)
			if err != nil {
				return nil, err
			}
			if err := f.ctx.Err(); err != nil {
				return nil, err
			}
			if err := c.Put(f.ctx, key, v, c.ttl); err != nil {
				c.log.WarnContext(ctx, "Failed to write result cache", logger.StringField("key", k), logger.ErrorField(err))
			}
			return v, nil
		}
	})
	if c.joined != nil {
		c.joined(k)
	}

	select {
	case res := <-ch:
		c.leave(k, f, false)
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*entity.CorrelationResult), false, nil
	case <-ctx.Done():
		c.leave(k, f, true)
		return nil, false, ctx.Err()
	}
}

// join registers the caller as a waiter on the flight for k, creating it when none is running, and
// attaches to the flight's call. Both happen under mu, and finish removes the flight under mu before
// its call returns, so a flight found in the map always has a live call to attach to.
func (c *ResultCache) join(ctx context.Context, k string, call func(*flight) func() (interface{}, error)) (*flight, <-chan singleflight.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flights[k]
	if !ok {
		c.seq++
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{key: fmt.Sprintf("%s#%d", k, c.seq), ctx: fctx, cancel: cancel}
		c.flights[k] = f
	}
	f.waiters++
	return f, c.group.DoChan(f.key, call(f))
}

// leave drops a waiter. When the last waiter abandons a running flight it is cancelled and
// forgotten so the next caller starts afresh.
func (c *ResultCache) leave(k string, f *flight, abandoned bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if !abandoned || f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[k] == f {
		delete(c.flights, k)
	}
	c.group.Forget(f.key)
}

func (c *ResultCache) finish(k string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flights[k] == f {
		delete(c.flights, k)
	}
	f.cancel()
}
