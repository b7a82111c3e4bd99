// Package fetchcache keeps the last successful result of a remote call in a
// kv.Store and serves it while, or instead of, fetching a fresh one.
package fetchcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/acksell/stash/kv"
)

// Fetcher produces a fresh value.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Options configures a Cache.
type Options struct {
	// MaxAge hides entries older than this from Get. Zero keeps entries
	// forever. FetchAndCache still falls back to expired entries.
	MaxAge time.Duration
	Logger *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Cache stores values of type T as JSON, one key per value, and memoizes
// them in process.
type Cache[T any] struct {
	store  kv.Store
	maxAge time.Duration
	now    func() time.Time
	log    *zap.Logger

	mu  sync.RWMutex
	mem map[string]entry[T]

	group singleflight.Group
	wg    sync.WaitGroup
}

// entry is the stored form of a cached value.
type entry[T any] struct {
	Value     T         `json:"value"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// New returns a cache over store. Zero Options keep entries forever.
func New[T any](store kv.Store, opts Options) *Cache[T] {
	c := &Cache[T]{
		store:  store,
		maxAge: opts.MaxAge,
		now:    opts.Now,
		log:    opts.Logger,
		mem:    make(map[string]entry[T]),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Get returns the cached value for key. It never fetches and never fails:
// read and decode errors are logged and reported as a miss.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	e, ok := c.lookup(ctx, key)
	if !ok || c.expired(e) {
		var zero T
		return zero, false
	}
	return e.Value, true
}

// FetchedAt reports when the cached value for key was fetched.
func (c *Cache[T]) FetchedAt(ctx context.Context, key string) (time.Time, bool) {
	e, ok := c.lookup(ctx, key)
	if !ok {
		return time.Time{}, false
	}
	return e.FetchedAt, true
}

// FetchAndCache calls fetch and caches its result. When fetch fails and a
// previous value exists, that value is returned instead, even if expired.
func (c *Cache[T]) FetchAndCache(ctx context.Context, key string, fetch Fetcher[T]) (T, error) {
	v, err := c.fetch(ctx, key, fetch)
	if err == nil {
		return v, nil
	}
	if e, ok := c.lookup(ctx, key); ok {
		c.log.Warn("fetch failed, serving cached value",
			zap.String("key", key),
			zap.Time("fetchedAt", e.FetchedAt),
			zap.Error(err))
		return e.Value, nil
	}
	var zero T
	return zero, err
}

// Invalidate drops the cached value for key.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.mem, key)
	c.mu.Unlock()
	if err := c.store.RemoveItem(ctx, key); err != nil {
		return fmt.Errorf("remove cached %q: %w", key, err)
	}
	return nil
}

// fetch runs fetch once per key at a time; concurrent callers share the
// result of the call in flight.
func (c *Cache[T]) fetch(ctx context.Context, key string, fetch Fetcher[T]) (T, error) {
	res, err, shared := c.group.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.put(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if shared {
		c.log.Debug("shared in-flight fetch", zap.String("key", key))
	}
	// Every call sharing key went through this Cache[T], so res holds a T; the
	// comma-ok form only guards a nil interface T.
	v, _ := res.(T)
	return v, nil
}

// put records v in memory and in the store. A failed store write is logged;
// the fresh value is still served from memory.
func (c *Cache[T]) put(ctx context.Context, key string, v T) {
	e := entry[T]{Value: v, FetchedAt: c.now().UTC()}
	c.remember(key, e)

	data, err := json.Marshal(e)
	if err != nil {
		c.log.Error("encode cached value", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetItem(ctx, key, string(data)); err != nil {
		c.log.Error("write cached value", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache[T]) lookup(ctx context.Context, key string) (entry[T], bool) {
	c.mu.RLock()
	e, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		return e, true
	}

	raw, ok, err := c.store.GetItem(ctx, key)
	if err != nil {
		c.log.Warn("read cached value", zap.String("key", key), zap.Error(err))
		return entry[T]{}, false
	}
	if !ok {
		return entry[T]{}, false
	}
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		c.log.Warn("decode cached value", zap.String("key", key), zap.Error(err))
		return entry[T]{}, false
	}
	c.remember(key, e)
	return e, true
}

func (c *Cache[T]) remember(key string, e entry[T]) {
	c.mu.Lock()
	c.mem[key] = e
	c.mu.Unlock()
}

func (c *Cache[T]) expired(e entry[T]) bool {
	return c.maxAge > 0 && c.now().Sub(e.FetchedAt) > c.maxAge
}
