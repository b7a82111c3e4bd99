package fetchcache

import (
	"context"

	"go.uber.org/zap"
)

// Revalidate returns the cached value for key right away and refreshes it in
// a background goroutine. onUpdate, if set, receives the fresh value or the
// fetch error once the refresh completes.
func (c *Cache[T]) Revalidate(ctx context.Context, key string, fetch Fetcher[T], onUpdate func(T, error)) (T, bool) {
	cached, ok := c.Get(ctx, key)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		v, err := c.fetch(ctx, key, fetch)
		if err != nil {
			c.log.Warn("revalidate failed", zap.String("key", key), zap.Error(err))
		}
		if onUpdate != nil {
			onUpdate(v, err)
		}
	}()

	return cached, ok
}

// Wait blocks until all background refreshes started by Revalidate return.
func (c *Cache[T]) Wait() {
	c.wg.Wait()
}
