package xcache

import (
	"context"
	"time"

	"github.com/maypok86/otter"
	"golang.org/x/sync/singleflight"
)

// NewMemory returns an in-memory cache bounded by capacity entries, each
// expiring ttl after it was set. Concurrent misses for the same key are
// coalesced into a single Loader call via singleflight.
func NewMemory[T any](capacity int, ttl time.Duration) Cache[T] {
	cache, err := otter.MustBuilder[string, T](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		panic(err)
	}
	return &memoryCache[T]{cache: cache}
}

type loadResult[T any] struct {
	value T
	ok    bool
}

type memoryCache[T any] struct {
	cache     otter.Cache[string, T]
	loadGroup singleflight.Group
}

func (c *memoryCache[T]) Get(ctx context.Context, key string, options ...Option[T]) (T, bool) {
	o := makeOptions(options...)
	if v, ok := c.cache.Get(key); ok {
		return v, true
	}
	loaded, _, _ := c.loadGroup.Do(key, func() (interface{}, error) {
		value, ok := o.Loader(ctx, key)
		if ok {
			c.cache.Set(key, value)
		}
		return loadResult[T]{value: value, ok: ok}, nil
	})
	result := loaded.(loadResult[T])
	return result.value, result.ok
}

func (c *memoryCache[T]) Set(_ context.Context, key string, value T) {
	c.cache.Set(key, value)
}

func (c *memoryCache[T]) Delete(_ context.Context, key string) {
	c.cache.Delete(key)
}
