// Package xcache provides a small generic in-memory cache used to avoid
// re-stat-ing blobs on every registry request.
package xcache

import "context"

// Cache is a key/value cache keyed by string, with an optional loader for
// misses.
type Cache[T any] interface {
	// Get returns the value of key, loading it via options' Loader on a miss.
	Get(ctx context.Context, key string, options ...Option[T]) (T, bool)
	// Set saves the value of key.
	Set(ctx context.Context, key string, value T)
	// Delete removes the value of key.
	Delete(ctx context.Context, key string)
}

// ValueLoader loads the value for key on a cache miss.
type ValueLoader[T any] func(ctx context.Context, key string) (T, bool)

// Option configures a Get call.
type Option[T any] func(*Options[T])

// Options holds the options a Get call was given.
type Options[T any] struct {
	Loader ValueLoader[T]
}

// WithLoader sets the value loader to run on a miss.
func WithLoader[T any](loader ValueLoader[T]) Option[T] {
	return func(o *Options[T]) {
		o.Loader = loader
	}
}

func makeOptions[T any](options ...Option[T]) *Options[T] {
	o := &Options[T]{}
	for _, apply := range options {
		apply(o)
	}
	if o.Loader == nil {
		o.Loader = func(_ context.Context, _ string) (T, bool) {
			var zero T
			return zero, false
		}
	}
	return o
}
