// Package cache implements CachedView, the TTL-cached deserializer that
// every configuration schema (host config, restrictions, payment methods,
// bots, facilitator) is built from. It is value-parametric: callers supply
// a deserializer function rather than subclassing, per spec.md §9
// ("Prefer composition ... over subclassing").
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/foldset/gateway-core/kvstore"
)

// DefaultTTL is the cache lifetime for every CachedView (spec.md §4.1).
const DefaultTTL = 30 * time.Second

// Deserialize turns the raw KV string into a T. Returning an error leaves
// the cache untouched (no poisoning) and propagates to the caller.
type Deserialize[T any] func(raw string) (T, error)

// View is a TTL-cached, single-flight-coalesced view over one KV entry.
//
// Concurrency: Get may be called from many goroutines at once. A miss
// triggers at most one in-flight fetch per key (singleflight.Group) even
// though spec.md only requires this as an optimization — duplicate fetches
// would otherwise be tolerated since deserialization is pure and values are
// immutable snapshots (spec.md §5 "Cache races").
type View[T any] struct {
	store       kvstore.Store
	key         string
	fallback    T
	deserialize Deserialize[T]
	ttl         time.Duration

	mu        sync.Mutex
	value     T
	timestamp time.Time // zero value means "never successfully loaded"

	group singleflight.Group
}

// New constructs a View with the default 30s TTL.
func New[T any](store kvstore.Store, key string, fallback T, deserialize Deserialize[T]) *View[T] {
	return &View[T]{
		store:       store,
		key:         key,
		fallback:    fallback,
		deserialize: deserialize,
		ttl:         DefaultTTL,
		value:       fallback,
	}
}

// WithTTL overrides the default TTL. Returns the receiver for chaining.
func (v *View[T]) WithTTL(ttl time.Duration) *View[T] {
	v.ttl = ttl
	return v
}

// Get returns the cached value, refreshing from the store on miss.
//
// On a store error the previous cached value is retained and the timestamp
// is left unchanged (no negative caching of errors, spec.md §4.1). On a
// deserialization error the cache is likewise left untouched.
func (v *View[T]) Get(ctx context.Context) (T, error) {
	v.mu.Lock()
	if v.isValidLocked() {
		cached := v.value
		v.mu.Unlock()
		return cached, nil
	}
	v.mu.Unlock()

	result, err, _ := v.group.Do(v.key, func() (any, error) {
		raw, ok, err := v.store.Get(ctx, v.key)
		if err != nil {
			return nil, err
		}

		var fresh T
		if !ok {
			fresh = v.fallback
		} else {
			fresh, err = v.deserialize(raw)
			if err != nil {
				return nil, err
			}
		}

		v.mu.Lock()
		v.value = fresh
		v.timestamp = time.Now()
		v.mu.Unlock()

		return fresh, nil
	})
	if err != nil {
		// The previous cached value (if any) and its timestamp are left
		// untouched above — only the error is surfaced to this caller.
		var zero T
		return zero, err
	}
	return result.(T), nil
}

func (v *View[T]) isValidLocked() bool {
	return !v.timestamp.IsZero() && time.Since(v.timestamp) < v.ttl
}
