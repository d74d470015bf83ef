// Package cache provides the process-wide, explicitly invalidated caches used
// by the decision core. Entries never expire; every mutation of the underlying
// data must call Invalidate or InvalidatePrefix.
package cache

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
)

// Observer receives hit and miss notifications.
type Observer interface {
	CacheHit(name string)
	CacheMiss(name string)
}

type noopObserver struct{}

func (noopObserver) CacheHit(string)  {}
func (noopObserver) CacheMiss(string) {}

// Loader produces the value for a missing key.
type Loader[V any] func(ctx context.Context) (V, error)

// Cache is a concurrent map with load collapsing. Reads are lock-free and
// writes are serialized per key.
type Cache[V any] struct {
	name       string
	entries    *xsync.MapOf[string, V]
	group      singleflight.Group
	generation atomic.Uint64
	observer   Observer
}

// New creates an empty cache. The name labels metrics.
func New[V any](name string, observer Observer) *Cache[V] {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Cache[V]{
		name:     name,
		entries:  xsync.NewMapOf[string, V](),
		observer: observer,
	}
}

// Get returns the cached value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.entries.Load(key)
	if ok {
		c.observer.CacheHit(c.name)
	} else {
		c.observer.CacheMiss(c.name)
	}
	return v, ok
}

// Put stores a value unconditionally.
func (c *Cache[V]) Put(key string, value V) {
	c.entries.Store(key, value)
}

// Invalidate removes a key. Loads that started before the call will not
// store their result.
func (c *Cache[V]) Invalidate(key string) {
	c.entries.Compute(key, func(old V, _ bool) (V, bool) {
		c.generation.Add(1)
		return old, true
	})
}

// InvalidatePrefix removes every key starting with prefix and returns how many were removed.
func (c *Cache[V]) InvalidatePrefix(prefix string) int {
	c.generation.Add(1)

	removed := 0
	c.entries.Range(func(key string, _ V) bool {
		if strings.HasPrefix(key, prefix) {
			c.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.generation.Add(1)
	c.entries.Clear()
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	return c.entries.Size()
}

// GetOrLoad returns the cached value or calls load once for all concurrent
// callers missing the same key. Errors are returned and never cached.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load Loader[V]) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	start := c.generation.Load()
	flight := key + "#" + strconv.FormatUint(start, 10)

	res, err, _ := c.group.Do(flight, func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return v, err
		}

		c.entries.Compute(key, func(old V, loaded bool) (V, bool) {
			if c.generation.Load() != start {
				return old, !loaded
			}
			return v, false
		})
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	v, _ := res.(V)
	return v, nil
}
