package memo

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// AsyncCache memoizes a context-aware function and guarantees at most one
// in-flight execution per key. Callers arriving while a key is in flight
// attach to that execution and observe its outcome.
type AsyncCache[A, V any] struct {
	fn  func(context.Context, A) (V, error)
	key KeyFunc[A]

	group singleflight.Group

	mu      sync.Mutex
	store   *store[V]
	pending map[string]struct{}
	hits    uint64
	misses  uint64
}

// MemoizeAsync wraps fn with a bounded, optionally expiring, coalescing cache.
func MemoizeAsync[A, V any](fn func(context.Context, A) (V, error), opts Options[A]) *AsyncCache[A, V] {
	opts = opts.withDefaults()
	return &AsyncCache[A, V]{
		fn:      fn,
		key:     opts.KeyFunc,
		store:   newStore[V](opts.MaxSize, opts.TTL, opts.Now),
		pending: make(map[string]struct{}),
	}
}

// Call returns the cached result for arg, joining an in-flight execution for
// the same key when there is one.
//
// The shared execution runs detached from ctx cancellation: if ctx ends first,
// Call returns ctx.Err() while the execution keeps running and settles the
// cache for later callers.
func (c *AsyncCache[A, V]) Call(ctx context.Context, arg A) (V, error) {
	var zero V
	key, err := c.key(arg)
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	if v, ok := c.store.get(key); ok {
		c.hits++
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	executed := false
	ch := c.group.DoChan(key, func() (any, error) {
		c.mu.Lock()
		// A call that settled between our lookup and DoChan already stored it.
		if v, ok := c.store.get(key); ok {
			c.mu.Unlock()
			return v, nil
		}
		c.pending[key] = struct{}{}
		c.misses++
		c.mu.Unlock()

		executed = true
		v, err := c.fn(detached, arg)

		c.mu.Lock()
		delete(c.pending, key)
		if err == nil {
			c.store.set(key, v)
		}
		c.mu.Unlock()
		return v, err
	})

	select {
	case res := <-ch:
		if !executed {
			c.mu.Lock()
			c.hits++
			c.mu.Unlock()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Has reports whether a settled, live entry exists for arg. In-flight keys
// are not reported.
func (c *AsyncCache[A, V]) Has(arg A) bool {
	key, err := c.key(arg)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.has(key)
}

// Delete drops the settled entry for arg and reports whether a live one
// existed. In-flight executions are not affected.
func (c *AsyncCache[A, V]) Delete(arg A) bool {
	key, err := c.key(arg)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.delete(key)
}

// Clear drops every settled entry and resets the counters. Executions still
// in flight keep running and store their result when they succeed.
func (c *AsyncCache[A, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.clear()
	c.hits, c.misses = 0, 0
}

func (c *AsyncCache[A, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:    c.store.len(),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate(c.hits, c.misses),
		Pending: len(c.pending),
	}
}
