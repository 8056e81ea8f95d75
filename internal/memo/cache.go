package memo

import "sync"

// Cache memoizes a synchronous function. Concurrent misses for the same key
// may each compute; use AsyncCache when duplicate work must be collapsed.
type Cache[A, V any] struct {
	fn  func(A) (V, error)
	key KeyFunc[A]

	mu     sync.Mutex
	store  *store[V]
	hits   uint64
	misses uint64
}

// Memoize wraps fn with a bounded, optionally expiring cache.
func Memoize[A, V any](fn func(A) (V, error), opts Options[A]) *Cache[A, V] {
	opts = opts.withDefaults()
	return &Cache[A, V]{
		fn:    fn,
		key:   opts.KeyFunc,
		store: newStore[V](opts.MaxSize, opts.TTL, opts.Now),
	}
}

// Call returns the cached result for arg, computing and storing it on a miss.
// Errors from fn are returned as is and are not cached.
func (c *Cache[A, V]) Call(arg A) (V, error) {
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
	c.misses++
	c.mu.Unlock()

	v, err := c.fn(arg)
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	c.store.set(key, v)
	c.mu.Unlock()
	return v, nil
}

// Func returns Call as a plain function value.
func (c *Cache[A, V]) Func() func(A) (V, error) {
	return c.Call
}

// Has reports whether a live entry exists for arg.
func (c *Cache[A, V]) Has(arg A) bool {
	key, err := c.key(arg)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.has(key)
}

// Delete drops the entry for arg and reports whether a live one existed.
func (c *Cache[A, V]) Delete(arg A) bool {
	key, err := c.key(arg)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.delete(key)
}

// Clear drops every entry and resets the hit/miss counters.
func (c *Cache[A, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.clear()
	c.hits, c.misses = 0, 0
}

func (c *Cache[A, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:    c.store.len(),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate(c.hits, c.misses),
	}
}
