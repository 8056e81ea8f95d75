package memo

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultMaxSize is the capacity used when Options.MaxSize is not positive.
const DefaultMaxSize = 100

// KeyFunc derives the cache key for an argument.
type KeyFunc[A any] func(arg A) (string, error)

// Options configures a Cache or AsyncCache.
type Options[A any] struct {
	// KeyFunc overrides key derivation. Defaults to DefaultKey.
	KeyFunc KeyFunc[A]

	// MaxSize bounds the number of resident entries.
	MaxSize int

	// TTL expires entries this long after insertion. Zero disables expiry.
	TTL time.Duration

	// Now is the clock used for TTL checks. Defaults to time.Now.
	Now func() time.Time
}

func (o Options[A]) withDefaults() Options[A] {
	if o.KeyFunc == nil {
		o.KeyFunc = DefaultKey[A]
	}
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.TTL < 0 {
		o.TTL = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// DefaultKey serializes arg to JSON. encoding/json emits struct fields in
// declaration order and map keys sorted, so equal values yield equal keys.
// Multi-argument functions should take a struct or array.
func DefaultKey[A any](arg A) (string, error) {
	b, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("memo: derive key: %w", err)
	}
	return string(b), nil
}

// Stats is a snapshot of cache accounting.
type Stats struct {
	Size    int     `json:"size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hitRate"`
	// Pending is always zero for Cache.
	Pending int `json:"pending"`
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
