package memo

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestCache_SameArgsInvokesOnce(t *testing.T) {
	t.Parallel()
	calls := 0
	add := Memoize(func(p [2]int) (int, error) {
		calls++
		return p[0] + p[1], nil
	}, Options[[2]int]{})

	first, err := add.Call([2]int{2, 3})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	second, err := add.Call([2]int{2, 3})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	if first != 5 || second != 5 {
		t.Errorf("expected 5 and 5, got %d and %d", first, second)
	}
	if calls != 1 {
		t.Errorf("expected 1 invocation, got %d", calls)
	}
}

func TestCache_FIFOEviction(t *testing.T) {
	t.Parallel()
	id := Memoize(func(n int) (int, error) { return n, nil }, Options[int]{MaxSize: 2})

	for _, n := range []int{1, 2, 3} {
		if _, err := id.Call(n); err != nil {
			t.Fatalf("Call(%d): %v", n, err)
		}
	}

	if id.Has(1) {
		t.Error("expected 1 to be evicted")
	}
	if !id.Has(2) || !id.Has(3) {
		t.Error("expected 2 and 3 to be resident")
	}
	if s := id.Stats(); s.Size != 2 {
		t.Errorf("expected size 2, got %d", s.Size)
	}
}

func TestCache_AccessDoesNotRefreshEvictionOrder(t *testing.T) {
	t.Parallel()
	id := Memoize(func(n int) (int, error) { return n, nil }, Options[int]{MaxSize: 2})

	_, _ = id.Call(1)
	_, _ = id.Call(2)
	// Hitting 1 must not protect it: eviction is by insertion order.
	_, _ = id.Call(1)
	_, _ = id.Call(3)

	if id.Has(1) {
		t.Error("expected 1 to be evicted despite the recent hit")
	}
	if !id.Has(2) {
		t.Error("expected 2 to survive")
	}
}

func TestCache_EvictsEarliestInsertedKeys(t *testing.T) {
	t.Parallel()
	const n, m = 10, 4
	id := Memoize(func(n int) (int, error) { return n, nil }, Options[int]{MaxSize: m})

	for i := 0; i < n; i++ {
		_, _ = id.Call(i)
		if s := id.Stats(); s.Size > m {
			t.Fatalf("size %d exceeds capacity %d", s.Size, m)
		}
	}

	for i := 0; i < n; i++ {
		want := i >= n-m
		if got := id.Has(i); got != want {
			t.Errorf("Has(%d) = %v, want %v", i, got, want)
		}
	}

	want := []string{"6", "7", "8", "9"}
	if got := id.store.keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("resident keys = %v, want %v", got, want)
	}
}

func TestCache_DefaultMaxSize(t *testing.T) {
	t.Parallel()
	id := Memoize(func(n int) (int, error) { return n, nil }, Options[int]{})

	for i := 0; i < DefaultMaxSize+20; i++ {
		_, _ = id.Call(i)
	}
	if s := id.Stats(); s.Size != DefaultMaxSize {
		t.Errorf("expected size %d, got %d", DefaultMaxSize, s.Size)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	calls := 0
	sq := Memoize(func(n int) (int, error) {
		calls++
		return n * n, nil
	}, Options[int]{TTL: time.Second, Now: clock.Now})

	_, _ = sq.Call(4)
	clock.Advance(500 * time.Millisecond)
	_, _ = sq.Call(4)
	if calls != 1 {
		t.Fatalf("expected cached value within TTL, got %d calls", calls)
	}

	clock.Advance(600 * time.Millisecond)
	if sq.Has(4) {
		t.Error("expected expired entry to be absent")
	}
	v, _ := sq.Call(4)
	if v != 16 || calls != 2 {
		t.Errorf("expected recompute to 16 with 2 calls, got %d with %d calls", v, calls)
	}
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	calls := 0
	fail := true
	c := Memoize(func(n int) (int, error) {
		calls++
		if fail {
			return 0, boom
		}
		return n, nil
	}, Options[int]{})

	if _, err := c.Call(1); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if c.Has(1) {
		t.Error("failed call must not be cached")
	}

	fail = false
	v, err := c.Call(1)
	if err != nil || v != 1 {
		t.Fatalf("expected 1, got %d (%v)", v, err)
	}
	if calls != 2 {
		t.Errorf("expected fn to be re-invoked, got %d calls", calls)
	}
}

func TestCache_Stats(t *testing.T) {
	t.Parallel()
	c := Memoize(func(n int) (int, error) { return n, nil }, Options[int]{})

	if s := c.Stats(); s.HitRate != 0 || s.Hits != 0 || s.Misses != 0 {
		t.Fatalf("expected zero stats, got %+v", s)
	}

	_, _ = c.Call(1)
	_, _ = c.Call(1)
	_, _ = c.Call(1)
	_, _ = c.Call(2)

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 2 {
		t.Fatalf("expected 2 hits and 2 misses, got %+v", s)
	}
	if want := float64(s.Hits) / float64(s.Hits+s.Misses); s.HitRate != want {
		t.Errorf("hit rate %v, want %v", s.HitRate, want)
	}
}

func TestCache_ClearAndDelete(t *testing.T) {
	t.Parallel()
	c := Memoize(func(n int) (int, error) { return n, nil }, Options[int]{})
	_, _ = c.Call(1)
	_, _ = c.Call(2)

	if !c.Delete(1) {
		t.Error("expected Delete(1) to report an existing entry")
	}
	if c.Delete(1) {
		t.Error("expected second Delete(1) to report nothing")
	}
	if c.Has(1) {
		t.Error("expected 1 to be gone")
	}

	c.Clear()
	s := c.Stats()
	if s.Size != 0 || s.Hits != 0 || s.Misses != 0 {
		t.Errorf("expected reset stats after Clear, got %+v", s)
	}
}

func TestCache_CustomKeyFunc(t *testing.T) {
	t.Parallel()
	type query struct {
		Term  string
		Trace string
	}
	calls := 0
	c := Memoize(func(q query) (string, error) {
		calls++
		return "result:" + q.Term, nil
	}, Options[query]{
		KeyFunc: func(q query) (string, error) { return q.Term, nil },
	})

	_, _ = c.Call(query{Term: "a", Trace: "1"})
	_, _ = c.Call(query{Term: "a", Trace: "2"})

	if calls != 1 {
		t.Errorf("expected custom key to ignore Trace, got %d calls", calls)
	}
}

func TestCache_KeyErrorIsReturned(t *testing.T) {
	t.Parallel()
	c := Memoize(func(f func()) (int, error) { return 1, nil }, Options[func()]{})

	if _, err := c.Call(func() {}); err == nil {
		t.Fatal("expected key derivation error for a func argument")
	}
	if c.Has(func() {}) {
		t.Error("Has should be false when the key cannot be derived")
	}
}

func TestDefaultKey_MapOrderIsCanonical(t *testing.T) {
	t.Parallel()
	a, err := DefaultKey(map[string]int{"b": 2, "a": 1, "c": 3})
	if err != nil {
		t.Fatalf("DefaultKey: %v", err)
	}
	b, _ := DefaultKey(map[string]int{"c": 3, "a": 1, "b": 2})
	if a != b {
		t.Errorf("expected identical keys, got %q and %q", a, b)
	}
}

func TestCache_ConcurrentUseStaysBounded(t *testing.T) {
	t.Parallel()
	c := Memoize(func(n int) (string, error) { return fmt.Sprint(n), nil }, Options[int]{MaxSize: 8})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, _ = c.Call((g * i) % 32)
			}
		}(g)
	}
	wg.Wait()

	if s := c.Stats(); s.Size > 8 {
		t.Errorf("size %d exceeds capacity", s.Size)
	}
}

func TestCache_FuncSharesEntries(t *testing.T) {
	t.Parallel()
	calls := 0
	c := Memoize(func(n int) (int, error) { calls++; return n * 2, nil }, Options[int]{})
	f := c.Func()

	if v, err := f(3); err != nil || v != 6 {
		t.Fatalf("f(3) = %d, %v", v, err)
	}
	if v, _ := c.Call(3); v != 6 || calls != 1 {
		t.Errorf("expected Call to reuse the entry stored through Func, calls=%d", calls)
	}
	if !c.Has(3) {
		t.Error("expected entry to be resident")
	}
}
