package memo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// blockingFn returns a function that waits for release before answering and
// signals started on its first invocation.
func blockingFn(calls *int32, started chan<- struct{}, release <-chan struct{}, err error) func(context.Context, int) (int, error) {
	var once sync.Once
	return func(ctx context.Context, n int) (int, error) {
		atomic.AddInt32(calls, 1)
		once.Do(func() { close(started) })
		<-release
		if err != nil {
			return 0, err
		}
		return n * 10, nil
	}
}

func TestAsyncCache_SameKeyInvokesOnce(t *testing.T) {
	t.Parallel()
	c := MemoizeAsync(func(ctx context.Context, n int) (int, error) { return n + 1, nil }, Options[int]{})
	ctx := context.Background()

	a, _ := c.Call(ctx, 5)
	b, _ := c.Call(ctx, 5)
	if a != 6 || b != 6 {
		t.Fatalf("expected 6 and 6, got %d and %d", a, b)
	}
	if s := c.Stats(); s.Misses != 1 || s.Hits != 1 {
		t.Errorf("expected 1 miss and 1 hit, got %+v", s)
	}
}

func TestAsyncCache_CoalescesConcurrentCalls(t *testing.T) {
	t.Parallel()
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	c := MemoizeAsync(blockingFn(&calls, started, release, nil), Options[int]{})

	const k = 8
	results := make([]int, k)
	errs := make([]error, k)
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Call(context.Background(), 7)
		}(i)
	}

	<-started
	if s := c.Stats(); s.Pending != 1 {
		t.Errorf("expected 1 pending key, got %d", s.Pending)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 invocation, got %d", got)
	}
	for i := 0; i < k; i++ {
		if errs[i] != nil || results[i] != 70 {
			t.Errorf("caller %d got (%d, %v), want (70, nil)", i, results[i], errs[i])
		}
	}
	if s := c.Stats(); s.Pending != 0 || s.Size != 1 {
		t.Errorf("expected settled cache with one entry, got %+v", s)
	}
}

func TestAsyncCache_SharedRejection(t *testing.T) {
	t.Parallel()
	boom := errors.New("scanner down")
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	c := MemoizeAsync(blockingFn(&calls, started, release, boom), Options[int]{})

	const k = 5
	errs := make([]error, k)
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Call(context.Background(), 1)
		}(i)
	}

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 invocation, got %d", got)
	}
	for i, err := range errs {
		if !errors.Is(err, boom) {
			t.Errorf("caller %d got %v, want %v", i, err, boom)
		}
	}
	if c.Has(1) {
		t.Error("rejected call must not be cached")
	}
	if s := c.Stats(); s.Pending != 0 {
		t.Errorf("expected pending registry to be cleared, got %d", s.Pending)
	}
}

func TestAsyncCache_RetriesAfterRejection(t *testing.T) {
	t.Parallel()
	var calls int32
	c := MemoizeAsync(func(ctx context.Context, n int) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return 0, errors.New("transient")
		}
		return n, nil
	}, Options[int]{})

	if _, err := c.Call(context.Background(), 3); err == nil {
		t.Fatal("expected first call to fail")
	}
	v, err := c.Call(context.Background(), 3)
	if err != nil || v != 3 {
		t.Fatalf("expected retry to succeed with 3, got %d (%v)", v, err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 invocations, got %d", got)
	}
}

func TestAsyncCache_TTL(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	var calls int32
	c := MemoizeAsync(func(ctx context.Context, n int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return n, nil
	}, Options[int]{TTL: 1000 * time.Millisecond, Now: clock.Now})
	ctx := context.Background()

	_, _ = c.Call(ctx, 5)
	clock.Advance(500 * time.Millisecond)
	_, _ = c.Call(ctx, 5)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 invocation at t=500ms, got %d", got)
	}

	clock.Advance(1100 * time.Millisecond)
	_, _ = c.Call(ctx, 5)
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected recompute at t=1600ms, got %d invocations", got)
	}
}

func TestAsyncCache_CallerCancellationDoesNotCancelExecution(t *testing.T) {
	t.Parallel()
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan error, 1)
	c := MemoizeAsync(func(ctx context.Context, n int) (int, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		finished <- ctx.Err()
		return n, nil
	}, Options[int]{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Call(ctx, 9)
		errCh <- err
	}()

	<-started
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected abandoned caller to see context.Canceled, got %v", err)
	}

	close(release)
	if err := <-finished; err != nil {
		t.Errorf("execution context should not be canceled, got %v", err)
	}

	// Settlement lands in the cache for later callers.
	deadline := time.Now().Add(time.Second)
	for !c.Has(9) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	v, err := c.Call(context.Background(), 9)
	if err != nil || v != 9 {
		t.Fatalf("expected cached 9, got %d (%v)", v, err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 invocation, got %d", got)
	}
}

func TestAsyncCache_DistinctKeysRunIndependently(t *testing.T) {
	t.Parallel()
	var calls int32
	c := MemoizeAsync(func(ctx context.Context, n int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return n, nil
	}, Options[int]{MaxSize: 2})

	for _, n := range []int{1, 2, 3} {
		if _, err := c.Call(context.Background(), n); err != nil {
			t.Fatalf("Call(%d): %v", n, err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 invocations, got %d", got)
	}
	if c.Has(1) || !c.Has(2) || !c.Has(3) {
		t.Error("expected FIFO eviction of key 1")
	}
}

func TestAsyncCache_ClearAndDelete(t *testing.T) {
	t.Parallel()
	c := MemoizeAsync(func(ctx context.Context, n int) (int, error) { return n, nil }, Options[int]{})
	ctx := context.Background()
	_, _ = c.Call(ctx, 1)
	_, _ = c.Call(ctx, 1)

	if !c.Delete(1) || c.Has(1) {
		t.Error("expected Delete to remove the entry")
	}

	_, _ = c.Call(ctx, 2)
	c.Clear()
	if s := c.Stats(); s.Size != 0 || s.Hits != 0 || s.Misses != 0 || s.HitRate != 0 {
		t.Errorf("expected zeroed stats after Clear, got %+v", s)
	}
}

func TestAsyncCache_StatsJSONReportsZeroPending(t *testing.T) {
	t.Parallel()
	c := MemoizeAsync(func(ctx context.Context, n int) (int, error) { return n, nil }, Options[int]{})
	_, _ = c.Call(context.Background(), 1)

	b, err := json.Marshal(c.Stats())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"pending":0`) {
		t.Errorf("expected pending in stats JSON, got %s", b)
	}
}
