package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"concord/internal/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache() (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	return New(logging.Nop(), WithClock(clock)), clock
}

func TestKeyIsOrderInsensitive(t *testing.T) {
	a := Key("discord.read_messages", map[string]any{"channel_id": "1", "limit": 50})
	b := Key("discord.read_messages", map[string]any{"limit": 50, "channel_id": "1"})
	if a != b {
		t.Fatalf("argument order must not split the cache:\n%s\n%s", a, b)
	}
	c := Key("discord.read_messages", map[string]any{"channel_id": "2", "limit": 50})
	if a == c {
		t.Fatal("different arguments must not collide")
	}
}

func TestGetOrLoadCachesSuccess(t *testing.T) {
	c, _ := newTestCache()
	var loads atomic.Int32
	load := func(ctx context.Context) (any, error) {
		loads.Add(1)
		return "payload", nil
	}

	v, hit, err := c.GetOrLoad(context.Background(), "k", "tool", time.Minute, nil, load)
	if err != nil || hit || v != "payload" {
		t.Fatalf("first call: v=%v hit=%v err=%v", v, hit, err)
	}
	v, hit, err = c.GetOrLoad(context.Background(), "k", "tool", time.Minute, nil, load)
	if err != nil || !hit || v != "payload" {
		t.Fatalf("second call: v=%v hit=%v err=%v", v, hit, err)
	}
	if loads.Load() != 1 {
		t.Fatalf("expected 1 load, got %d", loads.Load())
	}
}

func TestGetOrLoadExpiry(t *testing.T) {
	c, clock := newTestCache()
	var loads atomic.Int32
	load := func(ctx context.Context) (any, error) {
		loads.Add(1)
		return loads.Load(), nil
	}

	c.GetOrLoad(context.Background(), "k", "tool", 10*time.Second, nil, load)
	clock.advance(11 * time.Second)
	v, hit, _ := c.GetOrLoad(context.Background(), "k", "tool", 10*time.Second, nil, load)
	if hit {
		t.Fatal("expired entry must not hit")
	}
	if v != int32(2) {
		t.Fatalf("expected fresh load, got %v", v)
	}
}

func TestGetOrLoadNeverCachesFailures(t *testing.T) {
	c, _ := newTestCache()
	var loads atomic.Int32
	boom := errors.New("upstream down")
	load := func(ctx context.Context) (any, error) {
		loads.Add(1)
		return nil, boom
	}

	_, _, err := c.GetOrLoad(context.Background(), "k", "tool", time.Minute, nil, load)
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	_, _, err = c.GetOrLoad(context.Background(), "k", "tool", time.Minute, nil, load)
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error again, got %v", err)
	}
	if loads.Load() != 2 {
		t.Fatalf("failures must not be cached, got %d loads", loads.Load())
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.Len())
	}
}

func TestGetOrLoadZeroTTLBypasses(t *testing.T) {
	c, _ := newTestCache()
	var loads atomic.Int32
	load := func(ctx context.Context) (any, error) {
		loads.Add(1)
		return "v", nil
	}
	c.GetOrLoad(context.Background(), "k", "tool", 0, nil, load)
	c.GetOrLoad(context.Background(), "k", "tool", 0, nil, load)
	if loads.Load() != 2 {
		t.Fatalf("zero ttl must bypass the cache, got %d loads", loads.Load())
	}
}

func TestGetOrLoadCoalescesConcurrentReads(t *testing.T) {
	c, _ := newTestCache()
	var loads atomic.Int32
	var once sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) (any, error) {
		loads.Add(1)
		once.Do(func() { close(started) })
		<-release
		return "shared", nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]any, callers)
	hits := make([]bool, callers)
	errs := make([]error, callers)
	run := func(i int) {
		defer wg.Done()
		results[i], hits[i], errs[i] = c.GetOrLoad(context.Background(), "k", "tool", time.Minute, nil, load)
	}

	wg.Add(1)
	go run(0)
	<-started

	// The leader is parked in load, so everyone arriving now coalesces.
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go run(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if results[i] != "shared" {
			t.Fatalf("caller %d got %v", i, results[i])
		}
	}
	if loads.Load() != 1 {
		t.Fatalf("expected exactly 1 upstream load, got %d", loads.Load())
	}
	// Exactly one caller led the flight; the coalesced rest count as hits.
	misses := 0
	for _, hit := range hits {
		if !hit {
			misses++
		}
	}
	if misses != 1 {
		t.Fatalf("expected exactly 1 leader miss, got %d", misses)
	}
}

func TestInvalidateByResource(t *testing.T) {
	c, _ := newTestCache()
	load := func(v any) Loader {
		return func(ctx context.Context) (any, error) { return v, nil }
	}

	c.GetOrLoad(context.Background(), "messages:chan1", "t", time.Minute, []string{"chan1"}, load("a"))
	c.GetOrLoad(context.Background(), "pins:chan1", "t", time.Minute, []string{"chan1"}, load("b"))
	c.GetOrLoad(context.Background(), "messages:chan2", "t", time.Minute, []string{"chan2"}, load("c"))

	if removed := c.Invalidate("chan1"); removed != 2 {
		t.Fatalf("expected 2 evictions, got %d", removed)
	}

	var loads atomic.Int32
	counted := func(ctx context.Context) (any, error) {
		loads.Add(1)
		return "fresh", nil
	}
	_, hit, _ := c.GetOrLoad(context.Background(), "messages:chan1", "t", time.Minute, []string{"chan1"}, counted)
	if hit || loads.Load() != 1 {
		t.Fatal("invalidated entry must reload")
	}
	_, hit, _ = c.GetOrLoad(context.Background(), "messages:chan2", "t", time.Minute, []string{"chan2"}, counted)
	if !hit {
		t.Fatal("unrelated resource must survive invalidation")
	}
}

func TestInvalidateUnknownResource(t *testing.T) {
	c, _ := newTestCache()
	if removed := c.Invalidate("nope"); removed != 0 {
		t.Fatalf("expected 0 evictions, got %d", removed)
	}
}

func TestStartSweeperRunsInBackground(t *testing.T) {
	c, clock := newTestCache()
	c.GetOrLoad(context.Background(), "k", "t", time.Minute, nil,
		func(ctx context.Context) (any, error) { return "v", nil })
	clock.advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Returns immediately; the sweep itself runs on its own goroutine.
	c.StartSweeper(ctx, 5*time.Millisecond)

	deadline := time.After(2 * time.Second)
	for c.Len() > 0 {
		select {
		case <-deadline:
			t.Fatal("sweeper never removed the expired entry")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSweepDropsExpired(t *testing.T) {
	c, clock := newTestCache()
	load := func(ctx context.Context) (any, error) { return "v", nil }

	c.GetOrLoad(context.Background(), "short", "t", time.Second, nil, load)
	c.GetOrLoad(context.Background(), "long", "t", time.Hour, nil, load)
	clock.advance(2 * time.Second)

	if n := c.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept entry, got %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 live entry, got %d", c.Len())
	}
}

func TestEvictionCleansResourceIndex(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	c := New(logging.Nop(), WithClock(clock), WithMaxEntries(2))
	load := func(ctx context.Context) (any, error) { return "v", nil }

	c.GetOrLoad(context.Background(), "k1", "t", time.Minute, []string{"r1"}, load)
	c.GetOrLoad(context.Background(), "k2", "t", time.Minute, []string{"r2"}, load)
	c.GetOrLoad(context.Background(), "k3", "t", time.Minute, []string{"r3"}, load)

	// k1 was evicted by capacity, so invalidating r1 finds nothing.
	if removed := c.Invalidate("r1"); removed != 0 {
		t.Fatalf("expected index cleaned on eviction, got %d removals", removed)
	}
	if removed := c.Invalidate("r3"); removed != 1 {
		t.Fatalf("expected live entry eviction, got %d", removed)
	}
}
