package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(t *testing.T, opts Options) (*Store, *fakeClock) {
	t.Helper()

	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	opts.Now = clock.Now
	if opts.SweepInterval == 0 {
		opts.SweepInterval = -1
	}

	s, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func TestSetGetRoundTrip(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	s.Set("photo:1", map[string]string{"id": "1", "filename": "a.jpg"}, SetOptions{})

	got, ok := GetAs[map[string]string](s, "photo:1", Volatile)
	if !ok {
		t.Fatal("Get() miss, want hit")
	}
	if got["filename"] != "a.jpg" {
		t.Errorf("filename = %q, want %q", got["filename"], "a.jpg")
	}
}

func TestMissOnUnknownKey(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	if _, ok := s.Get("nope", Volatile); ok {
		t.Error("Get() hit for unknown key, want miss")
	}
	if s.Stats().Misses != 1 {
		t.Errorf("Misses = %d, want 1", s.Stats().Misses)
	}
}

func TestExpiryIsStrictlyAfterTTL(t *testing.T) {
	s, clock := newTestStore(t, Options{})

	s.Set("k", "v", SetOptions{TTL: time.Minute})

	clock.Advance(time.Minute)
	if _, ok := s.Get("k", Volatile); !ok {
		t.Fatal("entry at exactly TTL should still be live")
	}

	clock.Advance(time.Nanosecond)
	if _, ok := s.Get("k", Volatile); ok {
		t.Fatal("entry past TTL should be expired")
	}
	if s.Size(Volatile) != 0 {
		t.Errorf("Size = %d after lazy eviction, want 0", s.Size(Volatile))
	}
	if s.Stats().Expirations != 1 {
		t.Errorf("Expirations = %d, want 1", s.Stats().Expirations)
	}
}

func TestDefaultTTLApplied(t *testing.T) {
	s, clock := newTestStore(t, Options{DefaultTTL: 10 * time.Minute})

	s.Set("k", "v", SetOptions{})

	clock.Advance(10 * time.Minute)
	if _, ok := s.Get("k", Volatile); !ok {
		t.Fatal("entry within default TTL should be live")
	}

	clock.Advance(time.Second)
	if _, ok := s.Get("k", Volatile); ok {
		t.Fatal("entry past default TTL should be expired")
	}
}

func TestVolatileCapacityEvictsOldest(t *testing.T) {
	s, _ := newTestStore(t, Options{MaxSize: 3})

	s.Set("k1", 1, SetOptions{})
	s.Set("k2", 2, SetOptions{})
	s.Set("k3", 3, SetOptions{})
	s.Set("k4", 4, SetOptions{})

	if _, ok := s.Get("k1", Volatile); ok {
		t.Error("k1 should have been evicted as the oldest entry")
	}
	for _, key := range []string{"k2", "k3", "k4"} {
		if _, ok := s.Get(key, Volatile); !ok {
			t.Errorf("%s should still be cached", key)
		}
	}
	if s.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", s.Stats().Evictions)
	}
}

func TestOverwriteRenewsEvictionOrder(t *testing.T) {
	s, _ := newTestStore(t, Options{MaxSize: 3})

	s.Set("k1", 1, SetOptions{})
	s.Set("k2", 2, SetOptions{})
	s.Set("k3", 3, SetOptions{})
	// Rewriting k1 gives it the newest creation time, so k2 is now oldest.
	s.Set("k1", 10, SetOptions{})
	s.Set("k4", 4, SetOptions{})

	if _, ok := s.Get("k2", Volatile); ok {
		t.Error("k2 should have been evicted")
	}
	if v, ok := GetAs[int](s, "k1", Volatile); !ok || v != 10 {
		t.Errorf("k1 = %d, %v; want 10, true", v, ok)
	}
}

func TestBackendsAreIndependent(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	s.Set("k", "volatile value", SetOptions{Backend: Volatile})
	s.Set("k", "session value", SetOptions{Backend: Session})

	v, ok := GetAs[string](s, "k", Volatile)
	if !ok || v != "volatile value" {
		t.Errorf("volatile k = %q, %v", v, ok)
	}
	v, ok = GetAs[string](s, "k", Session)
	if !ok || v != "session value" {
		t.Errorf("session k = %q, %v", v, ok)
	}

	s.Delete("k", Session)
	if _, ok := s.Get("k", Session); ok {
		t.Error("session k should be deleted")
	}
	if _, ok := s.Get("k", Volatile); !ok {
		t.Error("volatile k should survive a session delete")
	}
}

func TestClearSelectsBackends(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	s.Set("a", 1, SetOptions{Backend: Volatile})
	s.Set("b", 2, SetOptions{Backend: Session})

	s.Clear(Session)
	if s.Size(Session) != 0 {
		t.Errorf("session size = %d after clear, want 0", s.Size(Session))
	}
	if s.Size(Volatile) != 1 {
		t.Errorf("volatile size = %d, want 1", s.Size(Volatile))
	}

	s.Clear()
	if s.Size(Volatile) != 0 {
		t.Errorf("volatile size = %d after full clear, want 0", s.Size(Volatile))
	}
}

func TestDeletePrefix(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	s.Set("photos:page:1:per_page:20", 1, SetOptions{})
	s.Set("photos:page:2:per_page:20", 2, SetOptions{})
	s.Set("photo:77", 3, SetOptions{})

	if n := s.DeletePrefix("photos:page:", Volatile); n != 2 {
		t.Errorf("DeletePrefix removed %d entries, want 2", n)
	}
	if _, ok := s.Get("photo:77", Volatile); !ok {
		t.Error("unrelated key should survive a prefix delete")
	}
	if s.Size(Volatile) != 1 {
		t.Errorf("Size = %d, want 1", s.Size(Volatile))
	}
}

func TestCorruptEntryPurgedOnDecode(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	s.Set("bad", []byte("{not json"), SetOptions{})

	if _, ok := GetAs[map[string]int](s, "bad", Volatile); ok {
		t.Fatal("corrupt entry decoded, want miss")
	}
	if s.Size(Volatile) != 0 {
		t.Errorf("Size = %d after corrupt purge, want 0", s.Size(Volatile))
	}
}

func TestSweepRemovesExpiredAcrossBackends(t *testing.T) {
	s, clock := newTestStore(t, Options{})

	s.Set("v", 1, SetOptions{TTL: time.Minute, Backend: Volatile})
	s.Set("s", 2, SetOptions{TTL: time.Minute, Backend: Session})
	s.Set("keep", 3, SetOptions{TTL: time.Hour, Backend: Volatile})

	clock.Advance(2 * time.Minute)
	s.Sweep()

	if s.Size(Volatile) != 1 {
		t.Errorf("volatile size = %d after sweep, want 1", s.Size(Volatile))
	}
	if s.Size(Session) != 0 {
		t.Errorf("session size = %d after sweep, want 0", s.Size(Session))
	}
	if got := s.Stats().Expirations; got != 2 {
		t.Errorf("Expirations = %d, want 2", got)
	}
}

func TestGetOrFetchCoalescesConcurrentMisses(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return map[string]int{"n": 42}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.GetOrFetch(context.Background(), "shared", Volatile, time.Minute, fetch); err != nil {
				t.Errorf("GetOrFetch() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("fetch ran %d times, want 1", n)
	}

	// A later call is served from cache without fetching again.
	if _, err := s.GetOrFetch(context.Background(), "shared", Volatile, time.Minute, fetch); err != nil {
		t.Fatalf("GetOrFetch() error = %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fetch ran %d times after cached call, want 1", n)
	}
}

func TestGetOrFetchErrorNotCached(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	boom := errors.New("origin down")
	_, err := s.GetOrFetch(context.Background(), "k", Volatile, time.Minute, func(ctx context.Context) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("GetOrFetch() error = %v, want %v", err, boom)
	}

	if _, ok := s.Get("k", Volatile); ok {
		t.Error("failed fetch should not populate the cache")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	s.Set("k", 1, SetOptions{})

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if s.Size(Volatile) != 0 {
		t.Errorf("Size = %d after Close, want 0", s.Size(Volatile))
	}
}

func TestHitAndMissCounters(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	s.Set("k", 1, SetOptions{})
	s.Get("k", Volatile)
	s.Get("k", Volatile)
	s.Get("other", Volatile)

	stats := s.Stats()
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}
