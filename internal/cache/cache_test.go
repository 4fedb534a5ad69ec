package cache

import (
	"errors"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[int], *clock) {
	c := NewLRUCache[int](size, ttl)
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clk.now
	return c, clk
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("a", 1)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}
	clk.t = clk.t.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry returned")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry not removed, size %d", c.Size())
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // b becomes least recently used
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should survive")
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUCache_CleanExpiredAndPurge(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("old", 1)
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("new", 2)
	clk.t = clk.t.Add(45 * time.Second)

	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired = %d, want 1", n)
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("purge left %d entries", c.Size())
	}
}

func TestLRUCache_GetOrLoad(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("k", load)
		if err != nil || v != 42 {
			t.Fatalf("GetOrLoad = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrLoad("bad", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Fatal("failed load was cached")
	}
}

func TestLRUCache_GetOrLoadDropsValueLoadedAcrossPurge(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	result := make(chan int)

	go func() {
		v, _ := c.GetOrLoad("stats", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		result <- v
	}()

	<-started
	c.Purge()
	close(release)
	if v := <-result; v != 1 {
		t.Fatalf("caller should still get the loaded value, got %d", v)
	}
	if _, ok := c.Get("stats"); ok {
		t.Fatal("value loaded before the purge was cached")
	}

	v, err := c.GetOrLoad("stats", func() (int, error) { return 2, nil })
	if err != nil || v != 2 {
		t.Fatalf("GetOrLoad after purge = %d, %v", v, err)
	}
	if got, ok := c.Get("stats"); !ok || got != 2 {
		t.Fatalf("fresh load not cached: %d, %v", got, ok)
	}
}

func TestManager_InvalidateAll(t *testing.T) {
	a := NewLRUCache[int](10, time.Hour)
	b := NewLRUCache[string](10, time.Hour)
	a.Set("x", 1)
	b.Set("y", "z")

	m := NewManager()
	m.Register("a", a)
	m.Register("b", b)
	m.StartCleanup(time.Hour)
	defer m.Stop()

	m.InvalidateAll()
	if a.Size() != 0 || b.Size() != 0 {
		t.Fatalf("caches not purged: %d %d", a.Size(), b.Size())
	}
}

func TestManager_StopTwice(t *testing.T) {
	m := NewManager()
	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
