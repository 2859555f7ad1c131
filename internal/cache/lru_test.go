package cache

import (
	"fmt"
	"testing"
	"time"

	"stock-advisor/internal/regime"
)

// TestLRUEvictsOldestAtCapacity tests that inserting N+1 distinct keys with
// no repeated access evicts the first-inserted key
func TestLRUEvictsOldestAtCapacity(t *testing.T) {
	const capacity = 3
	c := NewLRU(capacity, time.Minute)

	for i := 0; i <= capacity; i++ {
		c.Set(fmt.Sprintf("key%d", i), i)
	}

	if _, ok := c.Get("key0"); ok {
		t.Error("first-inserted key should have been evicted")
	}
	for i := 1; i <= capacity; i++ {
		if _, ok := c.Get(fmt.Sprintf("key%d", i)); !ok {
			t.Errorf("key%d should still be present", i)
		}
	}
	if c.Len() != capacity {
		t.Errorf("cache should hold exactly %d keys, got %d", capacity, c.Len())
	}
}

// TestLRUReadRefreshesRecency tests that re-accessing a key before eviction
// prevents its eviction
func TestLRUReadRefreshesRecency(t *testing.T) {
	c := NewLRU(3, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch "a" so "b" becomes the LRU victim.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be present")
	}

	c.Set("d", 4)

	if _, ok := c.Get("a"); !ok {
		t.Error("recently-read key should survive eviction")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("least-recently-used key should have been evicted")
	}
}

// TestLRUWriteRefreshesRecency tests that overwriting a key also counts as a
// touch
func TestLRUWriteRefreshesRecency(t *testing.T) {
	c := NewLRU(2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted, not the rewritten a")
	}
	v, ok := c.Get("a")
	if !ok || v.(int) != 10 {
		t.Errorf("a should hold its rewritten value, got %v", v)
	}
}

// TestLRUExpiry tests that expired entries read as misses
func TestLRUExpiry(t *testing.T) {
	c := NewLRU(10, time.Minute)
	c.Set("a", 1)

	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	if _, ok := c.Get("a"); ok {
		t.Error("expired entry should read as a miss")
	}
}

// TestContextCacheInvalidateByKind tests selective invalidation
func TestContextCacheInvalidateByKind(t *testing.T) {
	cc := NewContextCache()

	cc.SetRegime(regime.Assessment{Regime: regime.LowVolBullish})
	cc.SetPatterns("AAPL", nil)

	cc.Invalidate(KindRegime)
	if _, ok := cc.Regime(); ok {
		t.Error("regime should be invalidated")
	}
	if _, ok := cc.Patterns("AAPL"); !ok {
		t.Error("pattern cache should survive a regime-only invalidation")
	}

	cc.Invalidate(KindAll)
	if _, ok := cc.Patterns("AAPL"); ok {
		t.Error("pattern cache should be dropped by invalidate-all")
	}
}

// TestContextCacheRegimeTTL tests the single-slot regime cache expiry
func TestContextCacheRegimeTTL(t *testing.T) {
	cc := NewContextCache()
	cc.SetRegime(regime.Assessment{Regime: regime.Choppy})

	if a, ok := cc.Regime(); !ok || a.Regime != regime.Choppy {
		t.Fatal("fresh regime should be served from cache")
	}

	cc.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	if _, ok := cc.Regime(); ok {
		t.Error("regime older than its TTL should read as a miss")
	}
}
