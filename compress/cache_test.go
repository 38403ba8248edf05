package compress

import (
	"fmt"
	"sync"
	"testing"
)

func TestCacheKey_DistinctPerInstructions(t *testing.T) {
	a := CacheKey("the goblin falls", NarrativeInstructions)
	b := CacheKey("the goblin falls", CombatInstructions)
	if a == b {
		t.Error("same content under different instructions must produce different keys")
	}
	if a != CacheKey("the goblin falls", NarrativeInstructions) {
		t.Error("key must be stable for identical input")
	}
}

func TestCacheKey_SeparatorAmbiguity(t *testing.T) {
	// Content "ab" + instructions "c" must not collide with "a" + "bc".
	if CacheKey("ab", "c") == CacheKey("a", "bc") {
		t.Error("content/instruction boundary is ambiguous")
	}
}

func TestCache_FIFOEviction(t *testing.T) {
	c := NewCache(3)
	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i))
	}
	if c.Len() != 3 {
		t.Fatalf("expected 3 entries after eviction, got %d", c.Len())
	}
	for _, evicted := range []string{"k0", "k1"} {
		if _, ok := c.Get(evicted); ok {
			t.Errorf("oldest entry %s should have been evicted", evicted)
		}
	}
	for _, kept := range []string{"k2", "k3", "k4"} {
		if _, ok := c.Get(kept); !ok {
			t.Errorf("entry %s should have survived eviction", kept)
		}
	}
}

func TestCache_FirstWriteWins(t *testing.T) {
	c := NewCache(10)
	c.Put("k", "first")
	c.Put("k", "second")
	if v, _ := c.Get("k"); v != "first" {
		t.Errorf("re-put must not change an entry: got %q", v)
	}
}

func TestCache_GetOrCompute(t *testing.T) {
	c := NewCache(10)
	calls := 0
	compute := func() (string, error) { calls++; return "out", nil }

	v, fromCache, err := c.GetOrCompute("k", compute)
	if err != nil || v != "out" || fromCache {
		t.Fatalf("first call: got (%q, %v, %v)", v, fromCache, err)
	}
	v, fromCache, err = c.GetOrCompute("k", compute)
	if err != nil || v != "out" || !fromCache {
		t.Fatalf("second call: got (%q, %v, %v)", v, fromCache, err)
	}
	if calls != 1 {
		t.Errorf("compute ran %d times, want 1", calls)
	}
}

func TestCache_GetOrCompute_Error(t *testing.T) {
	c := NewCache(10)
	wantErr := fmt.Errorf("model down")
	_, _, err := c.GetOrCompute("k", func() (string, error) { return "", wantErr })
	if err != wantErr {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("failed computation must not be cached")
	}
}

func TestCache_ConcurrentSameKey(t *testing.T) {
	c := NewCache(100)
	key := CacheKey("shared content", NarrativeInstructions)

	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.GetOrCompute(key, func() (string, error) {
				return "stable result", nil
			})
			if err != nil {
				t.Errorf("goroutine %d: %v", i, err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	for i, v := range results {
		if v != "stable result" {
			t.Fatalf("goroutine %d observed %q, want %q", i, v, "stable result")
		}
	}
	if c.Len() != 1 {
		t.Errorf("expected exactly one entry, got %d", c.Len())
	}
}
