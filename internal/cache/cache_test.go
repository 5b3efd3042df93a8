package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for TTL tests
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time { return f.t }

func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(t *testing.T, size int, ttl time.Duration) (*Cache, *fakeClock) {
	t.Helper()
	c, err := New(Options{Size: size, TTL: ttl})
	if err != nil {
		t.Fatalf("New(%d, %s) failed: %v", size, ttl, err)
	}
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c.now = clock.Now
	return c, clock
}

// keys returns resident keys from most to least recently used
func keys(c *Cache) []string {
	var out []string
	for _, e := range c.Entries() {
		out = append(out, e.Key)
	}
	return out
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"zero size", Options{Size: 0}, true},
		{"negative size", Options{Size: -3}, true},
		{"negative ttl", Options{Size: 2, TTL: -time.Millisecond}, true},
		{"size one", Options{Size: 1}, false},
		{"ttl disabled", Options{Size: 2, TTL: 0}, false},
		{"ttl set", Options{Size: 10, TTL: 200 * time.Millisecond}, false},
	}

	for _, test := range tests {
		c, err := New(test.opts)
		if test.wantErr {
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("%s: expected ErrInvalidConfiguration, got %v", test.name, err)
			}
			if c != nil {
				t.Errorf("%s: expected nil cache on error", test.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", test.name, err)
			continue
		}
		if c.Capacity() != test.opts.Size || c.TTL() != test.opts.TTL {
			t.Errorf("%s: configuration not kept, got size=%d ttl=%s", test.name, c.Capacity(), c.TTL())
		}
	}
}

func TestPutAndGet(t *testing.T) {
	c, clock := newTestCache(t, 2, 200*time.Millisecond)

	c.Put("one", 1)
	e, ok := c.Get("one")
	if !ok {
		t.Fatal("Expected 'one' to be present")
	}
	if e.Key != "one" || e.Value != 1 {
		t.Errorf("Unexpected entry %+v", e)
	}
	if !e.Timestamp.Equal(clock.Now()) {
		t.Errorf("Expected timestamp %v, got %v", clock.Now(), e.Timestamp)
	}

	if _, ok := c.Get("non-existing-key"); ok {
		t.Error("Expected miss for non-existing key")
	}
}

func TestLRUEvictionOrder(t *testing.T) {
	c, _ := newTestCache(t, 2, 0)

	c.Put("A", 1)
	c.Put("B", 2)
	c.Put("C", 3)

	if _, ok := c.Get("A"); ok {
		t.Error("Expected A to be evicted")
	}
	if _, ok := c.Get("B"); !ok {
		t.Error("Expected B to remain")
	}
	if _, ok := c.Get("C"); !ok {
		t.Error("Expected C to remain")
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Expected 1 eviction, got %d", got)
	}
}

func TestGetPromotes(t *testing.T) {
	c, _ := newTestCache(t, 2, 0)

	c.Put("A", 1)
	c.Put("B", 2)
	c.Get("A")
	c.Put("C", 3)

	if _, ok := c.Get("A"); !ok {
		t.Error("Expected A to survive after being read")
	}
	if _, ok := c.Get("B"); ok {
		t.Error("Expected B to be evicted")
	}
}

func TestUpdateExistingKey(t *testing.T) {
	c, clock := newTestCache(t, 3, time.Second)

	c.Put("K", "v1")
	c.Put("X", "x")
	clock.Advance(100 * time.Millisecond)
	c.Put("K", "v2")

	if c.Len() != 2 {
		t.Errorf("Expected 2 entries after update, got %d", c.Len())
	}
	if got := keys(c); !equalKeys(got, []string{"K", "X"}) {
		t.Errorf("Expected K promoted to head, got %v", got)
	}

	e, ok := c.Get("K")
	if !ok || e.Value != "v2" {
		t.Fatalf("Expected v2, got %+v (ok=%v)", e, ok)
	}
	if !e.Timestamp.Equal(clock.Now()) {
		t.Errorf("Expected refreshed timestamp %v, got %v", clock.Now(), e.Timestamp)
	}
}

func TestUpdateAtCapacityDoesNotEvict(t *testing.T) {
	c, _ := newTestCache(t, 2, 0)

	c.Put("A", 1)
	c.Put("B", 2)
	c.Put("A", 11)

	if c.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", c.Len())
	}
	if _, ok := c.Get("B"); !ok {
		t.Error("Expected B to remain after updating A in a full cache")
	}
	if got := c.Stats().Evictions; got != 0 {
		t.Errorf("Expected no evictions, got %d", got)
	}
}

func TestExpiry(t *testing.T) {
	c, clock := newTestCache(t, 2, 200*time.Millisecond)

	c.Put("one", 1)
	clock.Advance(199 * time.Millisecond)
	if e, ok := c.Get("one"); !ok || e.Value != 1 {
		t.Fatalf("Expected fresh hit before TTL, got %+v (ok=%v)", e, ok)
	}

	clock.Advance(2 * time.Millisecond)
	if _, ok := c.Get("one"); ok {
		t.Error("Expected miss after TTL")
	}
	if got := c.Stats().Expired; got != 1 {
		t.Errorf("Expected 1 expired read, got %d", got)
	}
}

func TestExpiryBoundaryIsExclusive(t *testing.T) {
	c, clock := newTestCache(t, 1, 100*time.Millisecond)

	c.Put("k", "v")
	clock.Advance(100 * time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Error("Expected hit when age equals TTL")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c, clock := newTestCache(t, 1, 0)

	c.Put("k", "v")
	clock.Advance(24 * 365 * time.Hour)
	if _, ok := c.Get("k"); !ok {
		t.Error("Expected entry to live forever with TTL disabled")
	}
}

func TestExpiredEntryStaysResident(t *testing.T) {
	c, clock := newTestCache(t, 2, 100*time.Millisecond)

	c.Put("A", 1)
	c.Put("B", 2)
	clock.Advance(150 * time.Millisecond)

	// Both are expired; reading A must neither remove nor promote it.
	if _, ok := c.Get("A"); ok {
		t.Fatal("Expected A to be expired")
	}
	if c.Len() != 2 {
		t.Fatalf("Expected expired entries to stay resident, got %d", c.Len())
	}
	if got := keys(c); !equalKeys(got, []string{"B", "A"}) {
		t.Errorf("Expected order [B A] after expired read, got %v", got)
	}

	// A is still the LRU entry and goes first.
	c.Put("C", 3)
	if got := keys(c); !equalKeys(got, []string{"C", "B"}) {
		t.Errorf("Expected A evicted by recency, got %v", got)
	}
}

func TestPutOnExpiredKeyIsUpdate(t *testing.T) {
	c, clock := newTestCache(t, 2, 100*time.Millisecond)

	c.Put("A", 1)
	c.Put("B", 2)
	clock.Advance(150 * time.Millisecond)

	c.Put("A", 10)
	if got := c.Stats().Evictions; got != 0 {
		t.Errorf("Expected overwrite of expired key to be an update, got %d evictions", got)
	}
	if got := keys(c); !equalKeys(got, []string{"A", "B"}) {
		t.Errorf("Expected A at head, got %v", got)
	}
	e, ok := c.Get("A")
	if !ok || e.Value != 10 {
		t.Errorf("Expected refreshed A=10, got %+v (ok=%v)", e, ok)
	}
	if _, ok := c.Get("B"); ok {
		t.Error("Expected B to still be expired")
	}
}

func TestFlush(t *testing.T) {
	c, _ := newTestCache(t, 3, time.Minute)

	c.Put("one", 1)
	c.Put("two", 2)
	c.Flush()

	if c.Len() != 0 {
		t.Errorf("Expected 0 entries after flush, got %d", c.Len())
	}
	for _, k := range []string{"one", "two"} {
		if _, ok := c.Get(k); ok {
			t.Errorf("Expected %s to be gone after flush", k)
		}
	}
	if c.Capacity() != 3 || c.TTL() != time.Minute {
		t.Error("Flush must not change configuration")
	}

	// The cache is fully usable afterwards.
	c.Put("A", 1)
	c.Put("B", 2)
	c.Put("C", 3)
	c.Put("D", 4)
	if got := keys(c); !equalKeys(got, []string{"D", "C", "B"}) {
		t.Errorf("Unexpected order after flush and refill: %v", got)
	}
}

func TestCapacityOne(t *testing.T) {
	c, _ := newTestCache(t, 1, time.Minute)

	c.Put("A", 1)
	c.Put("B", 2)

	if _, ok := c.Get("A"); ok {
		t.Error("Expected A to be evicted")
	}
	e, ok := c.Get("B")
	if !ok || e.Key != "B" || e.Value != 2 {
		t.Errorf("Expected B=2, got %+v (ok=%v)", e, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", c.Len())
	}

	c.Put("B", 3)
	if e, _ := c.Get("B"); e.Value != 3 {
		t.Errorf("Expected update of sole resident, got %v", e.Value)
	}
}

func TestIdempotentHit(t *testing.T) {
	c, _ := newTestCache(t, 2, 0)

	c.Put("A", 1)
	c.Put("B", 2)
	for i := 0; i < 5; i++ {
		c.Get("B")
	}
	c.Put("C", 3)

	if _, ok := c.Get("A"); ok {
		t.Error("Expected A to be evicted; repeated reads of the head must not reorder")
	}
	if _, ok := c.Get("B"); !ok {
		t.Error("Expected B to remain")
	}
}

func TestCapacityBound(t *testing.T) {
	for _, size := range []int{1, 2, 7, 64} {
		c, _ := newTestCache(t, size, 0)
		for i := 0; i < size*5; i++ {
			c.Put(fmt.Sprintf("k%d", i), i)
			if c.Len() > size {
				t.Fatalf("size %d: %d entries resident after %d puts", size, c.Len(), i+1)
			}
			if len(c.nodes) > size {
				t.Fatalf("size %d: arena grew to %d", size, len(c.nodes))
			}
		}
		// The newest entries survive, newest first.
		entries := c.Entries()
		for i, e := range entries {
			want := fmt.Sprintf("k%d", size*5-1-i)
			if e.Key != want {
				t.Errorf("size %d: position %d = %s, expected %s", size, i, e.Key, want)
			}
		}
	}
}

func TestListIntegrity(t *testing.T) {
	c, _ := newTestCache(t, 4, 0)

	ops := []struct {
		op  string
		key string
	}{
		{"put", "a"}, {"put", "b"}, {"put", "c"}, {"get", "a"},
		{"put", "d"}, {"get", "c"}, {"put", "e"}, {"get", "d"},
		{"put", "b"}, {"get", "e"}, {"put", "f"}, {"get", "a"},
	}
	for _, o := range ops {
		if o.op == "put" {
			c.Put(o.key, o.key)
		} else {
			c.Get(o.key)
		}
		checkIntegrity(t, c)
	}
}

// checkIntegrity walks the list both ways and compares it with the index
func checkIntegrity(t *testing.T, c *Cache) {
	t.Helper()

	var forward []int
	for h := c.head; h != nilHandle; h = c.nodes[h].next {
		forward = append(forward, h)
		if len(forward) > len(c.nodes) {
			t.Fatal("cycle in recency list")
		}
	}
	var backward []int
	for h := c.tail; h != nilHandle; h = c.nodes[h].prev {
		backward = append(backward, h)
		if len(backward) > len(c.nodes) {
			t.Fatal("cycle in recency list (reverse)")
		}
	}
	if len(forward) != len(c.index) || len(backward) != len(c.index) {
		t.Fatalf("list length %d/%d does not match index size %d", len(forward), len(backward), len(c.index))
	}
	for i := range forward {
		if forward[i] != backward[len(backward)-1-i] {
			t.Fatalf("forward and backward walks disagree at %d", i)
		}
	}
	for k, h := range c.index {
		if c.nodes[h].key != k {
			t.Fatalf("index %s points at slot holding %s", k, c.nodes[h].key)
		}
	}
}

func TestEntriesDoesNotPromote(t *testing.T) {
	c, clock := newTestCache(t, 2, 50*time.Millisecond)

	c.Put("A", 1)
	clock.Advance(60 * time.Millisecond)
	c.Put("B", 2)

	entries := c.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Key != "B" || entries[0].Expired {
		t.Errorf("Expected fresh B first, got %+v", entries[0])
	}
	if entries[1].Key != "A" || !entries[1].Expired || entries[1].Age != 60*time.Millisecond {
		t.Errorf("Expected expired A second, got %+v", entries[1])
	}

	c.Put("C", 3)
	if got := keys(c); !equalKeys(got, []string{"C", "B"}) {
		t.Errorf("Entries must not reorder, got %v", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c, err := New(Options{Size: 16, TTL: time.Minute})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", (g*7+i)%40)
				if i%3 == 0 {
					c.Put(key, i)
				} else {
					c.Get(key)
				}
				if i%250 == 0 {
					c.Stats()
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 16 {
		t.Errorf("Expected at most 16 entries, got %d", c.Len())
	}
	c.mu.Lock()
	checkIntegrity(t, c)
	c.mu.Unlock()
}

func BenchmarkPutGet(b *testing.B) {
	c, _ := New(Options{Size: 1024, TTL: time.Minute})
	keys := make([]string, 4096)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := keys[i%len(keys)]
		if _, ok := c.Get(k); !ok {
			c.Put(k, i)
		}
	}
}
