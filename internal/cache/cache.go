package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"fxq/internal/logger"
)

// Defaults used when Options fields are left zero by config loading.
const (
	DefaultSize = 2
	DefaultTTL  = 5 * time.Minute
)

// nilHandle marks the absence of a neighbour in the recency list.
const nilHandle = -1

// ErrInvalidConfiguration is returned by New for a non-positive size or a negative TTL
var ErrInvalidConfiguration = errors.New("cache: invalid configuration")

// Options configures a Cache. Both values are fixed for the cache's lifetime.
type Options struct {
	// Size is the maximum number of resident entries. Must be >= 1.
	Size int
	// TTL is how long an entry stays fresh after it was written.
	// Zero disables expiration.
	TTL time.Duration
}

// Entry is a cache hit as seen by callers
type Entry struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// EntryInfo describes a resident entry for inspection
type EntryInfo struct {
	Key       string        `json:"key"`
	Value     any           `json:"value"`
	Timestamp time.Time     `json:"timestamp"`
	Age       time.Duration `json:"age"`
	Expired   bool          `json:"expired"`
}

// Stats represents cache statistics
type Stats struct {
	Capacity  int           `json:"capacity"`
	Entries   int           `json:"entries"`
	TTL       time.Duration `json:"ttl"`
	Hits      uint64        `json:"hits"`
	Misses    uint64        `json:"misses"`
	Expired   uint64        `json:"expired"`
	Evictions uint64        `json:"evictions"`
}

// node is an arena slot. prev points towards the head, next towards the tail.
type node struct {
	key       string
	value     any
	timestamp time.Time
	prev      int
	next      int
}

// Cache is a fixed capacity LRU cache with lazy per-entry expiration.
//
// Entries live in an arena slice addressed by integer handles and the
// recency list is threaded through the arena as prev/next handles.
// The arena never holds more than Size slots.
//
// Reads mutate recency, so every operation takes the same mutex.
type Cache struct {
	mu sync.Mutex

	size int
	ttl  time.Duration

	nodes []node
	index map[string]int
	head  int
	tail  int

	now func() time.Time

	hits      uint64
	misses    uint64
	expired   uint64
	evictions uint64
}

// New creates a new cache. It fails with ErrInvalidConfiguration if
// opts.Size < 1 or opts.TTL < 0.
func New(opts Options) (*Cache, error) {
	if opts.Size < 1 {
		return nil, fmt.Errorf("%w: size must be at least 1, got %d", ErrInvalidConfiguration, opts.Size)
	}
	if opts.TTL < 0 {
		return nil, fmt.Errorf("%w: ttl must be 0 (disabled) or positive, got %s", ErrInvalidConfiguration, opts.TTL)
	}

	logger.Debugf("Initializing LRU cache with size=%d ttl=%s", opts.Size, opts.TTL)

	return &Cache{
		size:  opts.Size,
		ttl:   opts.TTL,
		nodes: make([]node, 0, opts.Size),
		index: make(map[string]int, opts.Size),
		head:  nilHandle,
		tail:  nilHandle,
		now:   time.Now,
	}, nil
}

// Get returns the entry stored under key.
//
// An entry older than the TTL is reported as a miss but stays resident and
// keeps its list position; it leaves the cache through normal LRU eviction,
// a Put on the same key, or Flush.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.index[key]
	if !ok {
		c.misses++
		return Entry{}, false
	}

	n := &c.nodes[h]
	if c.isExpired(n, c.now()) {
		c.expired++
		c.misses++
		logger.Debugf("Item with key %s found in cache but it's expired", key)
		return Entry{}, false
	}

	c.moveToHead(h)
	c.hits++
	return Entry{Key: n.key, Value: n.value, Timestamp: n.timestamp}, true
}

// Put stores value under key. Overwriting an existing key, expired or not,
// refreshes its timestamp and makes it the most recently used entry.
// Inserting a new key into a full cache evicts the least recently used entry.
func (c *Cache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if h, ok := c.index[key]; ok {
		n := &c.nodes[h]
		n.value = value
		n.timestamp = now
		c.moveToHead(h)
		return
	}

	var h int
	if len(c.nodes) < c.size {
		c.nodes = append(c.nodes, node{})
		h = len(c.nodes) - 1
	} else {
		h = c.evictTail()
	}

	c.nodes[h] = node{
		key:       key,
		value:     value,
		timestamp: now,
		prev:      nilHandle,
		next:      nilHandle,
	}
	c.index[key] = h
	c.pushHead(h)
}

// Flush removes every entry. Size and TTL are kept.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.nodes)
	c.nodes = c.nodes[:0]
	clear(c.index)
	c.head = nilHandle
	c.tail = nilHandle
	logger.Debugf("Flushing LRU cache")
}

// Len returns the number of resident entries, expired ones included
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Capacity returns the configured size
func (c *Cache) Capacity() int { return c.size }

// TTL returns the configured time to live
func (c *Cache) TTL() time.Duration { return c.ttl }

// Stats returns cache statistics
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Capacity:  c.size,
		Entries:   len(c.index),
		TTL:       c.ttl,
		Hits:      c.hits,
		Misses:    c.misses,
		Expired:   c.expired,
		Evictions: c.evictions,
	}
}

// Entries returns a snapshot of the resident entries from most to least
// recently used. It does not affect recency.
func (c *Cache) Entries() []EntryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]EntryInfo, 0, len(c.index))
	for h := c.head; h != nilHandle; h = c.nodes[h].next {
		n := &c.nodes[h]
		out = append(out, EntryInfo{
			Key:       n.key,
			Value:     n.value,
			Timestamp: n.timestamp,
			Age:       now.Sub(n.timestamp),
			Expired:   c.isExpired(n, now),
		})
	}
	return out
}

func (c *Cache) isExpired(n *node, now time.Time) bool {
	return c.ttl > 0 && now.Sub(n.timestamp) > c.ttl
}

// moveToHead promotes h to most recently used. No-op if h is already head.
func (c *Cache) moveToHead(h int) {
	if h == c.head {
		return
	}
	c.unlink(h)
	c.pushHead(h)
}

// pushHead links a detached node in front of the current head
func (c *Cache) pushHead(h int) {
	n := &c.nodes[h]
	n.prev = nilHandle
	n.next = c.head
	if c.head != nilHandle {
		c.nodes[c.head].prev = h
	}
	c.head = h
	if c.tail == nilHandle {
		c.tail = h
	}
}

// unlink detaches h from the list, patching its neighbours and head/tail
func (c *Cache) unlink(h int) {
	n := &c.nodes[h]
	if n.prev != nilHandle {
		c.nodes[n.prev].next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nilHandle {
		c.nodes[n.next].prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev = nilHandle
	n.next = nilHandle
}

// evictTail removes the least recently used entry from the list and the
// index and returns its now free slot
func (c *Cache) evictTail() int {
	h := c.tail
	key := c.nodes[h].key
	c.unlink(h)
	delete(c.index, key)
	c.nodes[h] = node{prev: nilHandle, next: nilHandle}
	c.evictions++
	logger.Debugf("Deleted key %s from cache", key)
	return h
}
