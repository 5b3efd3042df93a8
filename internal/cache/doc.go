// Package cache implements the in-process rate cache: a fixed capacity
// least recently used cache with lazy, read time expiration.
//
// Get and Put are O(1). Expired entries are reported as misses but are
// not removed on read; they leave the cache through LRU eviction, an
// overwrite, or Flush. There are no background goroutines.
package cache
