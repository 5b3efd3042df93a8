package cache

// Service defines the interface for cache operations
type Service interface {
	Get(key string) (Entry, bool)
	Put(key string, value any)
	Flush()
	Len() int
	Stats() Stats
	Entries() []EntryInfo
}

// Ensure Cache implements Service
var _ Service = (*Cache)(nil)
