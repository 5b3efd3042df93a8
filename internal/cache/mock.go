package cache

import (
	"sync"
	"time"
)

// MockService is a simple unbounded in-memory cache for testing callers.
// It never expires or evicts and records every key passed to Get and Put.
type MockService struct {
	mu    sync.Mutex
	data  map[string]Entry
	order []string
	stats Stats

	GetCalls []string
	PutCalls []string
}

// NewMockService creates a new mock cache service
func NewMockService() *MockService {
	return &MockService{
		data: make(map[string]Entry),
	}
}

func (m *MockService) Get(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls = append(m.GetCalls, key)
	entry, exists := m.data[key]
	if !exists {
		m.stats.Misses++
		return Entry{}, false
	}
	m.stats.Hits++
	return entry, true
}

func (m *MockService) Put(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutCalls = append(m.PutCalls, key)
	if _, exists := m.data[key]; !exists {
		m.order = append(m.order, key)
	}
	m.data[key] = Entry{Key: key, Value: value, Timestamp: time.Now()}
}

// Seed stores an entry with an explicit timestamp without recording a call
func (m *MockService) Seed(key string, value any, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; !exists {
		m.order = append(m.order, key)
	}
	m.data[key] = Entry{Key: key, Value: value, Timestamp: ts}
}

func (m *MockService) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]Entry)
	m.order = nil
	m.stats = Stats{}
}

func (m *MockService) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *MockService) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats
	s.Entries = len(m.data)
	return s
}

func (m *MockService) Entries() []EntryInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	out := make([]EntryInfo, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		e := m.data[m.order[i]]
		out = append(out, EntryInfo{Key: e.Key, Value: e.Value, Timestamp: e.Timestamp, Age: now.Sub(e.Timestamp)})
	}
	return out
}

var _ Service = (*MockService)(nil)
