package snapshot

import "sync"

// MemStore is an in-memory Store for tests and dry runs.
type MemStore struct {
	mu      sync.RWMutex
	entries map[Key]string
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[Key]string)}
}

func (s *MemStore) Get(key Key) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *MemStore) Put(key Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		s.entries[key] = value
	}
	return nil
}

func (s *MemStore) Update(key Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

// Len reports the number of stored golden values.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
