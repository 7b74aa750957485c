package store

import (
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory implementation of the ModelStore interface.
// Artifacts live only for the lifetime of the process.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string][]byte
}

// NewMemoryStore creates a new in-memory model store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: make(map[string][]byte),
	}
}

// Load retrieves an artifact by key
func (s *MemoryStore) Load(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.artifacts[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Save stores an artifact under the given key
func (s *MemoryStore) Save(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.artifacts[key] = append([]byte(nil), data...)
	return nil
}

// List returns all stored keys with the given prefix
func (s *MemoryStore) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := []string{}
	for key := range s.artifacts {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
