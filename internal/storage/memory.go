package storage

import (
	"context"
	"sort"
	"sync"
)

type memoryObject struct {
	data []byte
	meta Metadata
}

// MemoryStorage keeps objects in process memory. Contents are lost on restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]memoryObject)}
}

// List returns the stored keys in sorted order.
func (s *MemoryStorage) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes key. Removing a missing key is not an error.
func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	return nil
}

// Put stores a copy of data together with meta under key.
func (s *MemoryStorage) Put(_ context.Context, key string, data []byte, meta Metadata) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = memoryObject{data: buf, meta: meta}
	return nil
}

// Get returns a copy of the payload stored under key.
func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, nil
}

// GetMetadata returns the metadata stored under key.
func (s *MemoryStorage) GetMetadata(_ context.Context, key string) (Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return Metadata{}, ErrNotFound
	}
	return obj.meta, nil
}
