package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	count     int64
	expiresAt time.Time
}

// MemoryStore is an in-memory Cache implementation.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[string]memoryEntry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]memoryEntry),
		nowF: time.Now().UTC,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = memoryEntry{value: value, expiresAt: s.nowF().Add(ttl)}
	return nil
}

func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		e = memoryEntry{expiresAt: s.nowF().Add(ttl)}
	}
	e.count++
	s.m[key] = e
	return e.count, nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		return 0, nil
	}
	return e.expiresAt.Sub(s.nowF()), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// live returns the entry for key, dropping it when expired. Caller holds mu.
func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := s.m[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.After(s.nowF()) {
		delete(s.m, key)
		return memoryEntry{}, false
	}
	return e, true
}
