package guard

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*counter), now: time.Now}
}

// live returns the unexpired counter for key, dropping it when stale.
func (s *MemoryStore) live(key string) *counter {
	c, ok := s.counters[key]
	if !ok {
		return nil
	}
	if !s.now().Before(c.resetAt) {
		delete(s.counters, key)
		return nil
	}
	return c
}

func (s *MemoryStore) Attempt(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.live(key)
	if c == nil {
		c = &counter{resetAt: s.now().Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, c.resetAt.Sub(s.now()), nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.live(key); c != nil && c.count > 0 {
		c.count--
	}
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
	return nil
}

// Prune drops counters whose window has ended and returns how many were
// removed.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, c := range s.counters {
		if !now.Before(c.resetAt) {
			delete(s.counters, k)
			n++
		}
	}
	return n
}
