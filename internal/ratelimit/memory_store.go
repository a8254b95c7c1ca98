package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local CounterStore.
type MemoryStore struct {
	now func() time.Time

	mu       sync.Mutex
	counters map[string]memCounter
}

type memCounter struct {
	count   int64
	resetAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, counters: make(map[string]memCounter)}
}

func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return 0, time.Time{}, err
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = memCounter{resetAt: now.Add(window)}
	}
	c.count++
	s.counters[key] = c
	return c.count, c.resetAt, nil
}

// Sweep forgets expired windows.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, c := range s.counters {
		if !now.Before(c.resetAt) {
			delete(s.counters, key)
			removed++
		}
	}
	return removed
}
