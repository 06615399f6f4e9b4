package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	consumed     int
	resetAt      time.Time
	blockedUntil time.Time
}

// MemoryStore is an in-process CounterStore. It is only shared within one process
// so it suits tests and single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore builds an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry), now: time.Now}
}

// WithClock overrides the time source; used by tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// Consume implements CounterStore.
func (s *MemoryStore) Consume(ctx context.Context, key string, p Policy) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := p.Name + ":" + key
	e, ok := s.entries[id]
	if !ok {
		e = &memoryEntry{}
		s.entries[id] = e
	}

	if now.Before(e.blockedUntil) {
		return Usage{Consumed: p.Points + 1, Blocked: true, ResetIn: e.blockedUntil.Sub(now)}, nil
	}
	if !now.Before(e.resetAt) {
		e.consumed = 0
		e.resetAt = now.Add(p.Window)
	}

	e.consumed++
	if e.consumed > p.Points && p.Block > 0 {
		e.blockedUntil = now.Add(p.Block)
		e.consumed = 0
		e.resetAt = time.Time{}
		return Usage{Consumed: p.Points + 1, Blocked: true, ResetIn: p.Block}, nil
	}
	return Usage{Consumed: e.consumed, ResetIn: e.resetAt.Sub(now)}, nil
}

// Run evicts expired entries every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, e := range s.entries {
		if !now.Before(e.resetAt) && !now.Before(e.blockedUntil) {
			delete(s.entries, id)
		}
	}
}

// Len reports the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
