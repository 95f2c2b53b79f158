package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Store holds one token bucket per principal key. Implementations must make
// GetOrCreate atomic per key: concurrent first requests for the same key
// share a single bucket.
type Store interface {
	GetOrCreate(key string, create func() *rate.Limiter) *rate.Limiter
	Len() int
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryStore keeps buckets for the life of the process. With a positive
// idleTTL, buckets untouched for that long are swept once the map grows past
// sweepThreshold.
type MemoryStore struct {
	mu             sync.RWMutex
	buckets        map[string]*entry
	idleTTL        time.Duration
	sweepThreshold int
	now            func() time.Time
}

const defaultSweepThreshold = 1000

func NewMemoryStore(idleTTL time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}

	return &MemoryStore{
		buckets:        map[string]*entry{},
		idleTTL:        idleTTL,
		sweepThreshold: defaultSweepThreshold,
		now:            now,
	}
}

func (s *MemoryStore) GetOrCreate(key string, create func() *rate.Limiter) *rate.Limiter {
	if s.idleTTL <= 0 {
		// No eviction means lastSeen is never read; stay on the read lock.
		s.mu.RLock()
		e, ok := s.buckets[key]
		s.mu.RUnlock()
		if ok {
			return e.limiter
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.buckets[key]; ok {
		e.lastSeen = now
		return e.limiter
	}

	created := &entry{limiter: create(), lastSeen: now}
	s.buckets[key] = created
	s.sweepLocked(now)

	return created.limiter
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buckets)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	if s.idleTTL <= 0 || len(s.buckets) < s.sweepThreshold {
		return
	}

	cutoff := now.Add(-s.idleTTL)
	for key, e := range s.buckets {
		if e.lastSeen.Before(cutoff) {
			delete(s.buckets, key)
		}
	}
}
