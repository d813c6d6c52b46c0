// Package memstore is an in-memory quota.Store for unit tests and
// single-process use, mirroring breaker/store/memstore's shape.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/distbreaker/quota"
)

var _ quota.Store = (*Store)(nil)

type cycle struct {
	count     int64
	expiresAt int64
}

// Store is an in-memory quota.Store. The zero value is not usable; use New.
type Store struct {
	mu     sync.Mutex
	cycles map[string]*cycle
	clock  func() int64
}

// New returns an empty in-memory store backed by time.Now for cycle resets.
func New() *Store {
	return &Store{
		cycles: make(map[string]*cycle),
		clock:  func() int64 { return time.Now().Unix() },
	}
}

func (s *Store) IncrementAndGet(ctx context.Context, key string, period time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	c, ok := s.cycles[key]
	if !ok || now >= c.expiresAt {
		// Round a sub-second period up to one second, as quota/redisstore
		// does, so the cycle does not end the moment it starts.
		secs := int64(period / time.Second)
		if secs <= 0 {
			secs = 1
		}
		c = &cycle{expiresAt: now + secs}
		s.cycles[key] = c
	}
	c.count++
	return c.count, nil
}
