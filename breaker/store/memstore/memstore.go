// Package memstore is a single-process, in-memory reference implementation
// of store.Store. It satisfies the same contract as a Redis-backed store and
// is used in unit tests and for embedding a breaker in a single sidecar
// process that does not need cluster-wide coordination.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/distbreaker/breaker/store"
)

type bucket struct {
	successes int64
	failures  int64
	expiresAt int64 // unix seconds, 0 means never set yet
}

type latch struct {
	state     store.State
	expiresAt int64 // 0 means no TTL
}

type ramp struct {
	percent   int
	expiresAt int64
}

type probe struct {
	count     int
	expiresAt int64 // 0 means no TTL armed yet
}

var _ store.Store = (*Store)(nil)

// Store is an in-memory store.Store. The zero value is not usable; use New.
type Store struct {
	mu      sync.Mutex
	buckets map[string]map[int64]*bucket
	latches map[string]*latch
	probes  map[string]*probe
	ramps   map[string]*ramp
	clock   func() int64
}

// New returns an empty in-memory store backed by time.Now for TTL expiry.
func New() *Store {
	return &Store{
		buckets: make(map[string]map[int64]*bucket),
		latches: make(map[string]*latch),
		probes:  make(map[string]*probe),
		ramps:   make(map[string]*ramp),
		clock:   func() int64 { return time.Now().Unix() },
	}
}

func (s *Store) Record(ctx context.Context, key string, success bool, timestamp int64, window, bucketWidth time.Duration) error {
	epoch := store.Align(timestamp, bucketWidth)

	s.mu.Lock()
	defer s.mu.Unlock()

	buckets, ok := s.buckets[key]
	if !ok {
		buckets = make(map[int64]*bucket)
		s.buckets[key] = buckets
	}

	b, ok := buckets[epoch]
	if !ok {
		b = &bucket{}
		buckets[epoch] = b
	}
	if success {
		b.successes++
	} else {
		b.failures++
	}
	b.expiresAt = s.clock() + int64((window+bucketWidth)/time.Second)

	s.evictExpiredBucketsLocked(key)
	return nil
}

func (s *Store) ReadWindow(ctx context.Context, key string, now int64, window, bucketWidth time.Duration) (int64, int64, error) {
	lo := store.Align(now-int64(window/time.Second), bucketWidth)
	hi := store.Align(now, bucketWidth)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredBucketsLocked(key)

	var successes, failures int64
	for epoch, b := range s.buckets[key] {
		if epoch < lo || epoch > hi {
			continue
		}
		successes += b.successes
		failures += b.failures
	}
	return successes, failures, nil
}

func (s *Store) ReadLatch(ctx context.Context, key string) (store.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.latches[key]
	if !ok {
		return store.StateClosed, false, nil
	}
	if l.expiresAt > 0 && s.clock() >= l.expiresAt {
		delete(s.latches, key)
		return store.StateClosed, false, nil
	}
	return l.state, true, nil
}

func (s *Store) SetLatch(ctx context.Context, key string, state store.State, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.clock() + ttlSeconds(ttl)
	}
	s.latches[key] = &latch{state: state, expiresAt: expiresAt}
	return nil
}

func (s *Store) TryAcquireProbe(ctx context.Context, key string, maxProbes int, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.liveProbeLocked(key)
	p.count++
	if p.count == 1 {
		p.expiresAt = s.clock() + ttlSeconds(ttl)
	}
	if p.count > maxProbes {
		p.count--
		return false, nil
	}
	return true, nil
}

func (s *Store) ReleaseProbe(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.liveProbeLocked(key)
	p.count--
	return nil
}

// liveProbeLocked returns key's probe counter, resetting it first if it has
// expired or never existed, so a caller that acquired a probe and crashed
// before releasing it doesn't wedge the key forever. Caller must hold s.mu.
func (s *Store) liveProbeLocked(key string) *probe {
	p, ok := s.probes[key]
	if !ok || (p.expiresAt > 0 && s.clock() >= p.expiresAt) {
		p = &probe{}
		s.probes[key] = p
	}
	return p
}

func (s *Store) ReadRamp(ctx context.Context, key string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.ramps[key]
	if !ok {
		return 0, false, nil
	}
	if r.expiresAt > 0 && s.clock() >= r.expiresAt {
		delete(s.ramps, key)
		return 0, false, nil
	}
	return r.percent, true, nil
}

func (s *Store) SetRamp(ctx context.Context, key string, percent int, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.clock() + ttlSeconds(ttl)
	}
	s.ramps[key] = &ramp{percent: percent, expiresAt: expiresAt}
	return nil
}

// ttlSeconds converts ttl to whole seconds for the second-resolution clock,
// rounding a sub-second ttl up to one second (as redisstore does for the
// probe counter) so a short TTL does not expire the moment it is written.
func ttlSeconds(ttl time.Duration) int64 {
	secs := int64(ttl / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return secs
}

// evictExpiredBucketsLocked drops buckets past their TTL. Caller must hold s.mu.
func (s *Store) evictExpiredBucketsLocked(key string) {
	buckets, ok := s.buckets[key]
	if !ok {
		return
	}
	now := s.clock()
	for epoch, b := range buckets {
		if b.expiresAt > 0 && now >= b.expiresAt {
			delete(buckets, epoch)
		}
	}
}
