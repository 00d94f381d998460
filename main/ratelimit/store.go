package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Store keeps one token bucket per key and forgets keys that stay idle.
type Store struct {
	mu           sync.Mutex
	entries      map[string]*storeEntry
	limit        rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	clock        clockwork.Clock
}

type storeEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

func WithClock(c clockwork.Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

// NewStore allows max events per window with a burst of max.
func NewStore(max int, window time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		entries:      make(map[string]*storeEntry),
		limit:        perWindow(max, window),
		burst:        max,
		idleTTL:      window,
		cleanupEvery: 2 * time.Minute,
		clock:        clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.idleTTL < window {
		s.idleTTL = window
	}
	return s
}

func perWindow(max int, window time.Duration) rate.Limit {
	if max <= 0 || window <= 0 {
		return 0
	}
	return rate.Limit(float64(max) / window.Seconds())
}

func (s *Store) Burst() int { return s.burst }

func (s *Store) Get(key string) *rate.Limiter {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.limit, s.burst)
	s.entries[key] = &storeEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) Cleanup() {
	cutoff := s.clock.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor drops idle keys periodically until ctx is done. The returned
// channel is closed when the goroutine exits.
func (s *Store) StartJanitor(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if s.cleanupEvery <= 0 {
		close(done)
		return done
	}

	t := s.clock.NewTicker(s.cleanupEvery)
	go func() {
		defer close(done)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.Chan():
				s.Cleanup()
			}
		}
	}()
	return done
}
