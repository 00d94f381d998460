package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"lumigente_backend/main/metrics"
	"lumigente_backend/users/access"
)

var ErrNotFound = errors.New("session not found")

// Data is what the server keeps per session id.
type Data struct {
	User      *access.User `json:"user"`
	CreatedAt time.Time    `json:"createdAt"`
	LastSeen  time.Time    `json:"lastSeen"`
}

type Store interface {
	Get(ctx context.Context, id string) (*Data, error)
	Save(ctx context.Context, id string, data *Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	data      Data
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory, expiring them after their TTL.
type MemoryStore struct {
	mu           sync.Mutex
	entries      map[string]memoryEntry
	clock        clockwork.Clock
	cleanupEvery time.Duration
}

type MemoryOption func(*MemoryStore)

func WithClock(c clockwork.Clock) MemoryOption {
	return func(s *MemoryStore) { s.clock = c }
}

func WithCleanupEvery(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:      make(map[string]memoryEntry),
		clock:        clockwork.NewRealClock(),
		cleanupEvery: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.clock.Now().Before(ent.expiresAt) {
		delete(s.entries, id)
		metrics.SessionsActive.Set(float64(len(s.entries)))
		return nil, ErrNotFound
	}
	data := ent.data
	if data.User != nil {
		u := *data.User
		data.User = &u
	}
	return &data, nil
}

func (s *MemoryStore) Save(ctx context.Context, id string, data *Data, ttl time.Duration) error {
	if data == nil {
		return errors.New("session: nil data")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *data
	if copied.User != nil {
		u := *copied.User
		copied.User = &u
	}
	s.entries[id] = memoryEntry{data: copied, expiresAt: s.clock.Now().Add(ttl)}
	metrics.SessionsActive.Set(float64(len(s.entries)))
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	metrics.SessionsActive.Set(float64(len(s.entries)))
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup drops expired sessions and returns how many were removed.
func (s *MemoryStore) Cleanup() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, ent := range s.entries {
		if !now.Before(ent.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	metrics.SessionsActive.Set(float64(len(s.entries)))
	return removed
}

// StartJanitor cleans expired sessions periodically until ctx is done. The
// returned channel is closed when the goroutine exits.
func (s *MemoryStore) StartJanitor(ctx context.Context) <-chan struct{} {
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
