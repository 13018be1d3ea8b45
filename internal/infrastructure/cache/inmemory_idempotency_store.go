package cache

import (
	"context"
	"sync"
	"time"

	"github.com/orgextract/backend/internal/domain/shared"
)

const defaultSweepInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps processed-message markers in a map.
// Markers are not shared between processes, so it only suits a single
// instance or tests.
type InMemoryIdempotencyStore struct {
	mu        sync.Mutex
	markers   map[string]time.Time
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates the store and starts the sweeper that
// drops expired markers
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return newInMemoryIdempotencyStore(defaultSweepInterval, time.Now)
}

func newInMemoryIdempotencyStore(sweep time.Duration, now func() time.Time) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		markers:  make(map[string]time.Time),
		now:      now,
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop(sweep)
	return s
}

// MarkProcessed claims messageID until ttl elapses. It returns false when a
// live marker already exists.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, ok := s.markers[messageID]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.markers[messageID] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether a live marker exists for messageID
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.markers[messageID]
	return ok && s.now().Before(expiresAt), nil
}

// Unmark removes the marker for messageID
func (s *InMemoryIdempotencyStore) Unmark(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, messageID)
	return nil
}

// Close stops the sweeper. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of markers held, expired ones included
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}

func (s *InMemoryIdempotencyStore) sweepLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, expiresAt := range s.markers {
		if !now.Before(expiresAt) {
			delete(s.markers, id)
		}
	}
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
