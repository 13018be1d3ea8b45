package organisation

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/domain/organisation"
	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/internal/infrastructure/eventstore"
	"github.com/orgextract/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

// memoryHistory is an in-memory HistoryRepository
type memoryHistory struct {
	mu      sync.Mutex
	entries map[uuid.UUID]organisation.HistoryEntry
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{entries: make(map[uuid.UUID]organisation.HistoryEntry)}
}

func (h *memoryHistory) Record(ctx context.Context, entry organisation.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.entries[entry.EventID]; !ok {
		h.entries[entry.EventID] = entry
	}
	return nil
}

func (h *memoryHistory) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]organisation.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []organisation.HistoryEntry
	for _, e := range h.entries {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b organisation.HistoryEntry) int { return int(a.Sequence - b.Sequence) })
	return out, nil
}

// conflictingRepo fails the first n GetAndUpdate calls with a concurrency conflict
type conflictingRepo struct {
	organisation.Repository
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (r *conflictingRepo) GetAndUpdate(ctx context.Context, id uuid.UUID, mutate organisation.Mutation, opts ...organisation.UpdateOption) (*organisation.Entity, error) {
	r.mu.Lock()
	r.calls++
	fail := r.calls <= r.conflicts
	r.mu.Unlock()
	if fail {
		return nil, shared.ErrConcurrencyConflict
	}
	return r.Repository.GetAndUpdate(ctx, id, mutate, opts...)
}

// stubRisk is a RiskDataService that records its calls
type stubRisk struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (s *stubRisk) FetchRiskReport(ctx context.Context, entityID, extractID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, extractID)
	return s.err
}

// stubAsic is an AsicDataService that hands out a fixed order id
type stubAsic struct {
	mu      sync.Mutex
	orderID int64
	created []string
	fetched []int64
	err     error
}

func (s *stubAsic) CreateOrder(ctx context.Context, extractID uuid.UUID, acn string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.created = append(s.created, acn)
	return s.orderID, nil
}

func (s *stubAsic) FetchOrder(ctx context.Context, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, orderID)
	return s.err
}

func testRetrier() *Retrier {
	policy := DefaultRetryPolicy()
	policy.BaseBackoff = 0
	policy.MaxBackoff = 0
	return NewRetrier(policy, nil, zap.NewNop())
}

func newTestRepo() (*persistence.EventSourcedOrganisationRepository, *eventstore.InMemoryEventLog) {
	log := eventstore.NewInMemoryEventLog()
	return persistence.NewEventSourcedOrganisationRepository(log, zap.NewNop()), log
}

var fixedTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
