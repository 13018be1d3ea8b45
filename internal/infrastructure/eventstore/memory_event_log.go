package eventstore

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/domain/shared"
)

// InMemoryEventLog implements shared.EventLog in process memory.
// This is suitable for single-instance deployments and testing.
type InMemoryEventLog struct {
	mu      sync.RWMutex
	streams map[uuid.UUID][]shared.CommittedEvent
	log     []shared.CommittedEvent
	now     func() time.Time
}

// NewInMemoryEventLog creates an empty in-memory event log
func NewInMemoryEventLog() *InMemoryEventLog {
	return &InMemoryEventLog{
		streams: make(map[uuid.UUID][]shared.CommittedEvent),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Append commits events atomically after expectedVersion
func (l *InMemoryEventLog) Append(ctx context.Context, streamID uuid.UUID, expectedVersion int64, events []shared.PendingEvent) (int64, error) {
	if len(events) == 0 {
		return expectedVersion, shared.NewDomainError(shared.CodeInvalidInput, "nothing to append")
	}
	if err := ctx.Err(); err != nil {
		return expectedVersion, err
	}
	md := shared.EventMetadataFromContext(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	stream, exists := l.streams[streamID]
	current := int64(len(stream))
	if expectedVersion == shared.ExpectNoStream && exists {
		return expectedVersion, shared.ErrStreamAlreadyExists
	}
	if current != expectedVersion {
		return expectedVersion, shared.ErrConcurrencyConflict
	}

	now := l.now()
	seq := int64(len(l.log))
	for i, evt := range events {
		id := evt.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		committed := shared.CommittedEvent{
			ID:            id,
			StreamID:      streamID,
			Version:       expectedVersion + int64(i) + 1,
			Sequence:      seq + int64(i) + 1,
			Timestamp:     now,
			TenantID:      md.TenantID,
			CausationID:   md.CausationID,
			CorrelationID: md.CorrelationID,
			Headers:       maps.Clone(md.Headers),
			Kind:          evt.Kind,
			Data:          append([]byte(nil), evt.Data...),
		}
		stream = append(stream, committed)
		l.log = append(l.log, committed)
	}
	l.streams[streamID] = stream

	return expectedVersion + int64(len(events)), nil
}

// ReadStream returns the stream's events in version order
func (l *InMemoryEventLog) ReadStream(ctx context.Context, streamID uuid.UUID) ([]shared.CommittedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	stream, ok := l.streams[streamID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return append([]shared.CommittedEvent(nil), stream...), nil
}

// ReadCommitRange returns events with floor < sequence <= ceiling
func (l *InMemoryEventLog) ReadCommitRange(ctx context.Context, floor, ceiling int64) ([]shared.CommittedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	if floor < 0 {
		floor = 0
	}
	if ceiling > int64(len(l.log)) {
		ceiling = int64(len(l.log))
	}
	if ceiling <= floor {
		return nil, nil
	}
	// sequence n lives at index n-1
	out := append([]shared.CommittedEvent(nil), l.log[floor:ceiling]...)
	return out, nil
}

// HighWaterMark returns the highest committed sequence
func (l *InMemoryEventLog) HighWaterMark(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.log)), nil
}

// Ensure InMemoryEventLog implements EventLog
var _ shared.EventLog = (*InMemoryEventLog)(nil)
