package shared

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExpectNoStream is the expected version that asks the log to start a new stream
const ExpectNoStream int64 = 0

// PendingEvent is an event ready to be appended: its kind tag and encoded payload
type PendingEvent struct {
	ID   uuid.UUID
	Kind string
	Data json.RawMessage
}

// CommittedEvent is an event as durably recorded by the log, with its provenance
type CommittedEvent struct {
	ID            uuid.UUID
	StreamID      uuid.UUID
	Version       int64
	Sequence      int64
	Timestamp     time.Time
	TenantID      string
	CausationID   string
	CorrelationID string
	Headers       map[string]any
	Kind          string
	Data          json.RawMessage
}

// EventLog is the durable append-only store of per-stream event sequences.
// Every committed event also receives a gap-free global sequence number that
// defines the total order across streams.
type EventLog interface {
	// Append commits events atomically after expectedVersion and returns the new
	// stream version. ExpectNoStream starts a new stream and fails with
	// ErrStreamAlreadyExists if one exists; any other mismatch fails with
	// ErrConcurrencyConflict.
	Append(ctx context.Context, streamID uuid.UUID, expectedVersion int64, events []PendingEvent) (int64, error)

	// ReadStream returns the stream's events in version order, or ErrNotFound
	ReadStream(ctx context.Context, streamID uuid.UUID) ([]CommittedEvent, error)

	// ReadCommitRange returns events with floor < sequence <= ceiling in sequence order
	ReadCommitRange(ctx context.Context, floor, ceiling int64) ([]CommittedEvent, error)

	// HighWaterMark returns the highest committed sequence, 0 when empty
	HighWaterMark(ctx context.Context) (int64, error)
}

// CheckpointStore records how far a named projector has processed the commit log
type CheckpointStore interface {
	// Load returns the stored position and whether one exists
	Load(ctx context.Context, name string) (int64, bool, error)
	// Save durably records position for name
	Save(ctx context.Context, name string, position int64) error
}
