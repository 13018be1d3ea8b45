package organisation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one line of an entity's human readable audit trail
type HistoryEntry struct {
	EventID     uuid.UUID
	EntityID    uuid.UUID
	Sequence    int64
	Kind        EventKind
	Description string
	OccurredAt  time.Time
}

// NewHistoryEntry describes a committed event
func NewHistoryEntry(eventID uuid.UUID, sequence int64, occurredAt time.Time, evt Event) HistoryEntry {
	desc := Describe(evt.Kind())
	if xe, ok := evt.(ExtractEvent); ok {
		desc = fmt.Sprintf("%s with ID %s", desc, xe.TargetExtractID())
	} else {
		desc = fmt.Sprintf("%s with ID %s", desc, evt.AggregateID())
	}
	return HistoryEntry{
		EventID:     eventID,
		EntityID:    evt.AggregateID(),
		Sequence:    sequence,
		Kind:        evt.Kind(),
		Description: fmt.Sprintf("%s at %s", desc, occurredAt.UTC().Format(time.RFC3339)),
		OccurredAt:  occurredAt,
	}
}

// HistoryRepository stores the entity history read model
type HistoryRepository interface {
	// Record stores an entry; recording the same event twice is a no-op
	Record(ctx context.Context, entry HistoryEntry) error
	// ListByEntity returns an entity's entries in commit order
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]HistoryEntry, error)
}
