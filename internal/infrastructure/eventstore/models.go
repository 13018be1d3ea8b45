package eventstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/domain/shared"
	"gorm.io/datatypes"
)

// StreamModel tracks the current version of each stream
type StreamModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Version   int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StreamModel) TableName() string {
	return "event_streams"
}

// EventModel is one committed event row
type EventModel struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	StreamID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_events_stream_version,priority:1"`
	Version       int64          `gorm:"not null;uniqueIndex:idx_events_stream_version,priority:2"`
	Sequence      int64          `gorm:"not null;uniqueIndex:idx_events_sequence"`
	Kind          string         `gorm:"type:varchar(128);not null"`
	Data          datatypes.JSON `gorm:"type:jsonb;not null"`
	Headers       datatypes.JSON `gorm:"type:jsonb"`
	TenantID      string         `gorm:"type:varchar(64)"`
	CausationID   string         `gorm:"type:varchar(128)"`
	CorrelationID string         `gorm:"type:varchar(128)"`
	CommittedAt   time.Time      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EventModel) TableName() string {
	return "events"
}

// ToCommitted converts the row to its domain form
func (m *EventModel) ToCommitted() (shared.CommittedEvent, error) {
	evt := shared.CommittedEvent{
		ID:            m.ID,
		StreamID:      m.StreamID,
		Version:       m.Version,
		Sequence:      m.Sequence,
		Timestamp:     m.CommittedAt.UTC(),
		TenantID:      m.TenantID,
		CausationID:   m.CausationID,
		CorrelationID: m.CorrelationID,
		Kind:          m.Kind,
		Data:          json.RawMessage(m.Data),
	}
	if len(m.Headers) > 0 {
		if err := json.Unmarshal(m.Headers, &evt.Headers); err != nil {
			return shared.CommittedEvent{}, err
		}
	}
	return evt, nil
}

// CheckpointModel stores a projector's position in the commit log
type CheckpointModel struct {
	Name      string    `gorm:"type:varchar(128);primaryKey"`
	Position  int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CheckpointModel) TableName() string {
	return "projection_checkpoints"
}

// Models lists every table owned by this package, for AutoMigrate in tests
func Models() []any {
	return []any{&StreamModel{}, &EventModel{}, &CheckpointModel{}}
}
