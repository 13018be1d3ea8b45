package shared

import (
	"time"

	"github.com/google/uuid"
)

// Envelope is the provenance of an integration message. Every field is copied
// verbatim from the committed event the message was projected from.
type Envelope struct {
	ID            uuid.UUID      `json:"id"`
	Kind          string         `json:"kind"`
	StreamID      uuid.UUID      `json:"stream_id"`
	Version       int64          `json:"version"`
	Sequence      int64          `json:"sequence"`
	Timestamp     time.Time      `json:"timestamp"`
	TenantID      string         `json:"tenant_id,omitempty"`
	CausationID   string         `json:"causation_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Headers       map[string]any `json:"headers,omitempty"`
}

// Message is an outbound integration message
type Message interface {
	Meta() Envelope
	Payload() any
}

// IntegrationMessage is the typed envelope published for one committed event
type IntegrationMessage[T any] struct {
	Envelope
	Data T `json:"data"`
}

// Meta returns the message provenance
func (m *IntegrationMessage[T]) Meta() Envelope {
	return m.Envelope
}

// Payload returns the event payload
func (m *IntegrationMessage[T]) Payload() any {
	return m.Data
}

// MessageData extracts a typed payload from a message
func MessageData[T any](msg Message) (T, bool) {
	data, ok := msg.Payload().(T)
	return data, ok
}
