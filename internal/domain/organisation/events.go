package organisation

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EventKind tags every organisation event in the log and on the wire
type EventKind string

const (
	KindEntityCreated             EventKind = "organisation.entity_created"
	KindRiskExtractInitiated      EventKind = "organisation.risk_extract_initiated"
	KindRiskExtractReceived       EventKind = "organisation.risk_extract_received"
	KindRiskExtractCompleted      EventKind = "organisation.risk_extract_completed"
	KindAsicExtractInitiated      EventKind = "organisation.asic_extract_initiated"
	KindAsicExtractOrderCreated   EventKind = "organisation.asic_extract_order_created"
	KindAsicExtractReceived       EventKind = "organisation.asic_extract_received"
	KindAsicExtractOrderCompleted EventKind = "organisation.asic_extract_order_completed"
)

// Event is the closed set of facts recorded against an organisation entity
type Event interface {
	Kind() EventKind
	AggregateID() uuid.UUID
	isOrganisationEvent()
}

// ExtractEvent is an Event that targets a single extract
type ExtractEvent interface {
	Event
	TargetExtractID() uuid.UUID
}

// EntityCreated starts an entity stream
type EntityCreated struct {
	EntityID uuid.UUID `json:"entity_id"`
}

// RiskExtractInitiated opens a risk extract, superseding any earlier one
type RiskExtractInitiated struct {
	EntityID  uuid.UUID `json:"entity_id"`
	ExtractID uuid.UUID `json:"extract_id"`
}

// RiskExtractReceived records that the risk data has arrived
type RiskExtractReceived struct {
	EntityID  uuid.UUID `json:"entity_id"`
	ExtractID uuid.UUID `json:"extract_id"`
}

// RiskExtractCompleted closes a risk extract and frees the risk slot
type RiskExtractCompleted struct {
	EntityID  uuid.UUID `json:"entity_id"`
	ExtractID uuid.UUID `json:"extract_id"`
}

// AsicExtractInitiated opens an ASIC extract for a company number
type AsicExtractInitiated struct {
	EntityID  uuid.UUID `json:"entity_id"`
	ExtractID uuid.UUID `json:"extract_id"`
	ACN       string    `json:"acn"`
}

// AsicExtractOrderCreated records the order placed with the ASIC data service
type AsicExtractOrderCreated struct {
	EntityID  uuid.UUID `json:"entity_id"`
	ExtractID uuid.UUID `json:"extract_id"`
	OrderID   int64     `json:"order_id"`
}

// AsicExtractReceived records that the ASIC extract document has arrived
type AsicExtractReceived struct {
	EntityID  uuid.UUID `json:"entity_id"`
	ExtractID uuid.UUID `json:"extract_id"`
}

// AsicExtractOrderCompleted closes an ASIC extract
type AsicExtractOrderCompleted struct {
	EntityID  uuid.UUID `json:"entity_id"`
	ExtractID uuid.UUID `json:"extract_id"`
}

func (EntityCreated) Kind() EventKind             { return KindEntityCreated }
func (RiskExtractInitiated) Kind() EventKind      { return KindRiskExtractInitiated }
func (RiskExtractReceived) Kind() EventKind       { return KindRiskExtractReceived }
func (RiskExtractCompleted) Kind() EventKind      { return KindRiskExtractCompleted }
func (AsicExtractInitiated) Kind() EventKind      { return KindAsicExtractInitiated }
func (AsicExtractOrderCreated) Kind() EventKind   { return KindAsicExtractOrderCreated }
func (AsicExtractReceived) Kind() EventKind       { return KindAsicExtractReceived }
func (AsicExtractOrderCompleted) Kind() EventKind { return KindAsicExtractOrderCompleted }

func (e EntityCreated) AggregateID() uuid.UUID             { return e.EntityID }
func (e RiskExtractInitiated) AggregateID() uuid.UUID      { return e.EntityID }
func (e RiskExtractReceived) AggregateID() uuid.UUID       { return e.EntityID }
func (e RiskExtractCompleted) AggregateID() uuid.UUID      { return e.EntityID }
func (e AsicExtractInitiated) AggregateID() uuid.UUID      { return e.EntityID }
func (e AsicExtractOrderCreated) AggregateID() uuid.UUID   { return e.EntityID }
func (e AsicExtractReceived) AggregateID() uuid.UUID       { return e.EntityID }
func (e AsicExtractOrderCompleted) AggregateID() uuid.UUID { return e.EntityID }

func (e RiskExtractInitiated) TargetExtractID() uuid.UUID      { return e.ExtractID }
func (e RiskExtractReceived) TargetExtractID() uuid.UUID       { return e.ExtractID }
func (e RiskExtractCompleted) TargetExtractID() uuid.UUID      { return e.ExtractID }
func (e AsicExtractInitiated) TargetExtractID() uuid.UUID      { return e.ExtractID }
func (e AsicExtractOrderCreated) TargetExtractID() uuid.UUID   { return e.ExtractID }
func (e AsicExtractReceived) TargetExtractID() uuid.UUID       { return e.ExtractID }
func (e AsicExtractOrderCompleted) TargetExtractID() uuid.UUID { return e.ExtractID }

func (EntityCreated) isOrganisationEvent()             {}
func (RiskExtractInitiated) isOrganisationEvent()      {}
func (RiskExtractReceived) isOrganisationEvent()       {}
func (RiskExtractCompleted) isOrganisationEvent()      {}
func (AsicExtractInitiated) isOrganisationEvent()      {}
func (AsicExtractOrderCreated) isOrganisationEvent()   {}
func (AsicExtractReceived) isOrganisationEvent()       {}
func (AsicExtractOrderCompleted) isOrganisationEvent() {}

var eventDecoders = map[EventKind]func(json.RawMessage) (Event, error){
	KindEntityCreated:             decode[EntityCreated],
	KindRiskExtractInitiated:      decode[RiskExtractInitiated],
	KindRiskExtractReceived:       decode[RiskExtractReceived],
	KindRiskExtractCompleted:      decode[RiskExtractCompleted],
	KindAsicExtractInitiated:      decode[AsicExtractInitiated],
	KindAsicExtractOrderCreated:   decode[AsicExtractOrderCreated],
	KindAsicExtractReceived:       decode[AsicExtractReceived],
	KindAsicExtractOrderCompleted: decode[AsicExtractOrderCompleted],
}

var eventDescriptions = map[EventKind]string{
	KindEntityCreated:             "Entity created",
	KindRiskExtractInitiated:      "Risk extract initiated",
	KindRiskExtractReceived:       "Risk extract received",
	KindRiskExtractCompleted:      "Risk extract completed",
	KindAsicExtractInitiated:      "ASIC extract initiated",
	KindAsicExtractOrderCreated:   "ASIC extract order created",
	KindAsicExtractReceived:       "ASIC extract received",
	KindAsicExtractOrderCompleted: "ASIC extract order completed",
}

func decode[T Event](data json.RawMessage) (Event, error) {
	var evt T
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	return evt, nil
}

// Kinds returns every organisation event kind
func Kinds() []EventKind {
	return []EventKind{
		KindEntityCreated,
		KindRiskExtractInitiated,
		KindRiskExtractReceived,
		KindRiskExtractCompleted,
		KindAsicExtractInitiated,
		KindAsicExtractOrderCreated,
		KindAsicExtractReceived,
		KindAsicExtractOrderCompleted,
	}
}

// Describe returns a human readable label for kind
func Describe(kind EventKind) string {
	if d, ok := eventDescriptions[kind]; ok {
		return d
	}
	return string(kind)
}

// EncodeEvent serialises an event payload
func EncodeEvent(evt Event) (json.RawMessage, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", evt.Kind(), err)
	}
	return data, nil
}

// DecodeEvent rebuilds an event from its kind tag and payload
func DecodeEvent(kind string, data json.RawMessage) (Event, error) {
	dec, ok := eventDecoders[EventKind(kind)]
	if !ok {
		return nil, fmt.Errorf("unknown organisation event kind %q", kind)
	}
	evt, err := dec(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	return evt, nil
}
