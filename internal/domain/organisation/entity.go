package organisation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/domain/shared"
)

// Entity is the organisation aggregate: the fold of its event stream plus the
// events recorded since it was loaded and not yet appended.
type Entity struct {
	id       uuid.UUID
	version  int64
	extracts []Extract
	pending  []Event
}

// Initialise builds a brand-new entity from its creation event
func Initialise(evt EntityCreated) (*Entity, error) {
	if evt.EntityID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "entity id is required")
	}
	e := &Entity{}
	e.record(evt)
	return e, nil
}

// Rehydrate folds a committed history into an entity with nothing pending.
// The first event must be EntityCreated.
func Rehydrate(history []Event) (*Entity, error) {
	if len(history) == 0 {
		return nil, shared.ErrNotFound
	}
	if _, ok := history[0].(EntityCreated); !ok {
		return nil, fmt.Errorf("stream does not start with %s: got %s", KindEntityCreated, history[0].Kind())
	}
	e := &Entity{}
	for _, evt := range history {
		e.apply(evt)
		e.version++
	}
	return e, nil
}

// ID returns the entity identity
func (e *Entity) ID() uuid.UUID { return e.id }

// Version is the number of events applied, including pending ones
func (e *Entity) Version() int64 { return e.version }

// PersistedVersion is the stream version this instance was loaded at, or
// last appended at
func (e *Entity) PersistedVersion() int64 { return e.version - int64(len(e.pending)) }

// Uncommitted returns the events recorded since the last commit, in order
func (e *Entity) Uncommitted() []Event { return slices.Clone(e.pending) }

// MarkCommitted clears the uncommitted buffer after a successful append
func (e *Entity) MarkCommitted() { e.pending = nil }

// Extracts returns the current extracts in initiation order
func (e *Entity) Extracts() []Extract { return slices.Clone(e.extracts) }

// Extract finds an extract by id
func (e *Entity) Extract(id uuid.UUID) (Extract, bool) {
	i := e.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return e.extracts[i], true
}

// InitiateRiskExtract opens a risk extract. A known extractID is a no-op;
// an unfinished risk extract blocks a new one.
func (e *Entity) InitiateRiskExtract(extractID uuid.UUID) error {
	if extractID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "extract id is required")
	}
	if existing, ok := e.Extract(extractID); ok {
		if existing.Type() != ExtractTypeRisk {
			return invalidTransition("extract %s is a %s extract", extractID, existing.Type())
		}
		return nil
	}
	for _, x := range e.extracts {
		if x.Type() == ExtractTypeRisk && !x.IsCompleted() {
			return invalidTransition("risk extract %s is still %s", x.ID(), x.Status())
		}
	}
	e.record(RiskExtractInitiated{EntityID: e.id, ExtractID: extractID})
	return nil
}

// ReceiveRiskExtract moves a risk extract to Received
func (e *Entity) ReceiveRiskExtract(extractID uuid.UUID) error {
	return e.advance(extractID, ExtractTypeRisk, StatusReceived,
		RiskExtractReceived{EntityID: e.id, ExtractID: extractID},
		StatusInitiated)
}

// CompleteRiskExtract moves a received risk extract to Completed
func (e *Entity) CompleteRiskExtract(extractID uuid.UUID) error {
	return e.advance(extractID, ExtractTypeRisk, StatusCompleted,
		RiskExtractCompleted{EntityID: e.id, ExtractID: extractID},
		StatusReceived)
}

// InitiateAsicExtract opens an ASIC extract for acn. A known extractID is a
// no-op; an unfinished extract for the same acn blocks a new one.
func (e *Entity) InitiateAsicExtract(extractID uuid.UUID, acn string) error {
	acn = strings.TrimSpace(acn)
	if extractID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "extract id is required")
	}
	if acn == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "acn is required")
	}
	if existing, ok := e.Extract(extractID); ok {
		if existing.Type() != ExtractTypeAsic {
			return invalidTransition("extract %s is a %s extract", extractID, existing.Type())
		}
		return nil
	}
	for _, x := range e.extracts {
		if a, ok := x.(*AsicExtract); ok && a.acn == acn && !a.IsCompleted() {
			return invalidTransition("asic extract %s for acn %s is still %s", a.ID(), acn, a.Status())
		}
	}
	e.record(AsicExtractInitiated{EntityID: e.id, ExtractID: extractID, ACN: acn})
	return nil
}

// CreateAsicExtractOrder records the external order for an initiated ASIC extract
func (e *Entity) CreateAsicExtractOrder(extractID uuid.UUID, orderID int64) error {
	return e.advance(extractID, ExtractTypeAsic, StatusOrderCreated,
		AsicExtractOrderCreated{EntityID: e.id, ExtractID: extractID, OrderID: orderID},
		StatusInitiated)
}

// ReceiveAsicExtract moves an ASIC extract to Received
func (e *Entity) ReceiveAsicExtract(extractID uuid.UUID) error {
	return e.advance(extractID, ExtractTypeAsic, StatusReceived,
		AsicExtractReceived{EntityID: e.id, ExtractID: extractID},
		StatusInitiated, StatusOrderCreated)
}

// CompleteAsicExtractOrder moves a received ASIC extract to Completed
func (e *Entity) CompleteAsicExtractOrder(extractID uuid.UUID) error {
	return e.advance(extractID, ExtractTypeAsic, StatusCompleted,
		AsicExtractOrderCompleted{EntityID: e.id, ExtractID: extractID},
		StatusReceived)
}

// advance validates a status transition and records evt when it applies.
// A status already at or past target is a stale request and succeeds silently.
func (e *Entity) advance(extractID uuid.UUID, typ ExtractType, target ExtractStatus, evt Event, from ...ExtractStatus) error {
	x, ok := e.Extract(extractID)
	if !ok || x.Type() != typ {
		return invalidTransition("no %s extract %s", typ, extractID)
	}
	if x.Status() >= target {
		return nil
	}
	if !slices.Contains(from, x.Status()) {
		return invalidTransition("%s extract %s cannot move from %s to %s", typ, extractID, x.Status(), target)
	}
	e.record(evt)
	return nil
}

func (e *Entity) record(evt Event) {
	e.apply(evt)
	e.version++
	e.pending = append(e.pending, evt)
}

// apply folds one event into state. It never fails: history is the source of
// truth, so events for unknown extracts or stale statuses are ignored.
func (e *Entity) apply(evt Event) {
	switch ev := evt.(type) {
	case EntityCreated:
		e.id = ev.EntityID
	case RiskExtractInitiated:
		if e.indexOf(ev.ExtractID) >= 0 {
			return
		}
		e.evict(func(x Extract) bool { return x.Type() == ExtractTypeRisk })
		e.extracts = append(e.extracts, &RiskExtract{extractBase{id: ev.ExtractID, status: StatusInitiated}})
	case AsicExtractInitiated:
		if e.indexOf(ev.ExtractID) >= 0 {
			return
		}
		e.evict(func(x Extract) bool {
			a, ok := x.(*AsicExtract)
			return ok && a.acn == ev.ACN
		})
		e.extracts = append(e.extracts, &AsicExtract{
			extractBase: extractBase{id: ev.ExtractID, status: StatusInitiated},
			acn:         ev.ACN,
		})
	case AsicExtractOrderCreated:
		if x, ok := e.Extract(ev.ExtractID); ok {
			if a, ok := x.(*AsicExtract); ok && a.status < StatusOrderCreated {
				a.status = StatusOrderCreated
				a.orderID = ev.OrderID
			}
		}
	case RiskExtractReceived, AsicExtractReceived:
		e.promote(ev.(ExtractEvent).TargetExtractID(), StatusReceived)
	case RiskExtractCompleted, AsicExtractOrderCompleted:
		e.promote(ev.(ExtractEvent).TargetExtractID(), StatusCompleted)
	}
}

func (e *Entity) promote(extractID uuid.UUID, to ExtractStatus) {
	if x, ok := e.Extract(extractID); ok && x.Status() < to {
		x.setStatus(to)
	}
}

func (e *Entity) evict(match func(Extract) bool) {
	e.extracts = slices.DeleteFunc(e.extracts, match)
}

func (e *Entity) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(e.extracts, func(x Extract) bool { return x.ID() == id })
}

func invalidTransition(format string, args ...any) error {
	return shared.NewDomainError(shared.CodeInvalidTransition, fmt.Sprintf(format, args...))
}
