package organisation

import "github.com/google/uuid"

// ExtractType identifies the extract variant
type ExtractType string

const (
	ExtractTypeRisk ExtractType = "risk"
	ExtractTypeAsic ExtractType = "asic"
)

// ExtractStatus is the lifecycle position of an extract. Values are ordered:
// a higher status always supersedes a lower one.
type ExtractStatus int

const (
	StatusInitiated ExtractStatus = iota + 1
	StatusOrderCreated
	StatusReceived
	StatusCompleted
)

// String returns the status name
func (s ExtractStatus) String() string {
	switch s {
	case StatusInitiated:
		return "Initiated"
	case StatusOrderCreated:
		return "OrderCreated"
	case StatusReceived:
		return "Received"
	case StatusCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Extract is one asynchronous data retrieval tracked by an entity
type Extract interface {
	ID() uuid.UUID
	Type() ExtractType
	Status() ExtractStatus
	IsCompleted() bool
	setStatus(ExtractStatus)
}

type extractBase struct {
	id     uuid.UUID
	status ExtractStatus
}

func (b *extractBase) ID() uuid.UUID { return b.id }

func (b *extractBase) Status() ExtractStatus { return b.status }

func (b *extractBase) IsCompleted() bool { return b.status == StatusCompleted }

func (b *extractBase) setStatus(s ExtractStatus) { b.status = s }

// RiskExtract is a risk report retrieval. Only one may be in progress per entity.
type RiskExtract struct {
	extractBase
}

// Type returns ExtractTypeRisk
func (*RiskExtract) Type() ExtractType { return ExtractTypeRisk }

// AsicExtract is an ASIC company extract for one ACN. Only one may be in
// progress per ACN.
type AsicExtract struct {
	extractBase
	acn     string
	orderID int64
}

// Type returns ExtractTypeAsic
func (*AsicExtract) Type() ExtractType { return ExtractTypeAsic }

// ACN returns the Australian Company Number the extract was ordered for
func (a *AsicExtract) ACN() string { return a.acn }

// OrderID returns the ASIC order number, zero until the order is created
func (a *AsicExtract) OrderID() int64 { return a.orderID }
