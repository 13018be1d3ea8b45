package organisation

import (
	"time"

	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/domain/organisation"
)

// EntityDTO is the read shape of an organisation entity
type EntityDTO struct {
	ID       uuid.UUID    `json:"id"`
	Version  int64        `json:"version"`
	Extracts []ExtractDTO `json:"extracts"`
}

// ExtractDTO is the read shape of one extract
type ExtractDTO struct {
	ID      uuid.UUID `json:"id"`
	Type    string    `json:"type"`
	Status  string    `json:"status"`
	ACN     string    `json:"acn,omitempty"`
	OrderID *int64    `json:"order_id,omitempty"`
}

// HistoryEntryDTO is one line of an entity's history
type HistoryEntryDTO struct {
	EventID     uuid.UUID `json:"event_id"`
	Sequence    int64     `json:"sequence"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ToEntityDTO converts an entity to its read shape
func ToEntityDTO(e *organisation.Entity) *EntityDTO {
	extracts := e.Extracts()
	dto := &EntityDTO{
		ID:       e.ID(),
		Version:  e.Version(),
		Extracts: make([]ExtractDTO, 0, len(extracts)),
	}
	for _, x := range extracts {
		dto.Extracts = append(dto.Extracts, toExtractDTO(x))
	}
	return dto
}

func toExtractDTO(x organisation.Extract) ExtractDTO {
	dto := ExtractDTO{
		ID:     x.ID(),
		Type:   string(x.Type()),
		Status: x.Status().String(),
	}
	if asic, ok := x.(*organisation.AsicExtract); ok {
		dto.ACN = asic.ACN()
		if asic.Status() >= organisation.StatusOrderCreated {
			orderID := asic.OrderID()
			dto.OrderID = &orderID
		}
	}
	return dto
}

// ToHistoryDTOs converts history entries to their read shape
func ToHistoryDTOs(entries []organisation.HistoryEntry) []HistoryEntryDTO {
	out := make([]HistoryEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = HistoryEntryDTO{
			EventID:     e.EventID,
			Sequence:    e.Sequence,
			Kind:        string(e.Kind),
			Description: e.Description,
			OccurredAt:  e.OccurredAt,
		}
	}
	return out
}
