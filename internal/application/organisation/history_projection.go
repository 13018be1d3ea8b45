package organisation

import (
	"context"
	"fmt"

	"github.com/orgextract/backend/internal/domain/organisation"
	"github.com/orgextract/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// HistoryProjection writes one history entry per organisation message.
// Recording is keyed by event id, so redelivery is harmless.
type HistoryProjection struct {
	history organisation.HistoryRepository
	logger  *zap.Logger
}

// NewHistoryProjection creates a new HistoryProjection
func NewHistoryProjection(history organisation.HistoryRepository, logger *zap.Logger) *HistoryProjection {
	return &HistoryProjection{history: history, logger: logger}
}

// Name returns the consumer name
func (h *HistoryProjection) Name() string { return "entity-history" }

// MessageKinds returns every organisation event kind
func (h *HistoryProjection) MessageKinds() []string {
	kinds := organisation.Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// Handle records the message in the entity history
func (h *HistoryProjection) Handle(ctx context.Context, msg shared.Message) error {
	meta := msg.Meta()
	evt, ok := msg.Payload().(organisation.Event)
	if !ok {
		return fmt.Errorf("history: unexpected payload %T for %s", msg.Payload(), meta.Kind)
	}
	entry := organisation.NewHistoryEntry(meta.ID, meta.Sequence, meta.Timestamp, evt)
	if err := h.history.Record(ctx, entry); err != nil {
		return fmt.Errorf("record history for event %s: %w", meta.ID, err)
	}
	h.logger.Debug("history recorded",
		zap.String("entity_id", entry.EntityID.String()),
		zap.Int64("sequence", entry.Sequence),
		zap.String("kind", meta.Kind),
	)
	return nil
}
