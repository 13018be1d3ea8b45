package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/domain/organisation"
	"github.com/orgextract/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// EventSourcedOrganisationRepository stores organisation entities as event
// streams in a shared.EventLog
type EventSourcedOrganisationRepository struct {
	log    shared.EventLog
	logger *zap.Logger
}

// NewEventSourcedOrganisationRepository creates a new repository over log
func NewEventSourcedOrganisationRepository(log shared.EventLog, logger *zap.Logger) *EventSourcedOrganisationRepository {
	return &EventSourcedOrganisationRepository{
		log:    log,
		logger: logger,
	}
}

// Find folds the entity's committed history
func (r *EventSourcedOrganisationRepository) Find(ctx context.Context, id uuid.UUID) (*organisation.Entity, error) {
	committed, err := r.log.ReadStream(ctx, id)
	if err != nil {
		return nil, err
	}

	history := make([]organisation.Event, 0, len(committed))
	for _, c := range committed {
		evt, err := organisation.DecodeEvent(c.Kind, c.Data)
		if err != nil {
			return nil, fmt.Errorf("entity %s version %d: %w", id, c.Version, err)
		}
		history = append(history, evt)
	}
	return organisation.Rehydrate(history)
}

// Add starts the stream for a new entity
func (r *EventSourcedOrganisationRepository) Add(ctx context.Context, e *organisation.Entity) error {
	if e.PersistedVersion() != 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "entity has already been persisted")
	}
	return r.append(ctx, e, shared.ExpectNoStream)
}

// Update appends the entity's uncommitted events. Nothing pending is a no-op.
func (r *EventSourcedOrganisationRepository) Update(ctx context.Context, e *organisation.Entity, opts ...organisation.UpdateOption) error {
	if len(e.Uncommitted()) == 0 {
		return nil
	}
	expected := e.PersistedVersion()
	if o := organisation.ApplyUpdateOptions(opts...); o.ExpectedVersion != nil {
		expected = *o.ExpectedVersion
	}
	if expected == shared.ExpectNoStream {
		return shared.NewDomainError(shared.CodeInvalidInput, "use Add to start a new stream")
	}
	return r.append(ctx, e, expected)
}

// GetAndUpdate loads the entity, applies mutate and appends the result
func (r *EventSourcedOrganisationRepository) GetAndUpdate(ctx context.Context, id uuid.UUID, mutate organisation.Mutation, opts ...organisation.UpdateOption) (*organisation.Entity, error) {
	e, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(e); err != nil {
		return nil, err
	}
	if err := r.Update(ctx, e, opts...); err != nil {
		return nil, err
	}
	return e, nil
}

// append hands the uncommitted events to the log and clears them only once
// the log has accepted them
func (r *EventSourcedOrganisationRepository) append(ctx context.Context, e *organisation.Entity, expected int64) error {
	uncommitted := e.Uncommitted()
	events := make([]shared.PendingEvent, 0, len(uncommitted))
	for _, evt := range uncommitted {
		data, err := organisation.EncodeEvent(evt)
		if err != nil {
			return err
		}
		events = append(events, shared.PendingEvent{
			ID:   uuid.New(),
			Kind: string(evt.Kind()),
			Data: data,
		})
	}

	version, err := r.log.Append(ctx, e.ID(), expected, events)
	if err != nil {
		return err
	}
	e.MarkCommitted()

	r.logger.Debug("entity persisted",
		zap.String("entity_id", e.ID().String()),
		zap.Int64("version", version),
		zap.Int("events", len(events)),
	)
	return nil
}

// Ensure EventSourcedOrganisationRepository implements Repository
var _ organisation.Repository = (*EventSourcedOrganisationRepository)(nil)
