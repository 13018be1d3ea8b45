package organisation

import (
	"context"

	"github.com/google/uuid"
)

// Mutation applies caller logic to a freshly loaded entity
type Mutation func(e *Entity) error

// UpdateOptions tunes an append
type UpdateOptions struct {
	// ExpectedVersion overrides the version the append is conditioned on.
	// Nil means the entity's persisted version.
	ExpectedVersion *int64
}

// UpdateOption is a functional option for Update and GetAndUpdate
type UpdateOption func(*UpdateOptions)

// WithExpectedVersion conditions the append on the stream being at version
func WithExpectedVersion(version int64) UpdateOption {
	return func(o *UpdateOptions) {
		o.ExpectedVersion = &version
	}
}

// ApplyUpdateOptions folds options into UpdateOptions
func ApplyUpdateOptions(opts ...UpdateOption) UpdateOptions {
	var o UpdateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Repository persists organisation entities as event streams
type Repository interface {
	// Find folds the entity's committed history. Returns shared.ErrNotFound
	// when no stream exists.
	Find(ctx context.Context, id uuid.UUID) (*Entity, error)

	// Add starts the stream for a new entity. Returns
	// shared.ErrStreamAlreadyExists when the id is taken.
	Add(ctx context.Context, e *Entity) error

	// Update appends the entity's uncommitted events. Returns
	// shared.ErrConcurrencyConflict when another writer got there first; the
	// uncommitted events are kept in that case.
	Update(ctx context.Context, e *Entity, opts ...UpdateOption) error

	// GetAndUpdate loads the entity, applies mutate and appends the result
	GetAndUpdate(ctx context.Context, id uuid.UUID, mutate Mutation, opts ...UpdateOption) (*Entity, error)
}
