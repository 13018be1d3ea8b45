package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores processed message IDs to prevent duplicate processing
type IdempotencyStore interface {
	// MarkProcessed marks a message as processed with a TTL
	// Returns true if the message was newly marked, false if it was already processed
	MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a message has already been processed
	IsProcessed(ctx context.Context, messageID string) (bool, error)

	// Unmark releases a marker so a redelivered message is processed again
	Unmark(ctx context.Context, messageID string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a processed message ID is remembered
	// Default: 24 hours
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	// Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
