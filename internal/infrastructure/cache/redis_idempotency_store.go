package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces idempotency markers in Redis
const DefaultKeyPrefix = "org:idempotency:"

// NewRedisClient opens a client for cfg and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisIdempotencyStore keeps processed-message markers in Redis so every
// instance consuming the same stream sees the same markers
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
	ownClient bool
}

// NewRedisIdempotencyStore wraps a client shared with other components.
// Close leaves the client open.
func NewRedisIdempotencyStore(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed claims messageID with SET NX so only one consumer wins
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+messageID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processed: %w", err)
	}
	return ok, nil
}

// IsProcessed reports whether a marker exists for messageID
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+messageID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check message marker: %w", err)
	}
	return n > 0, nil
}

// Unmark deletes the marker for messageID
func (s *RedisIdempotencyStore) Unmark(ctx context.Context, messageID string) error {
	if err := s.client.Del(ctx, s.keyPrefix+messageID).Err(); err != nil {
		return fmt.Errorf("failed to release message marker: %w", err)
	}
	return nil
}

// Close closes the client only when the store opened it
func (s *RedisIdempotencyStore) Close() error {
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
