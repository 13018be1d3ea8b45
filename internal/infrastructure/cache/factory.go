package cache

import (
	"context"
	"fmt"

	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IdempotencyStoreFactory picks the idempotency store for the configured
// backend
type IdempotencyStoreFactory struct {
	cfg                   config.IdempotencyConfig
	redisConfig           config.RedisConfig
	client                *redis.Client
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithRedisClient reuses an already connected client instead of dialling
func WithRedisClient(client *redis.Client) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.client = client
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory store. Default is true.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg config.IdempotencyConfig, redisCfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		cfg:                   cfg,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore builds the store named by the "memory" or "redis" backend
func (f *IdempotencyStoreFactory) CreateStore(ctx context.Context) (shared.IdempotencyStore, error) {
	switch f.cfg.Backend {
	case "", config.BackendMemory:
		f.logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	case config.BackendRedis:
		return f.createRedisStore(ctx)
	default:
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("unknown idempotency backend %q", f.cfg.Backend))
	}
}

func (f *IdempotencyStoreFactory) createRedisStore(ctx context.Context) (shared.IdempotencyStore, error) {
	if f.client != nil {
		f.logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(f.client, f.cfg.KeyPrefix), nil
	}

	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis idempotency store")
		store := NewRedisIdempotencyStore(client, f.cfg.KeyPrefix)
		store.ownClient = true
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
		"Redelivered messages may be processed twice across instances.",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}
