package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisTransportConfig configures the Redis Streams message transport
type RedisTransportConfig struct {
	// Stream is the Redis stream key messages are appended to
	Stream string
	// Group is the consumer group shared by every instance of this service
	Group string
	// Consumer names this instance within the group
	Consumer string
	// BatchSize is the maximum number of entries read per call
	BatchSize int64
	// Block is how long a read waits for new entries
	Block time.Duration
	// MaxLen caps the stream length (approximate trimming); 0 disables trimming
	MaxLen int64
	// ClaimMinIdle is how long an unacknowledged entry stays pending before
	// it is delivered again; 0 disables redelivery
	ClaimMinIdle time.Duration
}

// DefaultRedisTransportConfig returns default configuration
func DefaultRedisTransportConfig() RedisTransportConfig {
	return RedisTransportConfig{
		Stream:       "org:integration-messages",
		Group:        "org-backend",
		Consumer:     "org-backend-1",
		BatchSize:    10,
		Block:        2 * time.Second,
		MaxLen:       100000,
		ClaimMinIdle: 30 * time.Second,
	}
}

const (
	fieldKind    = "kind"
	fieldMessage = "message"
)

// RedisMessageTransport implements shared.MessageTransport on Redis Streams.
// Entries are acknowledged only after every handler succeeded, so a failed
// entry is delivered again once it has been pending for ClaimMinIdle.
type RedisMessageTransport struct {
	client   *redis.Client
	registry *MessageRegistry
	handlers *HandlerRegistry
	config   RedisTransportConfig
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisMessageTransport creates a new Redis transport
func NewRedisMessageTransport(
	client *redis.Client,
	registry *MessageRegistry,
	config RedisTransportConfig,
	logger *zap.Logger,
) *RedisMessageTransport {
	return &RedisMessageTransport{
		client:   client,
		registry: registry,
		handlers: NewHandlerRegistry(),
		config:   config,
		logger:   logger,
	}
}

// Publish appends messages to the stream in order
func (t *RedisMessageTransport) Publish(ctx context.Context, msgs ...shared.Message) error {
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		args := &redis.XAddArgs{
			Stream: t.config.Stream,
			Values: map[string]any{
				fieldKind:    msg.Meta().Kind,
				fieldMessage: string(data),
			},
		}
		if t.config.MaxLen > 0 {
			args.MaxLen = t.config.MaxLen
			args.Approx = true
		}
		if err := t.client.XAdd(ctx, args).Err(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrTransportUnavailable, err)
		}
	}
	return nil
}

// Subscribe registers a handler for specific kinds
func (t *RedisMessageTransport) Subscribe(handler shared.MessageHandler, kinds ...string) {
	if len(kinds) == 0 {
		kinds = handler.MessageKinds()
	}
	t.handlers.Register(handler, kinds...)
}

// Unsubscribe removes a handler
func (t *RedisMessageTransport) Unsubscribe(handler shared.MessageHandler) {
	t.handlers.Unregister(handler)
}

// Start creates the consumer group if needed and starts consuming
func (t *RedisMessageTransport) Start(ctx context.Context) error {
	err := t.client.XGroupCreateMkStream(ctx, t.config.Stream, t.config.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.consumeLoop(ctx)

	t.logger.Info("redis message transport started",
		zap.String("stream", t.config.Stream),
		zap.String("group", t.config.Group),
		zap.String("consumer", t.config.Consumer),
	)
	return nil
}

// Stop stops consuming and waits for the in-flight batch
func (t *RedisMessageTransport) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("redis message transport stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *RedisMessageTransport) consumeLoop(ctx context.Context) {
	defer t.wg.Done()

	for ctx.Err() == nil {
		if t.config.ClaimMinIdle > 0 {
			t.reclaim(ctx)
		}

		streams, err := t.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    t.config.Group,
			Consumer: t.config.Consumer,
			Streams:  []string{t.config.Stream, ">"},
			Count:    t.config.BatchSize,
			Block:    t.config.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			t.logger.Error("failed to read stream", zap.Error(err))
			t.pause(ctx)
			continue
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				t.process(ctx, entry)
			}
		}
	}
}

// reclaim takes over entries left pending by failed or crashed consumers
func (t *RedisMessageTransport) reclaim(ctx context.Context) {
	entries, _, err := t.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   t.config.Stream,
		Group:    t.config.Group,
		Consumer: t.config.Consumer,
		MinIdle:  t.config.ClaimMinIdle,
		Start:    "0-0",
		Count:    t.config.BatchSize,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Warn("failed to reclaim pending entries", zap.Error(err))
		}
		return
	}
	for _, entry := range entries {
		t.process(ctx, entry)
	}
}

func (t *RedisMessageTransport) process(ctx context.Context, entry redis.XMessage) {
	raw, _ := entry.Values[fieldMessage].(string)
	msg, err := t.registry.Decode([]byte(raw))
	if err != nil {
		// Undecodable entries can never succeed
		t.logger.Error("dropping undecodable entry",
			zap.String("entry_id", entry.ID),
			zap.Error(err),
		)
		t.ack(ctx, entry.ID)
		return
	}

	meta := msg.Meta()
	failed := false
	for _, handler := range t.handlers.GetHandlers(meta.Kind) {
		if err := safeHandle(ctx, handler, msg); err != nil {
			failed = true
			t.logger.Error("handler failed to process message",
				zap.String("kind", meta.Kind),
				zap.String("message_id", meta.ID.String()),
				zap.String("entry_id", entry.ID),
				zap.Error(err),
			)
		}
	}
	if !failed {
		t.ack(ctx, entry.ID)
	}
}

func (t *RedisMessageTransport) ack(ctx context.Context, id string) {
	if err := t.client.XAck(ctx, t.config.Stream, t.config.Group, id).Err(); err != nil {
		t.logger.Warn("failed to acknowledge entry", zap.String("entry_id", id), zap.Error(err))
	}
}

func (t *RedisMessageTransport) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(t.config.Block):
	}
}

// Ensure RedisMessageTransport implements MessageTransport
var _ shared.MessageTransport = (*RedisMessageTransport)(nil)
