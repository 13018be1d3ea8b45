package event

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/orgextract/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryMessageBus implements shared.MessageTransport with synchronous
// in-process delivery
type InMemoryMessageBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	stopped  atomic.Bool
}

// NewInMemoryMessageBus creates a new in-memory message bus
func NewInMemoryMessageBus(logger *zap.Logger) *InMemoryMessageBus {
	return &InMemoryMessageBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
}

// Publish delivers messages to every interested handler in order. Every
// handler sees a message even when an earlier one fails; the failures are
// joined and returned so the caller can redeliver. Messages after a failed
// one are not delivered.
func (b *InMemoryMessageBus) Publish(ctx context.Context, msgs ...shared.Message) error {
	if b.stopped.Load() {
		return shared.ErrTransportUnavailable
	}
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		meta := msg.Meta()
		var errs []error
		for _, handler := range b.registry.GetHandlers(meta.Kind) {
			if err := safeHandle(ctx, handler, msg); err != nil {
				b.logger.Error("handler failed to process message",
					zap.String("kind", meta.Kind),
					zap.String("message_id", meta.ID.String()),
					zap.Int64("sequence", meta.Sequence),
					zap.Error(err),
				)
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("deliver %s at sequence %d: %w", meta.Kind, meta.Sequence, err)
		}
	}
	return nil
}

// Subscribe registers a handler for specific kinds
func (b *InMemoryMessageBus) Subscribe(handler shared.MessageHandler, kinds ...string) {
	if len(kinds) == 0 {
		kinds = handler.MessageKinds()
	}
	b.registry.Register(handler, kinds...)
	b.logger.Debug("handler subscribed", zap.Strings("kinds", kinds))
}

// Unsubscribe removes a handler
func (b *InMemoryMessageBus) Unsubscribe(handler shared.MessageHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed")
}

// Start (re)opens the bus for publishing
func (b *InMemoryMessageBus) Start(ctx context.Context) error {
	b.stopped.Store(false)
	b.logger.Info("message bus started")
	return nil
}

// Stop rejects further publishes
func (b *InMemoryMessageBus) Stop(ctx context.Context) error {
	b.stopped.Store(true)
	b.logger.Info("message bus stopped")
	return nil
}

// safeHandle calls handler, turning a panic into an error
func safeHandle(ctx context.Context, handler shared.MessageHandler, msg shared.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler.Handle(ctx, msg)
}

// Ensure InMemoryMessageBus implements MessageTransport
var _ shared.MessageTransport = (*InMemoryMessageBus)(nil)
