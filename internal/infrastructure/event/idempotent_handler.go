package event

import (
	"context"
	"sync/atomic"

	"github.com/orgextract/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyMetrics tracks idempotency-related statistics
type IdempotencyMetrics struct {
	// MessagesProcessed is the number of messages handled for the first time
	MessagesProcessed atomic.Int64

	// MessagesDuplicate is the number of redeliveries skipped
	MessagesDuplicate atomic.Int64

	// MessagesFailed is the number of messages whose handler failed
	MessagesFailed atomic.Int64
}

// Stats returns a snapshot of the current metrics
func (m *IdempotencyMetrics) Stats() IdempotencyStats {
	return IdempotencyStats{
		MessagesProcessed: m.MessagesProcessed.Load(),
		MessagesDuplicate: m.MessagesDuplicate.Load(),
		MessagesFailed:    m.MessagesFailed.Load(),
	}
}

// IdempotencyStats is a snapshot of idempotency metrics
type IdempotencyStats struct {
	MessagesProcessed int64 `json:"messages_processed"`
	MessagesDuplicate int64 `json:"messages_duplicate"`
	MessagesFailed    int64 `json:"messages_failed"`
}

// IdempotentHandler wraps a MessageHandler so each message id is handled once
// even when the transport redelivers it
type IdempotentHandler struct {
	handler shared.MessageHandler
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	scope   string
	logger  *zap.Logger
	metrics *IdempotencyMetrics
}

// IdempotentHandlerOption is a functional option for IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig sets the idempotency configuration
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithIdempotencyMetrics sets the metrics collector
func WithIdempotencyMetrics(metrics *IdempotencyMetrics) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.metrics = metrics
	}
}

// NewIdempotentHandler creates a new idempotent handler wrapper. scope
// namespaces the keys so several consumers of the same message each run once.
func NewIdempotentHandler(
	scope string,
	handler shared.MessageHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		scope:   scope,
		logger:  logger,
		metrics: &IdempotencyMetrics{},
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// MessageKinds returns the wrapped handler's kinds
func (h *IdempotentHandler) MessageKinds() []string {
	return h.handler.MessageKinds()
}

// Handle processes the message unless its id was already handled
func (h *IdempotentHandler) Handle(ctx context.Context, msg shared.Message) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, msg)
	}

	meta := msg.Meta()
	key := h.scope + ":" + meta.ID.String()

	isNew, err := h.store.MarkProcessed(ctx, key, h.config.TTL)
	if err != nil {
		// A duplicate is preferable to a dropped message
		h.logger.Warn("failed to check idempotency, processing anyway",
			zap.String("key", key),
			zap.String("kind", meta.Kind),
			zap.Error(err),
		)
	} else if !isNew {
		h.metrics.MessagesDuplicate.Add(1)
		h.logger.Debug("duplicate message detected, skipping",
			zap.String("key", key),
			zap.String("kind", meta.Kind),
		)
		return nil
	}

	if err := h.handler.Handle(ctx, msg); err != nil {
		h.metrics.MessagesFailed.Add(1)
		h.logger.Error("message handler failed",
			zap.String("key", key),
			zap.String("kind", meta.Kind),
			zap.Error(err),
		)
		// Release the key so a redelivery gets another attempt
		if unmarkErr := h.store.Unmark(ctx, key); unmarkErr != nil {
			h.logger.Warn("failed to release idempotency key",
				zap.String("key", key),
				zap.Error(unmarkErr),
			)
		}
		return err
	}

	h.metrics.MessagesProcessed.Add(1)
	return nil
}

// GetMetrics returns the metrics for this handler
func (h *IdempotentHandler) GetMetrics() *IdempotencyMetrics {
	return h.metrics
}

// Ensure IdempotentHandler implements MessageHandler
var _ shared.MessageHandler = (*IdempotentHandler)(nil)
