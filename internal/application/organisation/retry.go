package organisation

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/internal/infrastructure/config"
	"github.com/orgextract/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// RetryPolicy bounds how often an operation is retried after losing an
// optimistic concurrency race
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseBackoff: 20 * time.Millisecond, MaxBackoff: time.Second}
}

// RetryPolicyFromConfig converts the retry section of the configuration
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{MaxAttempts: cfg.MaxAttempts, BaseBackoff: cfg.BaseBackoff, MaxBackoff: cfg.MaxBackoff}
}

// Retrier reruns an operation while it fails with a concurrency conflict.
// Every attempt must reload the entity, so fn receives no state.
type Retrier struct {
	policy  RetryPolicy
	metrics *telemetry.WorkflowMetrics
	logger  *zap.Logger
}

// NewRetrier creates a Retrier; metrics may be nil
func NewRetrier(policy RetryPolicy, metrics *telemetry.WorkflowMetrics, logger *zap.Logger) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retrier{policy: policy, metrics: metrics, logger: logger}
}

// Do runs fn until it succeeds, fails with anything other than
// shared.ErrConcurrencyConflict, or MaxAttempts is used up. The last
// conflict is returned when attempts run out.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.policy.BaseBackoff
	exp.MaxInterval = r.policy.MaxBackoff
	exp.RandomizationFactor = 0.2

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn(ctx)
		if err == nil || errors.Is(err, shared.ErrConcurrencyConflict) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(uint(r.policy.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.metrics.RecordConflictRetry(ctx, operation)
			r.logger.Debug("concurrency conflict, retrying",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
			)
		}),
	)
	if err != nil && errors.Is(err, shared.ErrConcurrencyConflict) {
		r.logger.Warn("giving up after repeated concurrency conflicts",
			zap.String("operation", operation),
			zap.Int("attempts", attempt),
		)
	}
	return err
}
