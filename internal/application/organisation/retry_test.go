package organisation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetrier_RetriesConflicts(t *testing.T) {
	r := testRetrier()
	attempts := 0

	err := r.Do(context.Background(), "op", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return shared.ErrConcurrencyConflict
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetrier_GivesUpAfterMaxAttempts(t *testing.T) {
	r := NewRetrier(RetryPolicy{MaxAttempts: 4, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}, nil, zap.NewNop())
	attempts := 0

	err := r.Do(context.Background(), "op", func(ctx context.Context) error {
		attempts++
		return shared.ErrConcurrencyConflict
	})

	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, 4, attempts)
}

func TestRetrier_OtherErrorsAreNotRetried(t *testing.T) {
	r := testRetrier()
	attempts := 0

	err := r.Do(context.Background(), "op", func(ctx context.Context) error {
		attempts++
		return shared.ErrInvalidTransition
	})

	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	assert.Equal(t, 1, attempts)

	attempts = 0
	boom := errors.New("boom")
	err = r.Do(context.Background(), "op", func(ctx context.Context) error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestRetrier_ZeroAttemptsRunsOnce(t *testing.T) {
	r := NewRetrier(RetryPolicy{}, nil, zap.NewNop())
	attempts := 0

	err := r.Do(context.Background(), "op", func(ctx context.Context) error {
		attempts++
		return shared.ErrConcurrencyConflict
	})

	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, 1, attempts)
}
