package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, messageID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Unmark(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newTestStore(t *testing.T) *cache.InMemoryIdempotencyStore {
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestIdempotentHandler_SkipsRedelivery(t *testing.T) {
	r := testRegistry(t)
	inner := newRecordingHandler("k")
	h := NewIdempotentHandler("consumer", inner, newTestStore(t), zap.NewNop())
	msg := createdMessage(t, r, 1)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, msg))
	require.NoError(t, h.Handle(ctx, msg))

	assert.Len(t, inner.received(), 1)
	stats := h.GetMetrics().Stats()
	assert.Equal(t, int64(1), stats.MessagesProcessed)
	assert.Equal(t, int64(1), stats.MessagesDuplicate)
	assert.Equal(t, []string{"k"}, h.MessageKinds())
}

func TestIdempotentHandler_ScopesAreIndependent(t *testing.T) {
	r := testRegistry(t)
	store := newTestStore(t)
	first := newRecordingHandler()
	second := newRecordingHandler()
	msg := createdMessage(t, r, 1)
	ctx := context.Background()

	require.NoError(t, NewIdempotentHandler("first", first, store, zap.NewNop()).Handle(ctx, msg))
	require.NoError(t, NewIdempotentHandler("second", second, store, zap.NewNop()).Handle(ctx, msg))

	assert.Len(t, first.received(), 1)
	assert.Len(t, second.received(), 1)
}

func TestIdempotentHandler_FailureReleasesKey(t *testing.T) {
	r := testRegistry(t)
	inner := newRecordingHandler()
	inner.setError(errors.New("gateway down"))
	h := NewIdempotentHandler("consumer", inner, newTestStore(t), zap.NewNop())
	msg := createdMessage(t, r, 1)
	ctx := context.Background()

	require.Error(t, h.Handle(ctx, msg))

	inner.setError(nil)
	require.NoError(t, h.Handle(ctx, msg))

	assert.Len(t, inner.received(), 2)
	assert.Equal(t, int64(1), h.GetMetrics().Stats().MessagesFailed)
}

func TestIdempotentHandler_StoreErrorProcessesAnyway(t *testing.T) {
	r := testRegistry(t)
	store := new(MockIdempotencyStore)
	store.On("MarkProcessed", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
	inner := newRecordingHandler()
	h := NewIdempotentHandler("consumer", inner, store, zap.NewNop())

	require.NoError(t, h.Handle(context.Background(), createdMessage(t, r, 1)))

	assert.Len(t, inner.received(), 1)
	store.AssertExpectations(t)
}

func TestIdempotentHandler_UnmarkErrorStillReturnsHandlerError(t *testing.T) {
	r := testRegistry(t)
	store := new(MockIdempotencyStore)
	store.On("MarkProcessed", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	store.On("Unmark", mock.Anything, mock.Anything).Return(errors.New("redis down"))
	inner := newRecordingHandler()
	handlerErr := errors.New("consumer failed")
	inner.setError(handlerErr)
	h := NewIdempotentHandler("consumer", inner, store, zap.NewNop())

	err := h.Handle(context.Background(), createdMessage(t, r, 1))
	assert.ErrorIs(t, err, handlerErr)
	store.AssertExpectations(t)
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	r := testRegistry(t)
	store := new(MockIdempotencyStore)
	inner := newRecordingHandler()
	h := NewIdempotentHandler("consumer", inner, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}),
	)
	msg := createdMessage(t, r, 1)

	require.NoError(t, h.Handle(context.Background(), msg))
	require.NoError(t, h.Handle(context.Background(), msg))

	assert.Len(t, inner.received(), 2)
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdempotentHandler_SharedMetrics(t *testing.T) {
	r := testRegistry(t)
	metrics := &IdempotencyMetrics{}
	store := newTestStore(t)
	ctx := context.Background()

	a := NewIdempotentHandler("a", newRecordingHandler(), store, zap.NewNop(), WithIdempotencyMetrics(metrics))
	b := NewIdempotentHandler("b", newRecordingHandler(), store, zap.NewNop(), WithIdempotencyMetrics(metrics))
	require.NoError(t, a.Handle(ctx, createdMessage(t, r, 1)))
	require.NoError(t, b.Handle(ctx, createdMessage(t, r, 2)))

	assert.Equal(t, int64(2), metrics.Stats().MessagesProcessed)
}
