package integration

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/internal/infrastructure/eventstore"
	"github.com/orgextract/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pending(n int) []shared.PendingEvent {
	out := make([]shared.PendingEvent, n)
	for i := range out {
		out[i] = shared.PendingEvent{ID: uuid.New(), Kind: "test.event", Data: json.RawMessage(`{"n":1}`)}
	}
	return out
}

func TestGormEventLog_Postgres(t *testing.T) {
	tdb := NewTestDB(t)
	log := eventstore.NewGormEventLog(tdb.DB, zap.NewNop())
	ctx := testutil.ContextWithTimeout(t, 2*time.Minute)

	t.Run("append and read a stream", func(t *testing.T) {
		tdb.CleanTables()
		stream := uuid.New()
		mdCtx := shared.WithEventMetadata(ctx, shared.EventMetadata{
			TenantID:      "tenant-a",
			CorrelationID: "corr-1",
			Headers:       map[string]any{"source": "integration"},
		})

		version, err := log.Append(mdCtx, stream, shared.ExpectNoStream, pending(2))
		require.NoError(t, err)
		assert.Equal(t, int64(2), version)

		events, err := log.ReadStream(ctx, stream)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, int64(1), events[0].Version)
		assert.Equal(t, int64(2), events[1].Version)
		assert.Equal(t, "tenant-a", events[0].TenantID)
		assert.Equal(t, "corr-1", events[0].CorrelationID)
		assert.Equal(t, "integration", events[0].Headers["source"])
		assert.JSONEq(t, `{"n":1}`, string(events[0].Data))
	})

	t.Run("longest correlation ids fit the event columns", func(t *testing.T) {
		stream := uuid.New()
		longest := strings.Repeat("x", shared.MaxCorrelationIDLength)
		mdCtx := shared.WithEventMetadata(ctx, shared.EventMetadata{
			CausationID:   longest,
			CorrelationID: longest,
			Headers:       map[string]any{"attempt": float64(3), "replayed": true},
		})

		_, err := log.Append(mdCtx, stream, shared.ExpectNoStream, pending(1))
		require.NoError(t, err)

		events, err := log.ReadStream(ctx, stream)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, longest, events[0].CorrelationID)
		assert.Equal(t, longest, events[0].CausationID)
		assert.Equal(t, map[string]any{"attempt": float64(3), "replayed": true}, events[0].Headers)
	})

	t.Run("unknown stream is not found", func(t *testing.T) {
		_, err := log.ReadStream(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("creating an existing stream fails", func(t *testing.T) {
		stream := uuid.New()
		_, err := log.Append(ctx, stream, shared.ExpectNoStream, pending(1))
		require.NoError(t, err)

		_, err = log.Append(ctx, stream, shared.ExpectNoStream, pending(1))
		assert.ErrorIs(t, err, shared.ErrStreamAlreadyExists)
	})

	t.Run("stale expected version conflicts", func(t *testing.T) {
		stream := uuid.New()
		_, err := log.Append(ctx, stream, shared.ExpectNoStream, pending(1))
		require.NoError(t, err)
		_, err = log.Append(ctx, stream, 1, pending(1))
		require.NoError(t, err)

		_, err = log.Append(ctx, stream, 1, pending(1))
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("concurrent writers on one version: exactly one wins", func(t *testing.T) {
		stream := uuid.New()
		_, err := log.Append(ctx, stream, shared.ExpectNoStream, pending(1))
		require.NoError(t, err)

		const writers = 8
		var wg sync.WaitGroup
		errs := make([]error, writers)
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = log.Append(ctx, stream, 1, pending(1))
			}()
		}
		wg.Wait()

		var wins, conflicts int
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, shared.ErrConcurrencyConflict):
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, writers-1, conflicts)

		events, err := log.ReadStream(ctx, stream)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("global sequence is gap free across concurrent streams", func(t *testing.T) {
		tdb.CleanTables()

		const streams = 10
		var wg sync.WaitGroup
		for range streams {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := log.Append(ctx, uuid.New(), shared.ExpectNoStream, pending(3))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		hwm, err := log.HighWaterMark(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(streams*3), hwm)

		events, err := log.ReadCommitRange(ctx, 0, hwm)
		require.NoError(t, err)
		require.Len(t, events, streams*3)
		for i, evt := range events {
			assert.Equal(t, int64(i+1), evt.Sequence)
		}

		// one append is contiguous in the commit order
		for i := 0; i < len(events); i += 3 {
			assert.Equal(t, events[i].StreamID, events[i+2].StreamID)
			assert.Equal(t, int64(1), events[i].Version)
			assert.Equal(t, int64(3), events[i+2].Version)
		}
	})

	t.Run("commit range is half open", func(t *testing.T) {
		tdb.CleanTables()
		_, err := log.Append(ctx, uuid.New(), shared.ExpectNoStream, pending(5))
		require.NoError(t, err)

		events, err := log.ReadCommitRange(ctx, 2, 4)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, int64(3), events[0].Sequence)
		assert.Equal(t, int64(4), events[1].Sequence)

		events, err = log.ReadCommitRange(ctx, 5, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestGormCheckpointStore_Postgres(t *testing.T) {
	tdb := NewTestDB(t)
	store := eventstore.NewGormCheckpointStore(tdb.DB)
	ctx := testutil.ContextWithTimeout(t, 2*time.Minute)

	_, ok, err := store.Load(ctx, "history")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "history", 12))
	require.NoError(t, store.Save(ctx, "history", 30))
	require.NoError(t, store.Save(ctx, "workflow", 4))

	pos, ok, err := store.Load(ctx, "history")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(30), pos)

	pos, ok, err = store.Load(ctx, "workflow")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(4), pos)
}
