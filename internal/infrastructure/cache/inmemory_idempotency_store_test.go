package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := newInMemoryIdempotencyStore(time.Hour, clock.Now)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()

	t.Run("marks new message", func(t *testing.T) {
		isNew, err := store.MarkProcessed(ctx, "msg-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})

	t.Run("rejects live marker", func(t *testing.T) {
		isNew, err := store.MarkProcessed(ctx, "msg-1", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)
	})

	t.Run("reclaims expired marker", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "msg-2", time.Minute)
		require.NoError(t, err)
		clock.Advance(2 * time.Minute)

		isNew, err := store.MarkProcessed(ctx, "msg-2", time.Minute)
		require.NoError(t, err)
		assert.True(t, isNew)
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "msg-1")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	processed, err = store.IsProcessed(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, processed)

	clock.Advance(time.Minute)
	processed, err = store.IsProcessed(ctx, "msg-1")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStore_Unmark(t *testing.T) {
	store, _ := newClockedStore(t)
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "msg-1", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Unmark(ctx, "msg-1"))

	isNew, err := store.MarkProcessed(ctx, "msg-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)

	assert.NoError(t, store.Unmark(ctx, "never-marked"))
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()

	_, _ = store.MarkProcessed(ctx, "short", time.Minute)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	require.Equal(t, 2, store.Size())

	clock.Advance(10 * time.Minute)
	store.sweep()

	assert.Equal(t, 1, store.Size())
}

func TestInMemoryIdempotencyStore_ConcurrentClaims(t *testing.T) {
	store, _ := newClockedStore(t)
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.MarkProcessed(ctx, "contended", time.Hour); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
