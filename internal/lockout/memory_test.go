package lockout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AddFailureIncrements(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		count, locked, err := store.AddFailure(ctx, "key")
		require.NoError(t, err)
		assert.False(t, locked)
		assert.Equal(t, want, count)
	}
}

func TestMemoryStore_AddFailureGuardedWhileLocked(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	until := time.Now().Add(time.Minute)
	installed, err := store.ImposeLock(ctx, "key", until)
	require.NoError(t, err)
	require.True(t, installed)

	count, locked, err := store.AddFailure(ctx, "key")
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Equal(t, 0, count)
}

func TestMemoryStore_ImposeLockDoesNotExtendActiveLock(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := time.Now().Add(time.Minute)
	installed, err := store.ImposeLock(ctx, "key", first)
	require.NoError(t, err)
	assert.True(t, installed)

	installed, err = store.ImposeLock(ctx, "key", first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, installed, "an active lock is never replaced")

	until, err := store.LockedUntil(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, first, until)
}

func TestMemoryStore_ClearRemovesRecord(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, err := store.AddFailure(ctx, "key")
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx, "key"))

	until, err := store.LockedUntil(ctx, "key")
	require.NoError(t, err)
	assert.True(t, until.IsZero())

	count, _, err := store.AddFailure(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryStore_SweepDropsOnlyInertRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Counter still active, lock expired: stays (counter is observable).
	_, _, err := store.AddFailure(ctx, "counting")
	require.NoError(t, err)

	// Active lock: stays.
	_, err = store.ImposeLock(ctx, "locked", time.Now().Add(time.Hour))
	require.NoError(t, err)

	// Expired lock with zero counter: swept.
	_, err = store.ImposeLock(ctx, "expired", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	store.mu.Lock()
	_, hasCounting := store.records["counting"]
	_, hasLocked := store.records["locked"]
	_, hasExpired := store.records["expired"]
	store.mu.Unlock()

	assert.True(t, hasCounting)
	assert.True(t, hasLocked)
	assert.False(t, hasExpired)
}

func TestMemoryStore_ConcurrentAddFailureLosesNoUpdates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = store.AddFailure(ctx, "key")
		}()
	}
	wg.Wait()

	count, _, err := store.AddFailure(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, workers+1, count)
}
