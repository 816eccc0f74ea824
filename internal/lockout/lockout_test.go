package lockout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests control time for both the tracker and the store.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
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

func newTestTracker(config Config) (*Tracker, *MemoryStore, *fakeClock) {
	clock := newFakeClock()
	store := NewMemoryStore()
	store.now = clock.Now

	tracker := NewTracker(store, config, slog.Default())
	tracker.now = clock.Now
	return tracker, store, clock
}

func TestTracker_LocksOnMaxFailuresExactly(t *testing.T) {
	tracker, store, _ := newTestTracker(Config{MaxFailures: 3, LockoutDuration: 5 * time.Minute})
	ctx := context.Background()

	// The first maxFailures-1 failures reject with the generic reason.
	for i := 0; i < 2; i++ {
		dec := tracker.Evaluate(ctx, "alice", OutcomeFailure)
		assert.False(t, dec.Allowed)
		assert.Equal(t, ReasonInvalidCredential, dec.Reason)
		assert.False(t, dec.LockImposed)
	}

	// The third failure is the one that locks.
	dec := tracker.Evaluate(ctx, "alice", OutcomeFailure)
	assert.False(t, dec.Allowed)
	assert.Equal(t, ReasonTooManyAttempts, dec.Reason)
	assert.True(t, dec.LockImposed)
	assert.Equal(t, 5*time.Minute, dec.RetryAfter)

	// The lock becomes the active signal; the counter resets to zero.
	store.mu.Lock()
	rec := store.records["alice"]
	store.mu.Unlock()
	require.NotNil(t, rec)
	assert.Equal(t, 0, rec.failureCount)
}

func TestTracker_LockedRejectsRegardlessOfOutcome(t *testing.T) {
	tracker, store, _ := newTestTracker(Config{MaxFailures: 2, LockoutDuration: 5 * time.Minute})
	ctx := context.Background()

	tracker.Evaluate(ctx, "alice", OutcomeFailure)
	tracker.Evaluate(ctx, "alice", OutcomeFailure)

	locked, remaining := tracker.IsLocked(ctx, "alice")
	assert.True(t, locked)
	assert.Equal(t, 5*time.Minute, remaining)

	// Even a correct password is rejected while the lock is active, and
	// the counter stays untouched.
	dec := tracker.Evaluate(ctx, "alice", OutcomeSuccess)
	assert.False(t, dec.Allowed)
	assert.Equal(t, ReasonTooManyAttempts, dec.Reason)

	dec = tracker.Evaluate(ctx, "alice", OutcomeFailure)
	assert.False(t, dec.Allowed)
	assert.Equal(t, ReasonTooManyAttempts, dec.Reason)

	store.mu.Lock()
	rec := store.records["alice"]
	store.mu.Unlock()
	require.NotNil(t, rec)
	assert.Equal(t, 0, rec.failureCount)
}

func TestTracker_SuccessClearsCounter(t *testing.T) {
	tracker, store, _ := newTestTracker(Config{MaxFailures: 3, LockoutDuration: 5 * time.Minute})
	ctx := context.Background()

	tracker.Evaluate(ctx, "alice", OutcomeFailure)
	tracker.Evaluate(ctx, "alice", OutcomeFailure)

	dec := tracker.Evaluate(ctx, "alice", OutcomeSuccess)
	assert.True(t, dec.Allowed)

	store.mu.Lock()
	_, exists := store.records["alice"]
	store.mu.Unlock()
	assert.False(t, exists, "record should be gone after success")

	// A fresh failure cycle starts at one.
	dec = tracker.Evaluate(ctx, "alice", OutcomeFailure)
	assert.Equal(t, ReasonInvalidCredential, dec.Reason)
}

func TestTracker_LockExpiryStartsFreshCycle(t *testing.T) {
	tracker, store, clock := newTestTracker(Config{MaxFailures: 3, LockoutDuration: 5 * time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tracker.Evaluate(ctx, "alice", OutcomeFailure)
	}
	locked, _ := tracker.IsLocked(ctx, "alice")
	require.True(t, locked)

	clock.Advance(5*time.Minute + time.Second)

	locked, _ = tracker.IsLocked(ctx, "alice")
	assert.False(t, locked)

	// Attempts are evaluated normally again; a failure starts at count 1.
	dec := tracker.Evaluate(ctx, "alice", OutcomeFailure)
	assert.Equal(t, ReasonInvalidCredential, dec.Reason)

	store.mu.Lock()
	rec := store.records["alice"]
	store.mu.Unlock()
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.failureCount)
}

// TestTracker_ScenarioThreeFailuresThenLock walks the full lifecycle with
// maxFailures=3 and a 300 second lockout.
func TestTracker_ScenarioThreeFailuresThenLock(t *testing.T) {
	tracker, _, clock := newTestTracker(Config{MaxFailures: 3, LockoutDuration: 300 * time.Second})
	ctx := context.Background()

	// t=0s, t=1s: wrong password twice.
	dec := tracker.Evaluate(ctx, "alice", OutcomeFailure)
	assert.Equal(t, ReasonInvalidCredential, dec.Reason)
	clock.Advance(time.Second)
	dec = tracker.Evaluate(ctx, "alice", OutcomeFailure)
	assert.Equal(t, ReasonInvalidCredential, dec.Reason)

	// t=2s: third wrong password locks until t=302s.
	clock.Advance(time.Second)
	dec = tracker.Evaluate(ctx, "alice", OutcomeFailure)
	assert.Equal(t, ReasonTooManyAttempts, dec.Reason)
	assert.True(t, dec.LockImposed)

	// t=3s: correct password, still rejected.
	clock.Advance(time.Second)
	dec = tracker.Evaluate(ctx, "alice", OutcomeSuccess)
	assert.False(t, dec.Allowed)
	assert.Equal(t, ReasonTooManyAttempts, dec.Reason)

	// t=303s: lock expired, correct password allowed.
	clock.Advance(300 * time.Second)
	dec = tracker.Evaluate(ctx, "alice", OutcomeSuccess)
	assert.True(t, dec.Allowed)
}

func TestTracker_LockIsNotExtendedByAttempts(t *testing.T) {
	tracker, store, clock := newTestTracker(Config{MaxFailures: 1, LockoutDuration: 5 * time.Minute})
	ctx := context.Background()

	tracker.Evaluate(ctx, "alice", OutcomeFailure)

	store.mu.Lock()
	originalExpiry := store.records["alice"].lockedUntil
	store.mu.Unlock()

	clock.Advance(time.Minute)
	tracker.Evaluate(ctx, "alice", OutcomeFailure)
	tracker.Evaluate(ctx, "alice", OutcomeSuccess)

	store.mu.Lock()
	currentExpiry := store.records["alice"].lockedUntil
	store.mu.Unlock()
	assert.Equal(t, originalExpiry, currentExpiry)
}

func TestTracker_ConcurrentFailuresImposeSingleLock(t *testing.T) {
	tracker, store, _ := newTestTracker(Config{MaxFailures: 3, LockoutDuration: 5 * time.Minute})
	ctx := context.Background()

	const attempts = 3
	decisions := make([]Decision, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decisions[i] = tracker.Evaluate(ctx, "alice", OutcomeFailure)
		}(i)
	}
	wg.Wait()

	imposed := 0
	for _, dec := range decisions {
		assert.False(t, dec.Allowed)
		if dec.LockImposed {
			imposed++
		}
	}
	assert.Equal(t, 1, imposed, "exactly one attempt should trigger the lock")

	locked, _ := tracker.IsLocked(ctx, "alice")
	assert.True(t, locked)

	store.mu.Lock()
	rec := store.records["alice"]
	store.mu.Unlock()
	require.NotNil(t, rec)
	assert.Equal(t, 0, rec.failureCount)
}

// gatedStore delays ImposeLock until every in-flight failure has been
// counted, forcing the interleaving where several attempts cross the
// threshold before any lock lands.
type gatedStore struct {
	*MemoryStore
	pending sync.WaitGroup
}

func (s *gatedStore) AddFailure(ctx context.Context, key string) (int, bool, error) {
	count, locked, err := s.MemoryStore.AddFailure(ctx, key)
	s.pending.Done()
	return count, locked, err
}

func (s *gatedStore) ImposeLock(ctx context.Context, key string, until time.Time) (bool, error) {
	s.pending.Wait()
	return s.MemoryStore.ImposeLock(ctx, key, until)
}

func TestTracker_ThresholdRaceImposesLockOnce(t *testing.T) {
	store := &gatedStore{MemoryStore: NewMemoryStore()}
	tracker := NewTracker(store, Config{MaxFailures: 3, LockoutDuration: 5 * time.Minute}, slog.Default())
	ctx := context.Background()

	// Two failures already on record; the next two attempts race across
	// the threshold with counts 3 and 4.
	for i := 0; i < 2; i++ {
		_, _, err := store.MemoryStore.AddFailure(ctx, "alice")
		require.NoError(t, err)
	}

	const attempts = 2
	store.pending.Add(attempts)
	decisions := make([]Decision, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decisions[i] = tracker.Evaluate(ctx, "alice", OutcomeFailure)
		}(i)
	}
	wg.Wait()

	imposed := 0
	for _, dec := range decisions {
		assert.False(t, dec.Allowed)
		assert.Equal(t, ReasonTooManyAttempts, dec.Reason)
		if dec.LockImposed {
			imposed++
		}
	}
	assert.Equal(t, 1, imposed, "the losing attempt must not fire lockout side effects")
}

// failingStore simulates an unreachable backing store.
type failingStore struct{}

func (f *failingStore) LockedUntil(ctx context.Context, key string) (time.Time, error) {
	return time.Time{}, errors.New("store unavailable")
}

func (f *failingStore) AddFailure(ctx context.Context, key string) (int, bool, error) {
	return 0, false, errors.New("store unavailable")
}

func (f *failingStore) ImposeLock(ctx context.Context, key string, until time.Time) (bool, error) {
	return false, errors.New("store unavailable")
}

func (f *failingStore) Clear(ctx context.Context, key string) error {
	return errors.New("store unavailable")
}

func TestTracker_StoreErrorsFailOpen(t *testing.T) {
	tracker := NewTracker(&failingStore{}, DefaultConfig(), slog.Default())
	ctx := context.Background()

	locked, _ := tracker.IsLocked(ctx, "alice")
	assert.False(t, locked, "unreachable store must not block logins")

	// A success still goes through; a failure is still rejected with the
	// generic reason even though nothing could be recorded.
	dec := tracker.Evaluate(ctx, "alice", OutcomeSuccess)
	assert.True(t, dec.Allowed)

	dec = tracker.Evaluate(ctx, "alice", OutcomeFailure)
	assert.False(t, dec.Allowed)
	assert.Equal(t, ReasonInvalidCredential, dec.Reason)
}
