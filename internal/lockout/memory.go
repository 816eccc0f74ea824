package lockout

import (
	"context"
	"sync"
	"time"
)

// record is the in-memory attempt state for one key.
type record struct {
	failureCount int
	lockedUntil  time.Time
}

// MemoryStore is a mutex-guarded in-process Store. It is suitable for
// single-node deployments and for tests; the mutex serializes the
// read-decide-write sequence so concurrent failures cannot lose updates.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// LockedUntil returns the lock expiry for key, zero time when absent.
func (s *MemoryStore) LockedUntil(ctx context.Context, key string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return time.Time{}, nil
	}
	return rec.lockedUntil, nil
}

// AddFailure increments the failure counter unless the key is locked.
func (s *MemoryStore) AddFailure(ctx context.Context, key string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		rec = &record{}
		s.records[key] = rec
	}
	if rec.lockedUntil.After(s.now()) {
		return rec.failureCount, true, nil
	}

	rec.failureCount++
	return rec.failureCount, false, nil
}

// ImposeLock sets the lock expiry and zeroes the counter. An active lock is
// never replaced, so concurrent attempts cannot extend it; only the call
// that actually placed the lock reports installed.
func (s *MemoryStore) ImposeLock(ctx context.Context, key string, until time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		rec = &record{}
		s.records[key] = rec
	}
	if rec.lockedUntil.After(s.now()) {
		return false, nil
	}

	rec.lockedUntil = until
	rec.failureCount = 0
	return true, nil
}

// Clear removes all state for key.
func (s *MemoryStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

// Sweep drops records that carry no observable state: a zero counter and no
// active lock. Called periodically by the cleanup manager.
func (s *MemoryStore) Sweep(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for key, rec := range s.records {
		if rec.failureCount == 0 && !rec.lockedUntil.After(now) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}
