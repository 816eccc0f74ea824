// Package lockout implements per-account failed-attempt tracking and
// temporary lockout decisions for the authentication pipeline.
package lockout

import (
	"context"
	"log/slog"
	"time"
)

// Outcome classifies the result of the underlying credential check.
type Outcome int

const (
	// OutcomeSuccess means the credential check passed.
	OutcomeSuccess Outcome = iota
	// OutcomeFailure means the credential check failed for any reason
	// (wrong password, unknown username, unknown email). The causes are
	// deliberately not distinguished.
	OutcomeFailure
	// OutcomeLockedOut means the caller's pre-check found an active lock
	// and the credential check was skipped entirely.
	OutcomeLockedOut
)

// Reason explains a rejection.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonInvalidCredential maps to the generic failure message.
	ReasonInvalidCredential
	// ReasonTooManyAttempts means the account is temporarily locked.
	ReasonTooManyAttempts
)

// Decision is the tracker's verdict on a single authentication attempt.
type Decision struct {
	Allowed     bool
	Reason      Reason
	LockImposed bool          // true only on the attempt that triggered the lock
	RetryAfter  time.Duration // remaining lock duration when rejected for lockout
}

// Config holds lockout policy settings.
type Config struct {
	MaxFailures     int           // failures allowed before lockout
	LockoutDuration time.Duration // how long a lock lasts once imposed
}

// DefaultConfig returns the stock policy: three failures, five minute lock.
func DefaultConfig() Config {
	return Config{
		MaxFailures:     3,
		LockoutDuration: 5 * time.Minute,
	}
}

// Store persists attempt records. Implementations must make AddFailure
// atomic per key: concurrent failures for the same key may never observe
// the same pre-increment count.
type Store interface {
	// LockedUntil returns the lock expiry for key, or the zero time when
	// no lock was ever imposed.
	LockedUntil(ctx context.Context, key string) (time.Time, error)
	// AddFailure increments the failure counter and returns the new count.
	// If the key is currently locked the counter is left untouched and
	// locked reports true.
	AddFailure(ctx context.Context, key string) (count int, locked bool, err error)
	// ImposeLock sets the lock expiry and zeroes the counter. An already
	// active lock is never extended; the earlier expiry wins. installed
	// reports whether this call actually placed the lock, so concurrent
	// attempts that both cross the threshold agree on a single winner.
	ImposeLock(ctx context.Context, key string, until time.Time) (installed bool, err error)
	// Clear removes all state for key.
	Clear(ctx context.Context, key string) error
}

// Tracker decides, per attempt, whether authentication should be rejected
// outright (locked), counted as a failure, or cause a reset (success).
type Tracker struct {
	store  Store
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a Tracker with the given store and policy.
func NewTracker(store Store, config Config, logger *slog.Logger) *Tracker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 3
	}
	if config.LockoutDuration <= 0 {
		config.LockoutDuration = 5 * time.Minute
	}
	return &Tracker{
		store:  store,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// IsLocked reports whether key currently has an active lock and how long it
// remains. Callers use this as a pre-check so the credential verification is
// skipped entirely for locked accounts.
//
// Store read errors fail open: the attempt proceeds and the error is logged.
func (t *Tracker) IsLocked(ctx context.Context, key string) (bool, time.Duration) {
	until, err := t.store.LockedUntil(ctx, key)
	if err != nil {
		t.logger.Error("lockout store read failed, failing open", slog.Any("error", err))
		return false, 0
	}

	now := t.now()
	if until.After(now) {
		return true, until.Sub(now)
	}
	return false, 0
}

// Evaluate applies the decision protocol for one authentication attempt:
//
//  1. An active lock rejects the attempt without touching the counter.
//  2. A success clears the record entirely.
//  3. A failure increments the counter; the MaxFailures-th failure imposes
//     the lock, resets the counter to zero and rejects.
func (t *Tracker) Evaluate(ctx context.Context, key string, outcome Outcome) Decision {
	if locked, remaining := t.IsLocked(ctx, key); locked {
		return Decision{Reason: ReasonTooManyAttempts, RetryAfter: remaining}
	}

	switch outcome {
	case OutcomeLockedOut:
		// The caller pre-checked an active lock; honor it even if it
		// expired between the pre-check and this call.
		return Decision{Reason: ReasonTooManyAttempts}

	case OutcomeSuccess:
		if err := t.store.Clear(ctx, key); err != nil {
			t.logger.Error("failed to clear attempt record", slog.Any("error", err))
		}
		return Decision{Allowed: true}

	default:
		return t.recordFailure(ctx, key)
	}
}

func (t *Tracker) recordFailure(ctx context.Context, key string) Decision {
	count, locked, err := t.store.AddFailure(ctx, key)
	if err != nil {
		// The rejection stands regardless; only the bookkeeping is lost.
		t.logger.Error("failed to record attempt failure", slog.Any("error", err))
		return Decision{Reason: ReasonInvalidCredential}
	}
	if locked {
		// A concurrent attempt imposed the lock between the lock check
		// and the increment.
		return Decision{Reason: ReasonTooManyAttempts}
	}

	if count >= t.config.MaxFailures {
		until := t.now().Add(t.config.LockoutDuration)
		installed, err := t.store.ImposeLock(ctx, key, until)
		if err != nil {
			t.logger.Error("failed to impose lock", slog.Any("error", err))
			return Decision{Reason: ReasonInvalidCredential}
		}
		if !installed {
			// A concurrent attempt crossed the threshold first and its
			// lock won; this attempt must not fire the lockout side
			// effects a second time.
			return Decision{Reason: ReasonTooManyAttempts}
		}
		t.logger.Warn("account locked after repeated failures",
			slog.Int("failures", count),
			slog.Duration("lockout_duration", t.config.LockoutDuration))
		return Decision{
			Reason:      ReasonTooManyAttempts,
			LockImposed: true,
			RetryAfter:  t.config.LockoutDuration,
		}
	}

	return Decision{Reason: ReasonInvalidCredential}
}
