package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nmelker/bastion/internal/database"
)

// LockoutRepository is the PostgreSQL-backed attempt record store. All
// counter mutations run as single statements so concurrent attempts for the
// same key cannot lose updates.
type LockoutRepository struct {
	pool *pgxpool.Pool
}

// NewLockoutRepository creates a new LockoutRepository.
func NewLockoutRepository(db *database.DB) *LockoutRepository {
	return &LockoutRepository{pool: db.Pool}
}

// LockedUntil returns the lock expiry for key, zero time when no row exists
// or no lock was ever imposed.
func (r *LockoutRepository) LockedUntil(ctx context.Context, key string) (time.Time, error) {
	query := `SELECT locked_until FROM login_lockouts WHERE attempt_key = $1`

	var until *time.Time
	err := r.pool.QueryRow(ctx, query, key).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if until == nil {
		return time.Time{}, nil
	}
	return *until, nil
}

// AddFailure atomically increments the failure counter unless the key is
// locked. The guard lives in the statement itself so a lock imposed by a
// concurrent attempt is honored without a read-check-write race.
func (r *LockoutRepository) AddFailure(ctx context.Context, key string) (int, bool, error) {
	query := `
		INSERT INTO login_lockouts AS l (attempt_key, failure_count, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (attempt_key) DO UPDATE
		SET failure_count = CASE WHEN l.locked_until > now() THEN l.failure_count ELSE l.failure_count + 1 END,
		    updated_at = CASE WHEN l.locked_until > now() THEN l.updated_at ELSE now() END
		RETURNING failure_count, (locked_until IS NOT NULL AND locked_until > now())
	`

	var count int
	var locked bool
	if err := r.pool.QueryRow(ctx, query, key).Scan(&count, &locked); err != nil {
		return 0, false, err
	}
	return count, locked, nil
}

// ImposeLock sets the lock expiry and zeroes the counter. The predicate
// skips rows with an active lock, so the earliest expiry always wins and
// concurrent attempts cannot extend it. The affected-row count tells the
// caller whether this statement was the one that placed the lock.
func (r *LockoutRepository) ImposeLock(ctx context.Context, key string, until time.Time) (bool, error) {
	query := `
		INSERT INTO login_lockouts AS l (attempt_key, failure_count, locked_until, updated_at)
		VALUES ($1, 0, $2, now())
		ON CONFLICT (attempt_key) DO UPDATE
		SET failure_count = 0, locked_until = $2, updated_at = now()
		WHERE l.locked_until IS NULL OR l.locked_until <= now()
	`

	tag, err := r.pool.Exec(ctx, query, key, until)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Clear removes all tracking state for key.
func (r *LockoutRepository) Clear(ctx context.Context, key string) error {
	query := `DELETE FROM login_lockouts WHERE attempt_key = $1`
	_, err := r.pool.Exec(ctx, query, key)
	return err
}

// Sweep deletes rows that carry no observable state: a zero counter and no
// active lock. Rows with a live counter stay, since deleting one would reset
// an account's failure history.
func (r *LockoutRepository) Sweep(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM login_lockouts
		WHERE failure_count = 0 AND (locked_until IS NULL OR locked_until <= now())
	`

	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
