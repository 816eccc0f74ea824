package models

import "time"

// Account represents a directory entry that can be authenticated against.
// Both the username and the email address resolve to the same account, so
// lockout state is always keyed on the stable ID once resolution succeeds.
type Account struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// AttemptRecord holds the per-key lockout tracking state: a consecutive
// failure counter and an optional lock expiry. A record with a zero counter
// and no active lock is equivalent to no record at all.
type AttemptRecord struct {
	Key          string     `db:"attempt_key"`
	FailureCount int        `db:"failure_count"`
	LockedUntil  *time.Time `db:"locked_until"`
	UpdatedAt    time.Time  `db:"updated_at"`
}
