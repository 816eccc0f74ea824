package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrInvalidCredential covers every credential failure cause (unknown
	// username, unknown email, wrong password) so callers cannot distinguish
	// them. ErrTooManyAttempts means the account is temporarily locked.
	ErrInvalidCredential = errors.New("invalid credential")
	ErrTooManyAttempts   = errors.New("too many failed attempts")
)
