package domain

import "errors"

var (
	// ErrDuplicateKey is returned by storage when a unique constraint rejects a write.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("not found")

	// ErrJobRunning means a run for the same job id is still in flight.
	ErrJobRunning = errors.New("job already running")

	// ErrUnknownJob means no job is registered under the given name.
	ErrUnknownJob = errors.New("unknown job")

	// ErrSchedulerStopped means shutdown has begun and no new runs start.
	ErrSchedulerStopped = errors.New("scheduler stopped")
)

// Auth errors
var (
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInactiveUser         = errors.New("inactive user")
	ErrAppleNotConfigured   = errors.New("apple sign in is not configured")
	ErrAppleTokenRejected   = errors.New("apple identity token rejected")
	ErrAppleKeysUnavailable = errors.New("apple public keys unavailable")
)
