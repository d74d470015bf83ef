package types

import "errors"

var (
	// ErrConfigResolution is returned when a target's overrides or filters cannot be
	// accepted, e.g. a cyclic or over-deep filter tree. It is raised when the
	// configuration is written, never during evaluation.
	ErrConfigResolution = errors.New("config resolution failed")
	// ErrCooldownExceeded is returned when a rate window is exhausted.
	ErrCooldownExceeded = errors.New("cooldown exceeded")
	// ErrQuotaExceeded is returned when a tier ceiling would be exceeded.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrPersistenceUnavailable is returned when the store cannot be reached.
	// The event was not applied and may be redelivered.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	ErrTargetNotFound = errors.New("target not found")
	ErrEntryNotFound  = errors.New("starred entry not found")
)
