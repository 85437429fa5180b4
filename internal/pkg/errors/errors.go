package errors

import "errors"

// Common application errors
var (
	// ErrNotFound is used when a record or resource is absent.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized is used for authorization failures (bad token, no identity).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is used when a user acts on a resource they do not own.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is used for input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is used for state conflicts (e.g. starting an exam that
	// already has an in-progress attempt).
	ErrConflict = errors.New("resource state conflict")

	// ErrInvalidState is used when a mutation arrives after the attempt has
	// left in_progress. Background writers treat it as a no-op; handlers map
	// it to a conflict.
	ErrInvalidState = errors.New("attempt is not in progress")

	// ErrSubmitFailed is used when the final submission write fails. The
	// attempt stays in_progress so the caller can retry without losing answers.
	ErrSubmitFailed = errors.New("submit failed")
)
