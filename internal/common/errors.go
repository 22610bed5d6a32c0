package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Client-fixable input problems.
	ErrValidation = errors.New("validation error")

	// Authentication failures (missing, malformed or unknown bearer).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict is a persistence race the caller resolves by re-reading state.
	ErrConflict = errors.New("conflict")

	// ErrIntegrity means an AEAD tag or AAD mismatch, or an unknown key version.
	// It signals misconfiguration or tampering and must never be swallowed.
	ErrIntegrity = errors.New("integrity check failed")

	// Generation pipeline errors.
	ErrMissingProviderKey   = errors.New("no image provider key configured")
	ErrProviderTimeout      = errors.New("image provider timed out")
	ErrProviderAuthRejected = errors.New("image provider rejected the credential")
	ErrProviderFailure      = errors.New("image provider failure")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrStorageFailure       = errors.New("storage failure")
	ErrPersistenceFailure   = errors.New("persistence failure")

	// Token lifecycle errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// SafetyRejectedError reports the first free-text field that failed the
// safety screen. It matches ErrSafetyRejected with errors.Is.
type SafetyRejectedError struct {
	Field  string
	Reason string
}

// ErrSafetyRejected is the sentinel matched by every SafetyRejectedError.
var ErrSafetyRejected = errors.New("rejected by safety screen")

func (e *SafetyRejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Field, e.Reason)
}

func (e *SafetyRejectedError) Is(target error) bool {
	return target == ErrSafetyRejected
}
