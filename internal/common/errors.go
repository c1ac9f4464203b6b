package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrorValidation    = errors.New("validation error")
	ErrVersionConflict = errors.New("version conflict")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Snapshot errors.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	ErrDecryption        = errors.New("decryption failed")

	// Sync errors.
	ErrSyncContention = errors.New("sync contention: retry budget exhausted")
)

// ConflictError reports a rejected compare-and-swap push. It matches
// ErrVersionConflict via errors.Is.
type ConflictError struct {
	Expected int64
	Current  int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected base %d, current %d", e.Expected, e.Current)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

// IsConflict reports whether err is a rejected compare-and-swap push.
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
