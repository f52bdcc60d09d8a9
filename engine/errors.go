/*
errors.go - Centralized error types for the ranking engine

PURPOSE:
  All engine error kinds in one place. The surrounding HTTP layer maps
  each kind to a response; no raw internal error crosses that boundary
  unclassified.

ERROR CATEGORIES:
  1. Authorization - non-admin attempting an admin-only operation
  2. Input         - malformed dates, unknown users/types
  3. Persistence   - snapshot write failures (transient, retryable)

USAGE:
  if errors.Is(err, engine.ErrForbidden) {
      // 403, not retried
  }
  if engine.IsRetryable(err) {
      // operator may retry the close
  }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrForbidden is returned when a non-admin caller attempts an
	// admin-only operation (closing a period). Surfaced as a denial,
	// never retried.
	ErrForbidden = errors.New("forbidden: admin privileges required")

	// ErrInvalidDateRange classifies an unparseable custom date range.
	// Note the range-resolution policy is to silently drop the filter,
	// so this sentinel only appears where a range is mandatory.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrSnapshotFailed wraps persistence failures during the
	// delete/insert/mark-closed sequence. The period is left open and
	// the close is safe to retry.
	ErrSnapshotFailed = errors.New("snapshot write failed")

	// ErrPeriodNotFound is returned when a referenced period doesn't exist.
	ErrPeriodNotFound = errors.New("period not found")

	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrActivityTypeNotFound is returned when a referenced activity
	// type doesn't exist.
	ErrActivityTypeNotFound = errors.New("activity type not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SnapshotError reports which period failed to close and why.
type SnapshotError struct {
	PeriodType PeriodType
	Range      DateRange
	Cause      error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("closing %s period %s: %v", e.PeriodType, e.Range, e.Cause)
}

func (e *SnapshotError) Unwrap() error { return ErrSnapshotFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSnapshotFailed)
}

// IsClientError returns true if the error is due to invalid caller input
// rather than an engine/persistence fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrActivityTypeNotFound)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrActivityTypeNotFound)
}
