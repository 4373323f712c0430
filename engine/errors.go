/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All sentinel and structured errors in one place. The leave package wraps
  these with domain context; the API layer maps them onto HTTP status codes
  via the helper predicates at the bottom.
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
	// ErrInvalidWindow is returned for a malformed day range (end before
	// start, or missing boundary).
	ErrInvalidWindow = errors.New("invalid window: end before start")

	// ErrNoPlansSelected is returned when a leave request names no plans.
	ErrNoPlansSelected = errors.New("no meal plans selected")

	// ErrLeaveConflict is returned when a new leave overlaps an existing
	// pending or approved leave on a shared plan.
	ErrLeaveConflict = errors.New("overlapping leave already exists")

	// ErrConcurrentModification is returned when optimistic versioning
	// detects a racing write on a membership.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrLeaveNotFound / ErrPlanNotFound / ErrMembershipNotFound /
	// ErrOffDayNotFound mark missing records.
	ErrLeaveNotFound      = errors.New("leave request not found")
	ErrPlanNotFound       = errors.New("meal plan not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrOffDayNotFound     = errors.New("off day not found")

	// ErrDuplicateTracking is returned when an extension has already been
	// applied for the same (leave, plan, revision). Expected on retries.
	ErrDuplicateTracking = errors.New("extension already applied for revision")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports rejected user input, before any computation runs.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConflictError reports a duplicate-leave conflict with the offending leave.
type ConflictError struct {
	ExistingLeaveID string
	PlanID          string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("overlapping leave %s already covers plan %s",
		e.ExistingLeaveID, e.PlanID)
}

func (e *ConflictError) Unwrap() error { return ErrLeaveConflict }

// TransitionError reports a disallowed lifecycle transition.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition leave from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrNoPlansSelected) ||
		errors.Is(err, ErrLeaveConflict) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLeaveNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrMembershipNotFound) ||
		errors.Is(err, ErrOffDayNotFound)
}

// IsConflict returns true for duplicate-leave conflicts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrLeaveConflict)
}
