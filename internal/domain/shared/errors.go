// Package shared contains common domain types, errors and events
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound = errors.New("entity not found")
	ErrConflict = errors.New("entity already exists")

	// Validation errors
	ErrValidation = errors.New("validation error")
	ErrInvalidID  = errors.New("invalid ID")
	ErrEmptyValue = errors.New("value cannot be empty")
	ErrTooLong    = errors.New("value too long")

	// State errors
	ErrInvalidTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Infrastructure errors
	ErrInternal = errors.New("internal error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progression", "catalog", "user"
	Op      string // Operation that failed, e.g., "Approve", "Create"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Progression domain errors
var (
	ErrRecordNotFound       = NewDomainError("progression", "Find", ErrNotFound, "skill record not found")
	ErrRecordAlreadyExists  = NewDomainError("progression", "Create", ErrConflict, "skill already started by this user")
	ErrInvalidStatus        = NewDomainError("progression", "Validate", ErrValidation, "invalid skill status")
	ErrRecordFinalized      = NewDomainError("progression", "ChangeStatus", ErrInvalidTransition, "skill record is already validated or rejected")
	ErrAcquiredNotRemovable = NewDomainError("progression", "Remove", ErrInvalidTransition, "an acquired skill cannot be removed")
	ErrNotPending           = NewDomainError("progression", "Decide", ErrInvalidTransition, "skill record is not pending validation")
	ErrNotRejected          = NewDomainError("progression", "Restart", ErrInvalidTransition, "only a rejected skill can be restarted")
	ErrReasonRequired       = NewDomainError("progression", "Reject", ErrEmptyValue, "rejection reason is required")
	ErrReasonTooLong        = NewDomainError("progression", "Reject", ErrTooLong, "rejection reason is too long")
)

// Catalog domain errors
var (
	ErrSkillNotFound = NewDomainError("catalog", "Find", ErrNotFound, "skill not found")
	ErrSkillInactive = NewDomainError("catalog", "Find", ErrNotFound, "skill not found or inactive")
)

// User domain errors
var (
	ErrUserNotFound     = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrAdminRequired    = NewDomainError("user", "Authorize", ErrForbidden, "administrator role required")
	ErrNoActor          = NewDomainError("user", "Authorize", ErrUnauthorized, "caller identity is missing")
	ErrUnknownValidator = NewDomainError("user", "Authorize", ErrForbidden, "administrator has no user account")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is an "already exists" error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInvalidTransition checks if the error is a forbidden state transition.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrTooLong)
}

// IsForbidden checks if the error is an authorization error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsUnauthorized checks if the caller could not be identified.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsInternal reports whether err falls outside the caller-facing taxonomy.
func IsInternal(err error) bool {
	if err == nil {
		return false
	}
	return !IsNotFound(err) && !IsConflict(err) && !IsInvalidTransition(err) &&
		!IsValidation(err) && !IsForbidden(err) && !IsUnauthorized(err)
}
