package services

import (
	"errors"

	apperrors "github.com/SAP-F-2025/interview-session-service/internal/errors"
	"github.com/SAP-F-2025/interview-session-service/internal/policy"
)

// ===== SERVICE ERRORS =====

var (
	ErrInvalidSchedule        = errors.New("invalid schedule")
	ErrIdempotencyKeyConflict = errors.New("idempotency key reused with a different request")

	// The same error for a missing session and a token that does not match it
	ErrUnknownSession   = errors.New("unknown session")
	ErrSessionNotActive = errors.New("session is not active")
	ErrSessionNotOpen   = errors.New("session window has not opened yet")
	ErrUnknownBatch     = errors.New("unknown scheduling batch")

	ErrExtensionNotPermitted = policy.ErrExtensionNotPermitted
	ErrUnknownEventType      = policy.ErrUnknownEventType

	ErrResultsNotAvailable = errors.New("results not available before the session is finalized")

	// Internal; retried by the monitor and only surfaced once the retry budget is spent
	ErrConcurrentUpdateConflict = errors.New("concurrent update conflict")
)

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// invalidSchedule joins field errors with ErrInvalidSchedule so callers can match either.
func invalidSchedule(errs ValidationErrors) error {
	return errors.Join(ErrInvalidSchedule, errs)
}

// ===== ERROR HELPERS =====

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownSession) || errors.Is(err, ErrUnknownBatch)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrInvalidSchedule) || errors.Is(err, ErrUnknownEventType) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsConflict checks if error represents a state conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrSessionNotActive) ||
		errors.Is(err, ErrSessionNotOpen) ||
		errors.Is(err, ErrIdempotencyKeyConflict) ||
		errors.Is(err, ErrResultsNotAvailable)
}

// IsForbidden checks if error represents a policy refusal
func IsForbidden(err error) bool {
	return errors.Is(err, ErrExtensionNotPermitted)
}
