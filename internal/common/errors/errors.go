// Package errors provides the standardized error taxonomy shared by the
// lifecycle service, the event reconcilers and the job transport layer.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Business rejections. Returned to callers as typed results, never retried.
	ErrCodeApplicationNotFound  ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeUnauthorised         ErrorCode = "UNAUTHORISED"
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeFieldValidationError ErrorCode = "FIELD_VALIDATION_FAILED"
	ErrCodeStateConflict        ErrorCode = "STATE_CONFLICT"

	// Subject and read-model lookups.
	ErrCodeSubjectNotFound     ErrorCode = "SUBJECT_NOT_FOUND"
	ErrCodeSubjectAccessDenied ErrorCode = "SUBJECT_ACCESS_DENIED"
	ErrCodeLocationNotFound    ErrorCode = "LOCATION_NOT_FOUND"
	ErrCodeAllocationNotFound  ErrorCode = "ALLOCATION_NOT_FOUND"

	// Inbound event classification. Reported, then treated as handled.
	ErrCodeEventIgnored ErrorCode = "EVENT_IGNORED"

	// Infrastructure. Retryable by the job transport.
	ErrCodeServiceUnavailable   ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeDatabaseQueryFailed  ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseInsertFailed ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeNotificationFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodePublishFailed        ErrorCode = "EVENT_PUBLISH_FAILED"

	// Fatal. No schema registered at all means the system is misdeployed.
	ErrCodeSchemaRegistryEmpty ErrorCode = "SCHEMA_REGISTRY_EMPTY"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// CodeOf extracts the error code from err, or empty if err is not a StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsCode reports whether err is a StandardError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether err should be handed back to the transport for retry.
// Non-StandardError values are treated as unexpected and not retried.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// ==========================
// Constructors
// ==========================

// NewApplicationNotFoundError creates a non-retryable not-found rejection.
func NewApplicationNotFoundError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "Application not found",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnauthorisedError creates a non-retryable authorisation rejection.
func NewUnauthorisedError(username, applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorised,
		Message:   "Requester is not permitted to act on this application",
		Details:   fmt.Sprintf("user: %s, applicationId: %s", username, applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a non-retryable general validation rejection.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Application validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFieldValidationError creates a non-retryable validation rejection scoped to one field.
func NewFieldValidationError(field, detail string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFieldValidationError,
		Message:   "Field validation failed",
		Details:   detail,
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field},
		Timestamp: time.Now().UTC(),
	}
}

// NewConflictError creates a non-retryable state-conflict rejection.
func NewConflictError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStateConflict,
		Message:   "Operation conflicts with the application's current state",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubjectNotFoundError creates a non-retryable subject lookup rejection.
func NewSubjectNotFoundError(subjectID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubjectNotFound,
		Message:   "Subject not found",
		Details:   fmt.Sprintf("subjectId: %s", subjectID),
		Retryable: false,
		Metadata:  map[string]interface{}{"field": "subjectId"},
		Timestamp: time.Now().UTC(),
	}
}

// NewSubjectAccessDeniedError creates a non-retryable subject access rejection.
func NewSubjectAccessDeniedError(subjectID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubjectAccessDenied,
		Message:   "Access to subject record denied",
		Details:   fmt.Sprintf("subjectId: %s", subjectID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLocationNotFoundError signals the read model has no current location for the subject.
func NewLocationNotFoundError(subjectID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLocationNotFound,
		Message:   "No location available for subject",
		Details:   fmt.Sprintf("subjectId: %s", subjectID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAllocationNotFoundError signals the read model has no current allocation
// behind the given reference. This is a legitimate transient state
// (e.g. deallocation), not a failure.
func NewAllocationNotFoundError(reference string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAllocationNotFound,
		Message:   "No current allocation for reference",
		Details:   fmt.Sprintf("reference: %s", reference),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEventIgnoredError classifies an inbound event as malformed or out of
// scope. It must be reported and then treated as handled, never retried.
func NewEventIgnoredError(reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEventIgnored,
		Message:   "Inbound event ignored",
		Details:   reason,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnavailableError creates a retryable downstream failure.
func NewUnavailableError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeServiceUnavailable,
		Message:   fmt.Sprintf("External service '%s' unavailable", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseQueryError creates a retryable query execution error.
func NewDatabaseQueryError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseQueryFailed,
		Message:   "Database query execution error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertError creates a retryable insert/update error.
func NewDatabaseInsertError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database write operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendError creates a retryable notification delivery error.
func NewNotificationSendError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPublishFailedError creates a retryable domain-event publish error.
func NewPublishFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePublishFailed,
		Message:   "Domain event publish failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSchemaRegistryEmptyError creates a fatal error: no schema version is
// registered at all, so applications cannot be created or validated.
func NewSchemaRegistryEmptyError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaRegistryEmpty,
		Message:   "No application schema registered",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
