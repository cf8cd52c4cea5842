// Package domain defines the core domain models for tokpass.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
// Codes have the form TP-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "TP-STOR-5001")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Storage errors (STOR).
var (
	// ErrPersistence indicates a secure-storage write or delete failed.
	// It never rolls back the in-memory session.
	ErrPersistence = NewDomainError("TP-STOR-5001", "secure storage write failed")

	// ErrStorageClosed indicates the storage collaborator was already closed.
	ErrStorageClosed = NewDomainError("TP-STOR-5002", "secure storage closed")
)

// Authentication errors (AUTH).
var (
	// ErrValidation indicates the server rejected a specific field.
	ErrValidation = NewDomainError("TP-AUTH-4001", "field validation failed")

	// ErrAuth indicates a rejection not tied to a field, or an unexpected response.
	ErrAuth = NewDomainError("TP-AUTH-4010", "authentication failed")
)

// Connection errors (CONN).
var (
	// ErrConnection indicates the login request could not complete.
	ErrConnection = NewDomainError("TP-CONN-5030", "connection failed")
)

// Form errors (FORM).
var (
	// ErrSubmitInFlight indicates a submission was attempted while another runs.
	ErrSubmitInFlight = NewDomainError("TP-FORM-4090", "submission already in flight")
)

// Argument errors (ARG).
var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("TP-ARG-1001", "invalid argument")
)

// Kind is the coarse error class used for log fields and metric labels.
type Kind string

const (
	KindNone        Kind = "none"
	KindPersistence Kind = "persistence"
	KindValidation  Kind = "validation"
	KindAuth        Kind = "auth"
	KindConnection  Kind = "connection"
	KindInFlight    Kind = "in_flight"
	KindArgument    Kind = "argument"
	KindUnknown     Kind = "unknown"
)

// KindOf classifies an error into the taxonomy.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPersistence), errors.Is(err, ErrStorageClosed):
		return KindPersistence
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrConnection):
		return KindConnection
	case errors.Is(err, ErrSubmitInFlight):
		return KindInFlight
	case errors.Is(err, ErrInvalidArgument):
		return KindArgument
	default:
		return KindUnknown
	}
}

// User-facing messages.
const (
	MsgConnectionError    = "Connection error"
	MsgLoginError         = "Login error"
	MsgUnexpectedResponse = "Unexpected response"
	MsgFieldRequired      = "This field is required."
	MsgInvalidEmail       = "Enter a valid email address."
	MsgThrottled          = "Too many attempts, try again shortly."
)
