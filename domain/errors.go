package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeInvalid         ErrorCode = "INVALID"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeDuplicateTitle  ErrorCode = "DUPLICATE_TITLE"
	ErrCodeReservedTitle   ErrorCode = "RESERVED_TITLE"
	ErrCodeInvalidAssignee ErrorCode = "INVALID_ASSIGNEE"
	ErrCodeUnknownConflict ErrorCode = "UNKNOWN_CONFLICT"
	ErrCodeNoEligibleUser  ErrorCode = "NO_ELIGIBLE_USER"
	ErrCodeInternal        ErrorCode = "INTERNAL"
)

// Error represents a domain-level error. Details carries structured
// payloads such as the conflict descriptor or field validation notes.
type Error struct {
	Code    ErrorCode
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorWithDetails builds a domain error carrying a structured payload.
func NewErrorWithDetails(code ErrorCode, message string, details interface{}) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Common domain errors.
var (
	ErrTaskNotFound     = NewError(ErrCodeNotFound, "task not found")
	ErrUserNotFound     = NewError(ErrCodeNotFound, "user not found")
	ErrSessionNotFound  = NewError(ErrCodeNotFound, "session not found")
	ErrConflictNotFound = NewError(ErrCodeUnknownConflict, "unknown conflict")
	ErrUnauthorized     = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrForbidden        = NewError(ErrCodeForbidden, "forbidden")
	ErrInvalidPayload   = NewError(ErrCodeInvalid, "invalid payload")
	ErrStaleWrite       = NewError(ErrCodeInternal, "stale write rejected by store")
	ErrNoEligibleUser   = NewError(ErrCodeNoEligibleUser, "no eligible user")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// DetailsOf extracts the structured payload of a domain error, if any.
func DetailsOf(err error) interface{} {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Details
	}
	return nil
}

// ValidationIssue names one rejected field.
type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// NewValidationError builds an INVALID error from field issues.
func NewValidationError(issues ...ValidationIssue) *Error {
	return NewErrorWithDetails(ErrCodeInvalid, "validation failed", issues)
}
