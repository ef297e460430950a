// Package errors provides the structured error system for mdshovel with
// error codes, categories, and per-operation context.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode identifies a class of mdshovel failure.
type ErrorCode string

const (
	// Configuration errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Connection errors (fatal for the process)
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	ErrCodeNoBackends       ErrorCode = "NO_BACKENDS"
	ErrCodeSRVLookup        ErrorCode = "SRV_LOOKUP"

	// Store write errors (operation-scoped)
	ErrCodeEntryExists ErrorCode = "ENTRY_EXISTS"
	ErrCodeStoreWrite  ErrorCode = "STORE_WRITE"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory is the coarse grouping used for logging and error handling
// policy decisions.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryConnection    ErrorCategory = "connection"
	CategoryStore         ErrorCategory = "store"
	CategoryInternal      ErrorCategory = "internal"
)

// ShovelError is a structured error carrying the code, the component that
// produced it, and the store operation it belongs to.
type ShovelError struct {
	Code      ErrorCode     `json:"code"`
	Category  ErrorCategory `json:"category"`
	Message   string        `json:"message"`
	Component string        `json:"component,omitempty"`
	Operation string        `json:"operation,omitempty"`
	Key       string        `json:"key,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Cause     error         `json:"-"`
	Timestamp time.Time     `json:"timestamp"`
}

// Error implements the error interface.
func (e *ShovelError) Error() string {
	var b strings.Builder
	if e.Component != "" {
		if e.Operation != "" {
			fmt.Fprintf(&b, "[%s:%s] ", e.Component, e.Operation)
		} else {
			fmt.Fprintf(&b, "[%s] ", e.Component)
		}
	}
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Key != "" {
		fmt.Fprintf(&b, " (key=%s)", e.Key)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %s", e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *ShovelError) Unwrap() error {
	return e.Cause
}

// Is matches on the error code so callers can compare against sentinel
// ShovelError values.
func (e *ShovelError) Is(target error) bool {
	if se, ok := target.(*ShovelError); ok {
		return e.Code == se.Code
	}
	return false
}

// New creates a ShovelError with its category derived from the code.
func New(code ErrorCode, message string) *ShovelError {
	return &ShovelError{
		Code:      code,
		Category:  CategoryOf(code),
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a ShovelError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *ShovelError {
	return New(code, fmt.Sprintf(format, args...))
}

// CategoryOf maps an error code to its category.
func CategoryOf(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidConfig, ErrCodeConfigLoad, ErrCodeConfigValidation:
		return CategoryConfiguration
	case ErrCodeConnectionFailed, ErrCodeNoBackends, ErrCodeSRVLookup:
		return CategoryConnection
	case ErrCodeEntryExists, ErrCodeStoreWrite:
		return CategoryStore
	default:
		return CategoryInternal
	}
}

// WithComponent sets the originating component.
func (e *ShovelError) WithComponent(component string) *ShovelError {
	e.Component = component
	return e
}

// WithOperation sets the store operation kind (createDirectory, createObject).
func (e *ShovelError) WithOperation(operation string) *ShovelError {
	e.Operation = operation
	return e
}

// WithKey sets the metadata key the error relates to.
func (e *ShovelError) WithKey(key string) *ShovelError {
	e.Key = key
	return e
}

// WithRequestID sets the request identifier.
func (e *ShovelError) WithRequestID(id string) *ShovelError {
	e.RequestID = id
	return e
}

// WithCause sets the underlying cause.
func (e *ShovelError) WithCause(cause error) *ShovelError {
	e.Cause = cause
	return e
}

// CodeOf extracts the error code from err's chain, or ErrCodeInternalError
// if no ShovelError is present.
func CodeOf(err error) ErrorCode {
	var se *ShovelError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternalError
}

// IsConflict reports whether err's chain contains the "entry already
// exists" classification. Expected under concurrent creation of shared
// intermediate directories.
func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeEntryExists
}

// IsFatal reports whether err is a connection-level failure that must end
// the process.
func IsFatal(err error) bool {
	return CategoryOf(CodeOf(err)) == CategoryConnection
}
