package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Domain errors
	ErrorTypeValidation     ErrorType = "VALIDATION"
	ErrorTypeNotFound       ErrorType = "NOT_FOUND"
	ErrorTypeGraphIntegrity ErrorType = "GRAPH_INTEGRITY"
	ErrorTypeUnknownCourse  ErrorType = "UNKNOWN_COURSE"

	// Query-time errors
	ErrorTypeInsufficientEvidence ErrorType = "INSUFFICIENT_EVIDENCE"
	ErrorTypeGenerationTimeout    ErrorType = "GENERATION_TIMEOUT"
	ErrorTypeUngroundedAnswer     ErrorType = "UNGROUNDED_ANSWER"

	// Application errors
	ErrorTypeInternal  ErrorType = "INTERNAL"
	ErrorTypeTimeout   ErrorType = "TIMEOUT"
	ErrorTypeRateLimit ErrorType = "RATE_LIMIT"

	// Infrastructure errors
	ErrorTypeEvidenceStoreUnavailable ErrorType = "EVIDENCE_STORE_UNAVAILABLE"
	ErrorTypeExternal                 ErrorType = "EXTERNAL"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

// Constructor functions for common error types

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		StackTrace: captureStackTrace(),
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		StackTrace: captureStackTrace(),
	}
}

// NewGraphIntegrityError creates a graph integrity error.
// Violations carries every integrity problem found at load time, not just
// the first; a catalog with any violation must not activate.
func NewGraphIntegrityError(violations []string) *AppError {
	return &AppError{
		Type:    ErrorTypeGraphIntegrity,
		Message: fmt.Sprintf("catalog graph failed integrity checks (%d violations)", len(violations)),
		Details: map[string]interface{}{
			"violations": violations,
		},
		HTTPStatus: http.StatusUnprocessableEntity,
		StackTrace: captureStackTrace(),
	}
}

// NewUnknownCourseError creates an unknown course error
func NewUnknownCourseError(code string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnknownCourse,
		Message: fmt.Sprintf("course '%s' is not recognized in the active catalog", code),
		Details: map[string]interface{}{
			"course_code": code,
		},
		HTTPStatus: http.StatusNotFound,
		StackTrace: captureStackTrace(),
	}
}

// NewInsufficientEvidenceError creates an insufficient evidence error
func NewInsufficientEvidenceError(query string) *AppError {
	return &AppError{
		Type:       ErrorTypeInsufficientEvidence,
		Message:    "not enough information was retrieved to answer the question",
		Details:    map[string]interface{}{"query": query},
		HTTPStatus: http.StatusNotFound,
		StackTrace: captureStackTrace(),
	}
}

// NewGenerationTimeoutError creates a generation timeout error
func NewGenerationTimeoutError(timeoutMs int64) *AppError {
	return &AppError{
		Type:       ErrorTypeGenerationTimeout,
		Message:    "unable to produce a grounded answer: generation timed out",
		Details:    map[string]interface{}{"timeout_ms": timeoutMs},
		HTTPStatus: http.StatusGatewayTimeout,
		StackTrace: captureStackTrace(),
	}
}

// NewUngroundedAnswerError creates an ungrounded answer error.
// UnknownCitations lists citation tokens the generator used that do not
// resolve to any entry in the grounded context.
func NewUngroundedAnswerError(unknownCitations []string) *AppError {
	return &AppError{
		Type:    ErrorTypeUngroundedAnswer,
		Message: "unable to produce a grounded answer: generated text cites unknown evidence",
		Details: map[string]interface{}{
			"unknown_citations": unknownCitations,
		},
		HTTPStatus: http.StatusBadGateway,
		StackTrace: captureStackTrace(),
	}
}

// NewEvidenceStoreUnavailableError creates a transient evidence store error
func NewEvidenceStoreUnavailableError(err error) *AppError {
	return &AppError{
		Type:       ErrorTypeEvidenceStoreUnavailable,
		Message:    "evidence store is unavailable",
		Cause:      err,
		HTTPStatus: http.StatusServiceUnavailable,
		StackTrace: captureStackTrace(),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		StackTrace: captureStackTrace(),
	}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(operation string) *AppError {
	return &AppError{
		Type:       ErrorTypeTimeout,
		Message:    fmt.Sprintf("operation '%s' timed out", operation),
		HTTPStatus: http.StatusRequestTimeout,
		StackTrace: captureStackTrace(),
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(limit int, window string) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimit,
		Message:    fmt.Sprintf("rate limit exceeded: %d requests per %s", limit, window),
		HTTPStatus: http.StatusTooManyRequests,
		StackTrace: captureStackTrace(),
	}
}

// NewExternalError creates an external service error
func NewExternalError(service string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Message:    fmt.Sprintf("external service '%s' error", service),
		Cause:      err,
		HTTPStatus: http.StatusBadGateway,
		StackTrace: captureStackTrace(),
	}
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsGraphIntegrity checks if an error is a graph integrity error
func IsGraphIntegrity(err error) bool {
	return IsType(err, ErrorTypeGraphIntegrity)
}

// IsUnknownCourse checks if an error is an unknown course error
func IsUnknownCourse(err error) bool {
	return IsType(err, ErrorTypeUnknownCourse)
}

// IsEvidenceStoreUnavailable checks if an error is a transient store error
func IsEvidenceStoreUnavailable(err error) bool {
	return IsType(err, ErrorTypeEvidenceStoreUnavailable)
}

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool {
	return IsType(err, ErrorTypeInternal)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, add context to message
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	// Otherwise create a new internal error
	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
