// Package errors provides the standardized error type returned across the session pipeline
// and its mapping onto HTTP responses.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Startup
	ErrCodeStartupDependencyMissing ErrorCode = "STARTUP_DEPENDENCY_MISSING"
	ErrCodeIndexNotFound            ErrorCode = "INDEX_NOT_FOUND"

	// Validation
	ErrCodeEmptyTranscript ErrorCode = "EMPTY_TRANSCRIPT"
	ErrCodeInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"

	// Session tokens and history
	ErrCodeSessionNotFound          ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionAlreadySummarized ErrorCode = "SESSION_ALREADY_SUMMARIZED"
	ErrCodeSessionStoreFailed       ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeDatabaseQueryFailed      ErrorCode = "DATABASE_QUERY_FAILED"

	// Collaborators
	ErrCodeTranscriptionFailed  ErrorCode = "TRANSCRIPTION_FAILED"
	ErrCodeClassificationFailed ErrorCode = "CLASSIFICATION_FAILED"
	ErrCodeRetrievalFailed      ErrorCode = "RETRIEVAL_FAILED"
	ErrCodeGenerationFailed     ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationTimeout    ErrorCode = "GENERATION_TIMEOUT"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewStartupDependencyMissingError reports a dependency the process refuses to start without.
func NewStartupDependencyMissingError(dependency string, err error) *StandardError {
	e := newError(ErrCodeStartupDependencyMissing, fmt.Sprintf("Required dependency '%s' is unavailable", dependency), err, false)
	return e.WithMetadata("dependency", dependency)
}

// NewIndexNotFoundError creates a non-retryable index not found error.
func NewIndexNotFoundError(indexName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexNotFound,
		Message:   "Knowledge base index not found",
		Details:   fmt.Sprintf("indexName: %s", indexName),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewEmptyTranscriptError() *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyTranscript,
		Message:   "Transcription resulted in empty text. Please try speaking again.",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidRequestError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewPayloadTooLargeError(limit int64) *StandardError {
	return &StandardError{
		Code:      ErrCodePayloadTooLarge,
		Message:   "Uploaded audio exceeds the size limit",
		Details:   fmt.Sprintf("limitBytes: %d", limit),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Session not found or expired",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionAlreadySummarizedError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionAlreadySummarized,
		Message:   "Session has already been summarized",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionStoreFailedError(err error) *StandardError {
	return newError(ErrCodeSessionStoreFailed, "Session store error", err, true)
}

// NewDatabaseQueryFailedError creates a retryable history store error.
func NewDatabaseQueryFailedError(operation string, err error) *StandardError {
	e := newError(ErrCodeDatabaseQueryFailed, "Database query execution error", err, true)
	return e.WithMetadata("operation", operation)
}

// NewTranscriptionFailedError is retryable: the client may simply record again.
func NewTranscriptionFailedError(err error) *StandardError {
	return newError(ErrCodeTranscriptionFailed, "Error during transcription", err, true)
}

func NewClassificationFailedError(err error) *StandardError {
	return newError(ErrCodeClassificationFailed, "Emotion classification failed", err, false)
}

func NewRetrievalFailedError(err error) *StandardError {
	return newError(ErrCodeRetrievalFailed, "Knowledge retrieval failed", err, false)
}

func NewGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeGenerationFailed, "Dialogue generation failed", err, false)
}

func NewGenerationTimeoutError(err error) *StandardError {
	return newError(ErrCodeGenerationTimeout, "Dialogue generation timed out", err, true)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	e := newError(ErrCodeNotificationSendFailed, "Notification delivery failed", err, true)
	return e.WithMetadata("type", notificationType)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

// ==========================
// 3. HTTP Mapping
// ==========================

// HTTPStatus returns the response status for an error code.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeEmptyTranscript, ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeSessionNotFound:
		return http.StatusNotFound
	case ErrCodeSessionAlreadySummarized:
		return http.StatusConflict
	case ErrCodeNotificationSendFailed:
		return http.StatusBadGateway
	case ErrCodeGenerationTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeIndexNotFound, ErrCodeStartupDependencyMissing:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// AsStandardError unwraps err to a *StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// IsClientError reports whether the code describes a caller mistake.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatus(code)
	return status >= 400 && status < 500
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "STARTUP") || strings.Contains(codeStr, "INDEX"):
		return "STARTUP"
	case strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "TRANSCRIPTION") ||
		strings.Contains(codeStr, "CLASSIFICATION") ||
		strings.Contains(codeStr, "RETRIEVAL") ||
		strings.Contains(codeStr, "GENERATION"):
		return "COLLABORATOR"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "EMPTY") || strings.Contains(codeStr, "PAYLOAD"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
