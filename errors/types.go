package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Story resolution and preparation errors
	ErrCodeStoryNotFound    ErrorCode = "STORY_NOT_FOUND"
	ErrCodeNoStories        ErrorCode = "NO_STORIES"
	ErrCodeStoryPreparation ErrorCode = "STORY_PREPARATION"

	// Render errors
	ErrCodeRenderException   ErrorCode = "RENDER_EXCEPTION"
	ErrCodeUserStoryError    ErrorCode = "USER_STORY_ERROR"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// Orchestration errors
	ErrCodeNoSelection  ErrorCode = "NO_SELECTION"
	ErrCodePreviewEntry ErrorCode = "PREVIEW_ENTRY"

	// Configuration and index errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"
	ErrCodeIndexInvalid   ErrorCode = "INDEX_INVALID"

	// Daemon errors
	ErrCodeDaemonUnavailable ErrorCode = "DAEMON_UNAVAILABLE"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// ErrIgnoredException is thrown by render adapters for internal control flow.
// A render error that wraps it is never reported.
var ErrIgnoredException = stderrors.New("ignored exception")

// PreviewError represents a structured error with context
type PreviewError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *PreviewError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *PreviewError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *PreviewError) WithDetail(key string, value interface{}) *PreviewError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// DetailString returns a string detail, or "" when absent.
func (e *PreviewError) DetailString(key string) string {
	if s, ok := e.Details[key].(string); ok {
		return s
	}
	return ""
}

// ToJSON converts the error to JSON
func (e *PreviewError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new PreviewError
func New(code ErrorCode, message string) *PreviewError {
	return &PreviewError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a PreviewError
func Wrap(err error, code ErrorCode, message string) *PreviewError {
	return &PreviewError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific PreviewError code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from the first PreviewError in the chain
func GetCode(err error) ErrorCode {
	var previewErr *PreviewError
	if stderrors.As(err, &previewErr) {
		return previewErr.Code
	}
	return ""
}

// As finds the first PreviewError in the chain.
func As(err error) (*PreviewError, bool) {
	var previewErr *PreviewError
	if stderrors.As(err, &previewErr) {
		return previewErr, true
	}
	return nil, false
}

// IsIgnored reports whether err carries the ignored-exception sentinel.
func IsIgnored(err error) bool {
	return stderrors.Is(err, ErrIgnoredException)
}
