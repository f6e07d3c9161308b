package domain

import (
	"errors"
	"fmt"
	"time"
)

// Failure taxonomy of a scoring run
var (
	// ErrNotFound is returned when a submission id does not resolve to a stored submission.
	ErrNotFound = errors.New("not found")
	// ErrNoData is returned when a submission exists but has no answers.
	ErrNoData = errors.New("no answers for submission")
)

// ConfigError reports an answer or rule that references a section, nutrient or question absent
// from the loaded rule tables.
type ConfigError struct {
	Unit    string `json:"unit"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("rule configuration error for %s %q: %s", e.Unit, e.Code, e.Message)
}

// NewConfigError creates a new ConfigError
func NewConfigError(unit, code, message string) *ConfigError {
	return &ConfigError{Unit: unit, Code: code, Message: message}
}

// StorageError wraps a persistence failure. The engine never retries; callers decide.
type StorageError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

// Unwrap exposes the driver error for errors.Is/As.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"error"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeNotFound       = "SUBMISSION_NOT_FOUND"
	ErrCodeNoData         = "NO_ANSWERS"
	ErrCodeConfig         = "RULE_CONFIG_ERROR"
	ErrCodeStorage        = "STORAGE_ERROR"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ErrorCode maps an error from a scoring run onto its API error code.
func ErrorCode(err error) string {
	var cfgErr *ConfigError
	var storageErr *StorageError
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrNoData):
		return ErrCodeNoData
	case errors.As(err, &cfgErr):
		return ErrCodeConfig
	case errors.As(err, &storageErr):
		return ErrCodeStorage
	default:
		return ErrCodeInternalServer
	}
}
