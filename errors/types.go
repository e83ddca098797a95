package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Environment root errors
	ErrCodeRootNotFound ErrorCode = "ROOT_NOT_FOUND"
	ErrCodeEnvNotFound  ErrorCode = "ENV_NOT_FOUND"

	// Command execution errors
	ErrCodeCommandTimeout  ErrorCode = "COMMAND_TIMEOUT"
	ErrCodeCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	ErrCodeCommandFailed   ErrorCode = "COMMAND_FAILED"

	// Daemon and persistence errors
	ErrCodeDaemonNotRunning ErrorCode = "DAEMON_NOT_RUNNING"
	ErrCodeSnapshotInvalid  ErrorCode = "SNAPSHOT_INVALID"

	// General errors
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
)

// EnvError represents a structured error with context
type EnvError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error renders the code, message and cause.
func (e *EnvError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause.
func (e *EnvError) Unwrap() error {
	return e.Cause
}

// WithDetail records a key/value pair, such as the path or command involved.
func (e *EnvError) WithDetail(key string, value interface{}) *EnvError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON renders the error, details included, as indented JSON.
func (e *EnvError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new EnvError
func New(code ErrorCode, message string) *EnvError {
	return &EnvError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an EnvError
func Wrap(err error, code ErrorCode, message string) *EnvError {
	return &EnvError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// As finds the first EnvError in err's chain.
func As(err error) (*EnvError, bool) {
	var envErr *EnvError
	if stderrors.As(err, &envErr) {
		return envErr, true
	}
	return nil, false
}

// Is reports whether err's chain contains an EnvError with code.
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode returns the code of the first EnvError in err's chain, or "".
func GetCode(err error) ErrorCode {
	if envErr, ok := As(err); ok {
		return envErr.Code
	}
	return ""
}

// Detail returns one detail value, or nil.
func (e *EnvError) Detail(key string) interface{} {
	return e.Details[key]
}
