package envs

import "fmt"

// ErrorKind classifies why an external query produced no value.
type ErrorKind string

const (
	ErrNotFound   ErrorKind = "not_found"
	ErrFailed     ErrorKind = "failed"
	ErrMalformed  ErrorKind = "malformed"
	ErrTimeout    ErrorKind = "timeout"
	ErrMisaligned ErrorKind = "misaligned"
	ErrCancelled  ErrorKind = "cancelled"
)

// QueryError is the error marker stored on an environment field.
type QueryError struct {
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Result is either Ok(value) or Err(kind, message). The zero value means the
// query has not run yet.
type Result[T any] struct {
	OK    bool        `json:"ok" yaml:"ok"`
	Value T           `json:"value,omitempty" yaml:"value,omitempty"`
	Err   *QueryError `json:"error,omitempty" yaml:"error,omitempty"`
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{OK: true, Value: v}
}

// Err builds an error marker.
func Err[T any](kind ErrorKind, format string, args ...any) Result[T] {
	return Result[T]{Err: &QueryError{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// Get returns the value and whether the result is Ok.
func (r Result[T]) Get() (T, bool) {
	return r.Value, r.OK
}

// Failed reports whether the result is an error marker.
func (r Result[T]) Failed() bool {
	return !r.OK && r.Err != nil
}

// Pending reports whether the query has never produced a result.
func (r Result[T]) Pending() bool {
	return !r.OK && r.Err == nil
}

// Transient reports whether the result is an error marker that may clear on
// its own, such as a timeout or a misaligned batch.
func (r Result[T]) Transient() bool {
	if !r.Failed() {
		return false
	}
	return r.Err.Kind == ErrTimeout || r.Err.Kind == ErrMisaligned
}
