package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the task API.
var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrTaskExists     = errors.New("task already exists")
	ErrTaskNotReady   = errors.New("task result not ready")
	ErrTaskActive     = errors.New("task still active")
	ErrTaskFinished   = errors.New("task already finished")
	ErrQueueFull      = errors.New("task queue full")
	ErrQueueStopped   = errors.New("task queue stopped")
	ErrInvalidRequest = errors.New("invalid task request")
)

// ValidationError describes a rejected submission. It matches
// ErrInvalidRequest under errors.Is.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid request: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StageFailure is the classified outcome of a failed collaborator
// call. Collaborators wrap their errors with Transient or Permanent;
// the runner retries only transient failures.
type StageFailure struct {
	Stage     Stage `json:"stage,omitempty"`
	Retryable bool  `json:"retryable"`
	Err       error `json:"-"`
}

func (e *StageFailure) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "transient"
	}
	if e.Stage != "" {
		return fmt.Sprintf("stage %s: %s failure: %v", e.Stage, kind, e.Err)
	}
	return fmt.Sprintf("%s failure: %v", kind, e.Err)
}

func (e *StageFailure) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable failure.
func Transient(err error) *StageFailure {
	return &StageFailure{Retryable: true, Err: err}
}

// Transientf is Transient over a formatted error.
func Transientf(format string, args ...any) *StageFailure {
	return Transient(fmt.Errorf(format, args...))
}

// Permanent wraps err as a non-retryable failure.
func Permanent(err error) *StageFailure {
	return &StageFailure{Retryable: false, Err: err}
}

// Permanentf is Permanent over a formatted error.
func Permanentf(format string, args ...any) *StageFailure {
	return Permanent(fmt.Errorf(format, args...))
}

// IsTransient reports whether err should be retried. Deadline
// expiry counts as transient; unclassified errors do not.
func IsTransient(err error) bool {
	var sf *StageFailure
	if errors.As(err, &sf) {
		return sf.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// StageError is the single error record retained on a failed task.
type StageError struct {
	Stage   Stage         `json:"stage"`
	Reason  FailureReason `json:"reason"`
	Message string        `json:"message"`
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed (%s): %s", e.Stage, e.Reason, e.Message)
}
