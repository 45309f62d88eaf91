package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// Format and media errors
	ErrUnsupportedFormat = errors.New("unsupported media format")
	ErrInvalidMedia      = errors.New("invalid media")
	ErrEmptySequence     = errors.New("sequence has no frames")
	ErrDecoderClosed     = errors.New("decoder is closed")

	// Frame errors
	ErrFrameNotFound   = errors.New("frame not in timeline")
	ErrFrameNotDecoded = errors.New("frame not decoded")

	// Cache errors
	ErrInsufficientMemory = errors.New("insufficient memory budget")
	ErrAlreadyRunning     = errors.New("already running")
)

// SkippableError represents a per-item failure that is logged and skipped.
// Scanning continues with the next file when this error occurs.
type SkippableError struct {
	Err  error
	Path string
}

// Error returns the error message
func (e *SkippableError) Error() string {
	if e.Path != "" {
		if e.Err != nil {
			return e.Path + ": " + e.Err.Error()
		}
		return e.Path
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "skippable error"
}

// Unwrap returns the underlying error
func (e *SkippableError) Unwrap() error {
	return e.Err
}

// NewSkippableError creates a new skippable error
func NewSkippableError(err error, path string) *SkippableError {
	return &SkippableError{Err: err, Path: path}
}

// IsSkippable returns true if the error can be skipped
func IsSkippable(err error) bool {
	var se *SkippableError
	return errors.As(err, &se)
}

// RetryableError marks a failed attempt that a bounded retry loop may repeat.
type RetryableError struct {
	Err     error
	Attempt int
}

// Error returns the error message
func (e *RetryableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("attempt %d: %s", e.Attempt, e.Err.Error())
	}
	return "retryable error"
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error, attempt int) *RetryableError {
	return &RetryableError{Err: err, Attempt: attempt}
}

// IsRetryable returns true if the error should be retried
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// GetAttempt returns the attempt number if the error is retryable
func GetAttempt(err error) (int, bool) {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.Attempt, true
	}
	return 0, false
}

// FrameError binds a frame number to a decode or cache failure.
type FrameError struct {
	Frame int
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d: %v", e.Frame, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// NewFrameError wraps err with the frame number it applies to.
func NewFrameError(frame int, err error) *FrameError {
	return &FrameError{Frame: frame, Err: err}
}
