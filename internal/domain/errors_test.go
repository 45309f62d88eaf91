package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestSkippableError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		path string
		want string
	}{
		{
			name: "with path and error",
			err:  errors.New("permission denied"),
			path: "/shots/a/shot.1001.exr",
			want: "/shots/a/shot.1001.exr: permission denied",
		},
		{
			name: "with path only",
			err:  nil,
			path: "/shots/a",
			want: "/shots/a",
		},
		{
			name: "with error only",
			err:  errors.New("permission denied"),
			path: "",
			want: "permission denied",
		},
		{
			name: "empty",
			err:  nil,
			path: "",
			want: "skippable error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := NewSkippableError(tt.err, tt.path)
			if got := se.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsSkippable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "skippable error",
			err:  NewSkippableError(errors.New("err"), "a.png"),
			want: true,
		},
		{
			name: "wrapped skippable error",
			err:  fmt.Errorf("wrapped: %w", NewSkippableError(errors.New("err"), "a.png")),
			want: true,
		},
		{
			name: "regular error",
			err:  errors.New("regular error"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSkippable(tt.err); got != tt.want {
				t.Errorf("IsSkippable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryableError(t *testing.T) {
	re := NewRetryableError(ErrFrameNotDecoded, 2)
	if got, want := re.Error(), "attempt 2: frame not decoded"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(re, ErrFrameNotDecoded) {
		t.Error("RetryableError should unwrap to ErrFrameNotDecoded")
	}

	wrapped := fmt.Errorf("seek: %w", re)
	if !IsRetryable(wrapped) {
		t.Error("IsRetryable() = false for wrapped retryable error")
	}
	attempt, ok := GetAttempt(wrapped)
	if !ok || attempt != 2 {
		t.Errorf("GetAttempt() = (%d, %v), want (2, true)", attempt, ok)
	}

	if IsRetryable(NewSkippableError(errors.New("err"), "")) {
		t.Error("skippable error should not be retryable")
	}
	if _, ok := GetAttempt(errors.New("plain")); ok {
		t.Error("GetAttempt() ok = true for plain error")
	}
	if got := (&RetryableError{}).Error(); got != "retryable error" {
		t.Errorf("Error() = %q, want %q", got, "retryable error")
	}
}

func TestFrameError(t *testing.T) {
	err := NewFrameError(1005, ErrFrameNotFound)
	if got, want := err.Error(), "frame 1005: frame not in timeline"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrFrameNotFound) {
		t.Error("FrameError should unwrap to ErrFrameNotFound")
	}

	var fe *FrameError
	if !errors.As(fmt.Errorf("cache: %w", err), &fe) || fe.Frame != 1005 {
		t.Errorf("errors.As did not recover frame number, got %+v", fe)
	}
}
