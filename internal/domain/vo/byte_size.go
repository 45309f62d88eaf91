package vo

import (
	"errors"

	"github.com/dustin/go-humanize"
)

// ByteSize is a memory amount used for cache budgets and frame costs.
type ByteSize struct {
	bytes int64
}

const (
	KB int64 = 1024
	MB int64 = 1024 * KB
	GB int64 = 1024 * MB
)

var (
	ErrNegativeSize = errors.New("byte size cannot be negative")
)

// NewByteSize creates a new ByteSize value object.
func NewByteSize(bytes int64) (ByteSize, error) {
	if bytes < 0 {
		return ByteSize{}, ErrNegativeSize
	}
	return ByteSize{bytes: bytes}, nil
}

// ZeroSize returns a zero ByteSize.
func ZeroSize() ByteSize {
	return ByteSize{}
}

// ByteSizeFromMB creates a ByteSize from megabytes.
func ByteSizeFromMB(mb int64) ByteSize {
	if mb < 0 {
		return ZeroSize()
	}
	return ByteSize{bytes: mb * MB}
}

// Bytes returns the size in bytes.
func (s ByteSize) Bytes() int64 {
	return s.bytes
}

// MB returns the size in megabytes.
func (s ByteSize) MB() float64 {
	return float64(s.bytes) / float64(MB)
}

// IsZero returns true if the size is zero.
func (s ByteSize) IsZero() bool {
	return s.bytes == 0
}

// Frames returns how many frames of frameSize fit in s.
// Returns 0 when frameSize is not positive.
func (s ByteSize) Frames(frameSize int64) int64 {
	if frameSize <= 0 {
		return 0
	}
	return s.bytes / frameSize
}

// Min returns the smaller of s and other, ignoring zero values.
func (s ByteSize) Min(other ByteSize) ByteSize {
	if s.bytes == 0 {
		return other
	}
	if other.bytes == 0 || s.bytes <= other.bytes {
		return s
	}
	return other
}

// Percent returns pct percent of s.
func (s ByteSize) Percent(pct float64) ByteSize {
	if pct <= 0 {
		return ZeroSize()
	}
	return ByteSize{bytes: int64(float64(s.bytes) * pct / 100)}
}

// String returns a human-readable IEC representation.
func (s ByteSize) String() string {
	return humanize.IBytes(uint64(s.bytes))
}
