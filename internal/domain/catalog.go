package domain

import (
	"time"
)

// CatalogEntry is a persisted record of a discovered sequence
type CatalogEntry struct {
	ID        string
	Pattern   string
	Directory string
	Kind      string
	Extension string
	Padding   int
	Start     int
	End       int
	Frames    int
	Missing   int
	ScannedAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Complete reports whether the sequence has no gaps
func (e *CatalogEntry) Complete() bool {
	return e.Missing == 0
}

// Span returns the number of frame numbers covered by the range
func (e *CatalogEntry) Span() int {
	if e.Frames == 0 {
		return 0
	}
	return e.End - e.Start + 1
}

// IsStale reports whether the entry was last scanned before cutoff
func (e *CatalogEntry) IsStale(cutoff time.Time) bool {
	return e.ScannedAt.Before(cutoff)
}
