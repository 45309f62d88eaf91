// Package sequence groups parsed entries into frame sequences.
package sequence

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vertextoedge/media-frame-cache/internal/mediapath"
)

// Sequence is an ordered collection of entries keyed by frame number.
// The first entry added for a frame number wins.
type Sequence struct {
	mu      sync.Mutex
	entries map[int]mediapath.Entry
	frames  []int
	seed    mediapath.Entry
	movie   bool

	start int
	end   int
	dirty bool
}

// New creates a sequence seeded with e. A concrete frame or single-file
// seed is added; a templated seed only defines what siblings must match.
func New(seed mediapath.Entry) *Sequence {
	s := &Sequence{
		entries: make(map[int]mediapath.Entry),
		seed:    seed,
	}
	if !seed.Templated {
		s.Add(seed)
	}
	return s
}

// NewMovie creates a one-entry sequence for a movie container.
// ExpandMovie replaces it with synthetic frames once the frame count is known.
func NewMovie(e mediapath.Entry) *Sequence {
	if !e.SingleFile {
		// plate.0001.mov is still one container
		name := strings.TrimSuffix(e.Name(), "."+e.Extension)
		e = mediapath.NewSingleFile(e.Basepath, name, e.Extension)
	}
	s := New(e)
	s.movie = true
	return s
}

// Validate reports whether candidate can join the sequence.
func (s *Sequence) Validate(candidate mediapath.Entry) bool {
	if s.movie || s.seed.SingleFile {
		return false
	}
	return candidate.IsFrame() && s.seed.Similar(candidate)
}

// Add inserts e. It returns false if its frame number is already present.
func (s *Sequence) Add(e mediapath.Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[e.Frame]; ok {
		return false
	}
	s.entries[e.Frame] = e
	s.frames = append(s.frames, e.Frame)
	s.dirty = true
	return true
}

// ExpandMovie replaces the entries of a movie sequence with n synthetic
// frames 0..n-1 sharing the container file.
func (s *Sequence) ExpandMovie(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.seed
	s.entries = make(map[int]mediapath.Entry, n)
	s.frames = make([]int, 0, n)
	for i := 0; i < n; i++ {
		s.entries[i] = base.WithFrame(i)
		s.frames = append(s.frames, i)
	}
	s.dirty = true
}

// Range returns the first and last frame numbers. ok is false for an empty
// sequence.
func (s *Sequence) Range() (start, end int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return 0, 0, false
	}
	if s.dirty {
		s.start, s.end = s.frames[0], s.frames[0]
		for _, f := range s.frames[1:] {
			if f < s.start {
				s.start = f
			}
			if f > s.end {
				s.end = f
			}
		}
		s.dirty = false
	}
	return s.start, s.end, true
}

// Start returns the first frame number, or 0 when empty.
func (s *Sequence) Start() int {
	start, _, _ := s.Range()
	return start
}

// End returns the last frame number, or 0 when empty.
func (s *Sequence) End() int {
	_, end, _ := s.Range()
	return end
}

// Len returns the number of entries.
func (s *Sequence) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Frames returns the frame numbers in ascending order.
func (s *Sequence) Frames() []int {
	s.mu.Lock()
	frames := append([]int(nil), s.frames...)
	s.mu.Unlock()

	sort.Ints(frames)
	return frames
}

// Entry returns the entry for frame f.
func (s *Sequence) Entry(f int) (mediapath.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[f]
	return e, ok
}

// Contains reports whether frame f is present.
func (s *Sequence) Contains(f int) bool {
	_, ok := s.Entry(f)
	return ok
}

// First returns the seed entry.
func (s *Sequence) First() mediapath.Entry {
	return s.seed
}

// IsMovie reports whether the sequence wraps a movie container.
func (s *Sequence) IsMovie() bool {
	return s.movie
}

// IsSingle reports whether the sequence is a single still image.
func (s *Sequence) IsSingle() bool {
	return s.seed.SingleFile && !s.movie
}

// Missing returns the number of gaps inside [Start,End].
func (s *Sequence) Missing() int {
	start, end, ok := s.Range()
	if !ok {
		return 0
	}
	return (end - start + 1) - s.Len()
}

// MissingFrames lists the frame numbers absent inside [Start,End].
func (s *Sequence) MissingFrames() []int {
	start, end, ok := s.Range()
	if !ok {
		return nil
	}
	var missing []int
	for f := start; f <= end; f++ {
		if !s.Contains(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Pattern returns the templated path describing the whole sequence.
func (s *Sequence) Pattern() string {
	return s.seed.Pattern()
}

// Kind names the sequence type.
func (s *Sequence) Kind() string {
	switch {
	case s.movie:
		return "movie"
	case s.seed.SingleFile:
		return "single"
	default:
		return "sequence"
	}
}

func (s *Sequence) String() string {
	start, end, ok := s.Range()
	if !ok {
		return s.Pattern() + " (empty)"
	}
	return fmt.Sprintf("%s [%d-%d]", s.Pattern(), start, end)
}
