// Package media wraps sequences as addressable frame timelines.
package media

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertextoedge/media-frame-cache/internal/domain"
	"github.com/vertextoedge/media-frame-cache/internal/domain/event"
	"github.com/vertextoedge/media-frame-cache/internal/reader"
	"github.com/vertextoedge/media-frame-cache/internal/sequence"
)

// Kind distinguishes the three kinds of media.
type Kind int

const (
	KindInvalid Kind = iota
	KindSequence
	KindMovie
	KindSingle
)

func (k Kind) String() string {
	switch k {
	case KindSequence:
		return "sequence"
	case KindMovie:
		return "movie"
	case KindSingle:
		return "single"
	default:
		return "invalid"
	}
}

// Timeline maps frame numbers to frames. Timelines that failed to load are
// empty and report the cause through Err.
type Timeline struct {
	id      string
	kind    Kind
	seq     *sequence.Sequence
	frames  map[int]*Frame
	numbers []int
	movie   reader.MovieReader
	info    *reader.MovieInfo
	err     error
	logger  *zap.Logger
}

// Load builds a timeline over seq, resolving a decoder per entry.
// It never fails outright: problems leave the timeline invalid.
func Load(
	ctx context.Context,
	seq *sequence.Sequence,
	registry *reader.Registry,
	dispatcher event.EventDispatcher,
	logger *zap.Logger,
) *Timeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = event.NewNullDispatcher()
	}

	t := &Timeline{
		id:     uuid.NewString(),
		seq:    seq,
		frames: make(map[int]*Frame),
		logger: logger,
	}

	if err := t.load(ctx, registry); err != nil {
		t.invalidate(err)
	}

	path := ""
	if seq != nil {
		path = seq.Pattern()
	}
	dispatcher.Dispatch(event.NewMediaLoaded(t.id, path, t.kind.String(), len(t.numbers), t.err))
	return t
}

func (t *Timeline) load(ctx context.Context, registry *reader.Registry) error {
	if t.seq == nil || t.seq.Len() == 0 {
		return domain.ErrEmptySequence
	}
	if registry == nil {
		return fmt.Errorf("%w: no reader registry", domain.ErrUnsupportedFormat)
	}

	seed := t.seq.First()
	if !registry.Supports(seed.Extension) {
		return fmt.Errorf("%w: .%s", domain.ErrUnsupportedFormat, seed.Extension)
	}
	if registry.IsMovie(seed.Extension) {
		if !t.seq.IsMovie() {
			t.seq = sequence.NewMovie(seed)
		}
		return t.loadMovie(ctx, registry)
	}
	return t.loadImages(registry)
}

func (t *Timeline) loadImages(registry *reader.Registry) error {
	for _, n := range t.seq.Frames() {
		entry, _ := t.seq.Entry(n)
		r := registry.GetReader(entry.Extension, entry.Path(), n)
		if r == nil || r.Image == nil {
			return fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, entry.Path())
		}
		t.add(newFrame(n, entry, imageSource{r: r.Image}, t.logger))
	}

	t.kind = KindSequence
	if t.seq.IsSingle() {
		t.kind = KindSingle
	}
	return nil
}

func (t *Timeline) loadMovie(ctx context.Context, registry *reader.Registry) error {
	seed := t.seq.First()
	r := registry.GetReader(seed.Extension, seed.Path(), 0)
	if r == nil || r.Movie == nil {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, seed.Path())
	}
	t.movie = r.Movie

	info, err := r.Movie.Info(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidMedia, seed.Path(), err)
	}
	if info.FrameCount <= 0 {
		return fmt.Errorf("%w: %s reports no frames", domain.ErrInvalidMedia, seed.Path())
	}
	t.info = info

	t.seq.ExpandMovie(info.FrameCount)
	src := &movieSource{r: r.Movie}
	for _, n := range t.seq.Frames() {
		entry, _ := t.seq.Entry(n)
		t.add(newFrame(n, entry, src, t.logger))
	}

	t.kind = KindMovie
	return nil
}

func (t *Timeline) add(f *Frame) {
	t.frames[f.number] = f
	t.numbers = append(t.numbers, f.number)
}

func (t *Timeline) invalidate(err error) {
	t.logger.Warn("invalid media", zap.Error(err))
	if t.movie != nil {
		_ = t.movie.Close()
		t.movie = nil
	}
	t.kind = KindInvalid
	t.err = err
	t.frames = make(map[int]*Frame)
	t.numbers = nil
}

// ID returns the unique id of this timeline.
func (t *Timeline) ID() string { return t.id }

// Kind returns the media kind.
func (t *Timeline) Kind() Kind { return t.kind }

// Valid reports whether the timeline loaded.
func (t *Timeline) Valid() bool { return t.err == nil }

// Err returns the load failure, if any.
func (t *Timeline) Err() error { return t.err }

// Sequence returns the underlying sequence.
func (t *Timeline) Sequence() *sequence.Sequence { return t.seq }

// MovieInfo returns the probed container info for movies, nil otherwise.
func (t *Timeline) MovieInfo() *reader.MovieInfo { return t.info }

// Len returns the number of available frames.
func (t *Timeline) Len() int { return len(t.numbers) }

// FirstFrame returns the lowest frame number, or 0 when invalid.
func (t *Timeline) FirstFrame() int {
	if len(t.numbers) == 0 {
		return 0
	}
	return t.numbers[0]
}

// LastFrame returns the highest frame number, or 0 when invalid.
func (t *Timeline) LastFrame() int {
	if len(t.numbers) == 0 {
		return 0
	}
	return t.numbers[len(t.numbers)-1]
}

// Contains reports whether frame f exists.
func (t *Timeline) Contains(f int) bool {
	_, ok := t.frames[f]
	return ok
}

// HasFrame reports whether f lies inside [FirstFrame, LastFrame], gaps included.
func (t *Timeline) HasFrame(f int) bool {
	return len(t.numbers) > 0 && f >= t.FirstFrame() && f <= t.LastFrame()
}

// NearestFrame returns the largest available frame <= f, or the first
// frame when there is none.
func (t *Timeline) NearestFrame(f int) int {
	if len(t.numbers) == 0 {
		return 0
	}
	i := sort.SearchInts(t.numbers, f+1) - 1
	if i < 0 {
		return t.numbers[0]
	}
	return t.numbers[i]
}

// Frame returns frame n.
func (t *Timeline) Frame(n int) (*Frame, bool) {
	f, ok := t.frames[n]
	return f, ok
}

// Frames returns the available frame numbers in ascending order.
func (t *Timeline) Frames() []int {
	return append([]int(nil), t.numbers...)
}

// MissingFrames lists the gaps inside the range.
func (t *Timeline) MissingFrames() []int {
	var missing []int
	for i := 1; i < len(t.numbers); i++ {
		for f := t.numbers[i-1] + 1; f < t.numbers[i]; f++ {
			missing = append(missing, f)
		}
	}
	return missing
}

// Image returns the decoded pixels of frame n, or nil when n is absent or
// not cached.
func (t *Timeline) Image(n int) *reader.Buffer {
	f, ok := t.frames[n]
	if !ok {
		return nil
	}
	return f.Image()
}

// Metadata returns key/value metadata for frame n.
func (t *Timeline) Metadata(n int) map[string]string {
	f, ok := t.frames[n]
	if !ok {
		return nil
	}
	meta := f.Metadata()
	meta["media_id"] = t.id
	meta["kind"] = t.kind.String()
	return meta
}

// Close releases every buffer and the movie decoder.
func (t *Timeline) Close() error {
	for _, f := range t.frames {
		f.ClearCache()
	}
	if t.movie != nil {
		err := t.movie.Close()
		t.movie = nil
		return err
	}
	return nil
}
