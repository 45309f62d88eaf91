package media

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/media-frame-cache/internal/domain"
	"github.com/vertextoedge/media-frame-cache/internal/domain/event"
	"github.com/vertextoedge/media-frame-cache/internal/mediapath"
	"github.com/vertextoedge/media-frame-cache/internal/reader"
	"github.com/vertextoedge/media-frame-cache/internal/sequence"
)

// mockImageReader implements reader.ImageReader for testing
type mockImageReader struct {
	reads *atomic.Int64
	fail  *atomic.Bool
	delay time.Duration
}

func (m *mockImageReader) Read(ctx context.Context) (*reader.Buffer, error) {
	m.reads.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.fail != nil && m.fail.Load() {
		return nil, errors.New("decode failed")
	}
	return &reader.Buffer{
		Width:    2,
		Height:   2,
		Stride:   8,
		Pix:      make([]byte, 16),
		Metadata: map[string]string{"format": "mock"},
	}, nil
}

// mockMovieReader implements reader.MovieReader for testing
type mockMovieReader struct {
	frames  int
	active  atomic.Int32
	overlap atomic.Bool
	closed  atomic.Bool
}

func (m *mockMovieReader) Info(ctx context.Context) (*reader.MovieInfo, error) {
	return &reader.MovieInfo{FrameCount: m.frames, Width: 4, Height: 4, FrameRate: 24}, nil
}

func (m *mockMovieReader) ReadFrame(ctx context.Context, index int) (*reader.Buffer, error) {
	if m.active.Add(1) > 1 {
		m.overlap.Store(true)
	}
	defer m.active.Add(-1)
	time.Sleep(time.Millisecond)
	return &reader.Buffer{Width: 4, Height: 4, Stride: 16, Pix: make([]byte, 64)}, nil
}

func (m *mockMovieReader) Close() error {
	m.closed.Store(true)
	return nil
}

type fixture struct {
	registry *reader.Registry
	reads    atomic.Int64
	fail     atomic.Bool
	movie    *mockMovieReader
}

func newFixture() *fixture {
	f := &fixture{movie: &mockMovieReader{frames: 24}}
	f.registry = reader.NewRegistry(zap.NewNop())
	f.registry.RegisterImage([]string{"exr", "png"}, func(path string, frame int) reader.ImageReader {
		return &mockImageReader{reads: &f.reads, fail: &f.fail, delay: 5 * time.Millisecond}
	})
	f.registry.RegisterMovie([]string{"mov"}, func(path string) reader.MovieReader {
		return f.movie
	})
	return f
}

func seqOf(frames ...int) *sequence.Sequence {
	seq := sequence.New(mediapath.NewEntry("/plates", "shot", frames[0], 4, "exr"))
	for _, n := range frames[1:] {
		seq.Add(mediapath.NewEntry("/plates", "shot", n, 4, "exr"))
	}
	return seq
}

func TestTimeline_RangeQueries(t *testing.T) {
	f := newFixture()
	tl := Load(context.Background(), seqOf(1000, 1010), f.registry, nil, zap.NewNop())
	if !tl.Valid() {
		t.Fatalf("Load() invalid: %v", tl.Err())
	}

	tests := []struct {
		frame   int
		nearest int
		has     bool
		exact   bool
	}{
		{999, 1000, false, false},
		{1000, 1000, true, true},
		{1005, 1000, true, false},
		{1010, 1010, true, true},
		{1011, 1010, false, false},
	}

	for _, tt := range tests {
		if got := tl.NearestFrame(tt.frame); got != tt.nearest {
			t.Errorf("NearestFrame(%d) = %d, want %d", tt.frame, got, tt.nearest)
		}
		if got := tl.HasFrame(tt.frame); got != tt.has {
			t.Errorf("HasFrame(%d) = %v, want %v", tt.frame, got, tt.has)
		}
		if got := tl.Contains(tt.frame); got != tt.exact {
			t.Errorf("Contains(%d) = %v, want %v", tt.frame, got, tt.exact)
		}
	}

	if tl.FirstFrame() != 1000 || tl.LastFrame() != 1010 || tl.Kind() != KindSequence {
		t.Errorf("first=%d last=%d kind=%s", tl.FirstFrame(), tl.LastFrame(), tl.Kind())
	}
	if got := len(tl.MissingFrames()); got != 9 {
		t.Errorf("MissingFrames() len = %d, want 9", got)
	}
}

func TestTimeline_GapInsideRange(t *testing.T) {
	f := newFixture()
	tl := Load(context.Background(), seqOf(1001, 1002, 1003, 1004, 1006, 1007, 1008, 1009, 1010), f.registry, nil, zap.NewNop())

	if tl.Contains(1005) {
		t.Error("Contains(1005) = true")
	}
	if !tl.HasFrame(1005) {
		t.Error("HasFrame(1005) = false")
	}
	if got := tl.NearestFrame(1005); got != 1004 {
		t.Errorf("NearestFrame(1005) = %d, want 1004", got)
	}
	if got := tl.MissingFrames(); !reflect.DeepEqual(got, []int{1005}) {
		t.Errorf("MissingFrames() = %v", got)
	}
}

func TestFrame_CacheIsIdempotent(t *testing.T) {
	f := newFixture()
	tl := Load(context.Background(), seqOf(1), f.registry, nil, zap.NewNop())
	frame, ok := tl.Frame(1)
	if !ok {
		t.Fatal("Frame(1) missing")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := frame.Cache(context.Background()); err != nil {
				t.Errorf("Cache() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.reads.Load(); got != 1 {
		t.Errorf("underlying decodes = %d, want 1", got)
	}
	if frame.Decodes() != 1 || !frame.Cached() {
		t.Errorf("Decodes() = %d, Cached() = %v", frame.Decodes(), frame.Cached())
	}

	if released := frame.ClearCache(); released != 16 {
		t.Errorf("ClearCache() = %d, want 16", released)
	}
	if frame.Size() != 16 {
		t.Errorf("Size() after clear = %d, want last known 16", frame.Size())
	}
	if _, err := frame.Cache(context.Background()); err != nil {
		t.Fatalf("Cache() after clear error = %v", err)
	}
	if got := f.reads.Load(); got != 2 {
		t.Errorf("decodes after clear = %d, want 2", got)
	}
}

func TestFrame_DecodeFailureIsRetryable(t *testing.T) {
	f := newFixture()
	f.fail.Store(true)
	tl := Load(context.Background(), seqOf(7), f.registry, nil, zap.NewNop())
	frame, _ := tl.Frame(7)

	_, err := frame.Cache(context.Background())
	var fe *domain.FrameError
	if !errors.As(err, &fe) || fe.Frame != 7 {
		t.Fatalf("Cache() error = %v, want FrameError for 7", err)
	}
	if frame.Cached() || tl.Image(7) != nil {
		t.Error("failed decode left a buffer")
	}

	f.fail.Store(false)
	if _, err := frame.Cache(context.Background()); err != nil {
		t.Fatalf("retry Cache() error = %v", err)
	}
	if tl.Image(7) == nil {
		t.Error("Image(7) nil after successful retry")
	}
	if got := tl.Metadata(7)["format"]; got != "mock" {
		t.Errorf("Metadata format = %q", got)
	}
}

func TestTimeline_UnsupportedExtension(t *testing.T) {
	f := newFixture()
	seq := sequence.New(mediapath.NewEntry("/plates", "shot", 1, 4, "xyz"))

	dispatcher := event.NewInMemoryDispatcher(false)
	var loaded []event.MediaLoaded
	dispatcher.Subscribe(handlerFunc(func(e event.DomainEvent) {
		loaded = append(loaded, e.(event.MediaLoaded))
	}))

	tl := Load(context.Background(), seq, f.registry, dispatcher, zap.NewNop())

	if tl.Valid() {
		t.Fatal("Load() of unsupported extension is valid")
	}
	if !errors.Is(tl.Err(), domain.ErrUnsupportedFormat) {
		t.Errorf("Err() = %v, want ErrUnsupportedFormat", tl.Err())
	}
	if tl.Len() != 0 || tl.Kind() != KindInvalid || tl.Image(1) != nil {
		t.Error("invalid timeline is not empty")
	}
	if len(loaded) != 1 || loaded[0].Valid {
		t.Errorf("media.loaded events = %+v", loaded)
	}
}

func TestTimeline_EmptySequence(t *testing.T) {
	f := newFixture()
	seq := sequence.New(mediapath.Parse("/plates/shot.####.exr"))
	tl := Load(context.Background(), seq, f.registry, nil, zap.NewNop())
	if !errors.Is(tl.Err(), domain.ErrEmptySequence) {
		t.Errorf("Err() = %v, want ErrEmptySequence", tl.Err())
	}
}

func TestTimeline_Movie(t *testing.T) {
	f := newFixture()
	seq := sequence.NewMovie(mediapath.Parse("/plates/plate.mov"))
	tl := Load(context.Background(), seq, f.registry, nil, zap.NewNop())

	if !tl.Valid() || tl.Kind() != KindMovie {
		t.Fatalf("Load() valid=%v kind=%s err=%v", tl.Valid(), tl.Kind(), tl.Err())
	}
	if tl.FirstFrame() != 0 || tl.LastFrame() != 23 || tl.Len() != 24 {
		t.Errorf("range = %d-%d len %d", tl.FirstFrame(), tl.LastFrame(), tl.Len())
	}
	if tl.MovieInfo().FrameRate != 24 {
		t.Errorf("FrameRate = %v", tl.MovieInfo().FrameRate)
	}

	var wg sync.WaitGroup
	for _, n := range tl.Frames() {
		frame, _ := tl.Frame(n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = frame.Cache(context.Background())
		}()
	}
	wg.Wait()

	if f.movie.overlap.Load() {
		t.Error("movie decoder was entered concurrently")
	}

	if err := tl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !f.movie.closed.Load() || tl.Image(0) != nil {
		t.Error("Close() did not release the decoder and buffers")
	}
}

func TestTimeline_MovieFromPlainSequence(t *testing.T) {
	f := newFixture()
	seq := sequence.New(mediapath.Parse("/plates/plate.mov"))
	tl := Load(context.Background(), seq, f.registry, nil, zap.NewNop())
	if tl.Kind() != KindMovie || tl.Len() != 24 {
		t.Errorf("kind=%s len=%d", tl.Kind(), tl.Len())
	}
}

func TestTimeline_Single(t *testing.T) {
	f := newFixture()
	seq := sequence.New(mediapath.Parse("/plates/still.png"))
	tl := Load(context.Background(), seq, f.registry, nil, zap.NewNop())
	if tl.Kind() != KindSingle || tl.Len() != 1 {
		t.Errorf("kind=%s len=%d", tl.Kind(), tl.Len())
	}
	if tl.NearestFrame(50) != 0 {
		t.Errorf("NearestFrame(50) = %d", tl.NearestFrame(50))
	}
}

type handlerFunc func(event.DomainEvent)

func (h handlerFunc) Handle(e event.DomainEvent) error {
	h(e)
	return nil
}

func (h handlerFunc) HandledEvents() []string {
	return []string{event.NameMediaLoaded}
}
