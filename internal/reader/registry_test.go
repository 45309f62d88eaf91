package reader

import (
	"context"
	"image"
	"image/color"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubImage struct {
	path  string
	frame int
	tag   string
}

func (s *stubImage) Read(ctx context.Context) (*Buffer, error) {
	return &Buffer{Width: 1, Height: 1, Stride: 4, Pix: make([]byte, 4)}, nil
}

type stubMovie struct {
	path string
}

func (s *stubMovie) Info(ctx context.Context) (*MovieInfo, error) {
	return &MovieInfo{FrameCount: 10}, nil
}
func (s *stubMovie) ReadFrame(ctx context.Context, index int) (*Buffer, error) { return nil, nil }
func (s *stubMovie) Close() error                                              { return nil }

func imageFactory(tag string) ImageFactory {
	return func(path string, frame int) ImageReader {
		return &stubImage{path: path, frame: frame, tag: tag}
	}
}

func TestRegistry_GetReaderUnregistered(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	if got := r.GetReader("exr", "/a/shot.1001.exr", 1001); got != nil {
		t.Errorf("GetReader() = %v, want nil", got)
	}
	if got := r.GetImageReader("exr", "/a/shot.1001.exr", 1001); got != nil {
		t.Errorf("GetImageReader() = %v, want nil", got)
	}
	if got := r.GetMovieReader("mov", "/a/plate.mov"); got != nil {
		t.Errorf("GetMovieReader() = %v, want nil", got)
	}
	if r.Supports("exr") {
		t.Error("Supports() = true for unregistered extension")
	}
}

func TestRegistry_GetReaderAfterRegister(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.RegisterImage([]string{".EXR", "dpx"}, imageFactory("first"))
	r.RegisterMovie([]string{"mov"}, func(path string) MovieReader { return &stubMovie{path: path} })

	got := r.GetReader("exr", "/a/shot.1001.exr", 1001)
	if got == nil || got.Image == nil {
		t.Fatalf("GetReader(exr) = %v, want image reader", got)
	}
	img := got.Image.(*stubImage)
	if img.path != "/a/shot.1001.exr" || img.frame != 1001 {
		t.Errorf("factory received (%q, %d)", img.path, img.frame)
	}
	if got.IsMovie() {
		t.Error("IsMovie() = true for image reader")
	}

	mov := r.GetReader(".MOV", "/a/plate.mov", 0)
	if mov == nil || !mov.IsMovie() {
		t.Fatalf("GetReader(mov) = %v, want movie reader", mov)
	}
	if !r.IsMovie("mov") || r.IsMovie("exr") {
		t.Error("IsMovie() mismatch")
	}
}

func TestRegistry_FirstRegistrationWins(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRegistry(zap.New(core))

	r.RegisterImage([]string{"png"}, imageFactory("first"))
	r.RegisterImage([]string{"png"}, imageFactory("second"))
	r.RegisterMovie([]string{"png"}, func(path string) MovieReader { return &stubMovie{} })

	got := r.GetImageReader("png", "a.png", 0).(*stubImage)
	if got.tag != "first" {
		t.Errorf("tag = %q, want %q", got.tag, "first")
	}
	if r.IsMovie("png") {
		t.Error("movie registration overrode image registration")
	}
	if logs.Len() != 2 {
		t.Errorf("warnings logged = %d, want 2", logs.Len())
	}
}

func TestRegistry_Extensions(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterImage([]string{"png", "jpg"}, imageFactory("x"))
	r.RegisterMovie([]string{"mp4", "mov"}, func(path string) MovieReader { return &stubMovie{} })

	images, movies := r.Extensions()
	if !reflect.DeepEqual(images, []string{"jpg", "png"}) {
		t.Errorf("images = %v", images)
	}
	if !reflect.DeepEqual(movies, []string{"mov", "mp4"}) {
		t.Errorf("movies = %v", movies)
	}
}

func TestFromImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(2, 3, 6, 5))
	src.Set(2, 3, color.NRGBA{R: 255, A: 255})

	buf := FromImage(src, nil)
	if buf.Width != 4 || buf.Height != 2 {
		t.Fatalf("size = %dx%d, want 4x2", buf.Width, buf.Height)
	}
	if buf.Size() != 4*2*4 {
		t.Errorf("Size() = %d, want %d", buf.Size(), 32)
	}
	if r, _, _, a := buf.RGBA().At(0, 0).RGBA(); r != 0xffff || a != 0xffff {
		t.Errorf("pixel (0,0) = r%d a%d, want opaque red", r, a)
	}
	if buf.Metadata == nil {
		t.Error("Metadata should be initialized")
	}
	var nilBuf *Buffer
	if nilBuf.Size() != 0 {
		t.Error("nil buffer Size() should be 0")
	}
}
