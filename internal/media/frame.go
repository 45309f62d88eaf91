package media

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/vertextoedge/media-frame-cache/internal/domain"
	"github.com/vertextoedge/media-frame-cache/internal/mediapath"
	"github.com/vertextoedge/media-frame-cache/internal/reader"
)

// source decodes the pixels of one frame.
type source interface {
	decode(ctx context.Context, index int) (*reader.Buffer, error)
}

type imageSource struct {
	r reader.ImageReader
}

func (s imageSource) decode(ctx context.Context, _ int) (*reader.Buffer, error) {
	return s.r.Read(ctx)
}

// movieSource serializes every seek+decode on the shared movie decoder.
type movieSource struct {
	mu sync.Mutex
	r  reader.MovieReader
}

func (s *movieSource) decode(ctx context.Context, index int) (*reader.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.ReadFrame(ctx, index)
}

// Frame pairs an entry with its decoder and a possibly-empty pixel buffer.
type Frame struct {
	number int
	entry  mediapath.Entry
	src    source
	logger *zap.Logger

	mu       sync.Mutex
	buffer   *reader.Buffer
	lastSize int64
	decodes  int
}

func newFrame(number int, entry mediapath.Entry, src source, logger *zap.Logger) *Frame {
	return &Frame{
		number: number,
		entry:  entry,
		src:    src,
		logger: logger,
	}
}

// Number returns the frame number.
func (f *Frame) Number() int {
	return f.number
}

// Entry returns the entry the frame decodes from.
func (f *Frame) Entry() mediapath.Entry {
	return f.entry
}

// Cache decodes the frame if its buffer is empty and returns the buffer
// size. Concurrent callers block until the first decode finishes; only one
// decode ever runs. On failure the buffer stays empty and a later call
// retries.
func (f *Frame) Cache(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.buffer != nil {
		return f.buffer.Size(), nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	buf, err := f.src.decode(ctx, f.number)
	if err == nil && buf == nil {
		err = domain.ErrFrameNotDecoded
	}
	if err != nil {
		f.logger.Warn("failed to decode frame",
			zap.String("path", f.entry.Path()),
			zap.Int("frame", f.number),
			zap.Error(err))
		return 0, domain.NewFrameError(f.number, err)
	}

	f.buffer = buf
	f.lastSize = buf.Size()
	f.decodes++
	return f.lastSize, nil
}

// ClearCache releases the pixel buffer and returns the bytes released.
func (f *Frame) ClearCache() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.buffer == nil {
		return 0
	}
	size := f.buffer.Size()
	f.buffer = nil
	return size
}

// Cached reports whether pixels are resident.
func (f *Frame) Cached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buffer != nil
}

// Image returns the decoded buffer, or nil when not cached.
// Callers must not mutate it.
func (f *Frame) Image() *reader.Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buffer
}

// Size returns the current buffer size, or the last known size once evicted.
func (f *Frame) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buffer != nil {
		return f.buffer.Size()
	}
	return f.lastSize
}

// Decodes returns how many successful decodes the frame has performed.
func (f *Frame) Decodes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decodes
}

// Metadata returns the decoder metadata once decoded, and the entry
// description otherwise.
func (f *Frame) Metadata() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	meta := map[string]string{
		"path":  f.entry.Path(),
		"frame": strconv.Itoa(f.number),
	}
	if f.buffer != nil {
		for k, v := range f.buffer.Metadata {
			meta[k] = v
		}
	}
	return meta
}
