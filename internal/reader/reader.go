// Package reader defines decoders for media files and the registry that maps
// file extensions to decoder factories.
package reader

import (
	"context"
	"image"
	"image/draw"
)

// Buffer holds one decoded frame as packed RGBA pixels.
// Consumers must treat Pix as read-only.
type Buffer struct {
	Width    int
	Height   int
	Stride   int
	Pix      []byte
	Metadata map[string]string
}

// Size returns the memory cost of the buffer in bytes.
func (b *Buffer) Size() int64 {
	if b == nil {
		return 0
	}
	return int64(len(b.Pix))
}

// RGBA returns an image.RGBA view over the buffer without copying.
func (b *Buffer) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Pix,
		Stride: b.Stride,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// FromImage converts any decoded image into an RGBA buffer.
func FromImage(img image.Image, metadata map[string]string) *Buffer {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		bounds := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Rect, img, bounds.Min, draw.Src)
	}
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &Buffer{
		Width:    rgba.Rect.Dx(),
		Height:   rgba.Rect.Dy(),
		Stride:   rgba.Stride,
		Pix:      rgba.Pix,
		Metadata: metadata,
	}
}

// ImageReader decodes a single image file.
type ImageReader interface {
	// Read decodes the file. It may be called again after a failure.
	Read(ctx context.Context) (*Buffer, error)
}

// MovieInfo describes a movie container.
type MovieInfo struct {
	FrameCount int
	Width      int
	Height     int
	FrameRate  float64
	Codec      string
}

// MovieReader decodes frames of one movie container.
// Implementations hold an open decode context and are not reentrant:
// callers must serialize ReadFrame calls.
type MovieReader interface {
	// Info reports frame count and geometry.
	Info(ctx context.Context) (*MovieInfo, error)

	// ReadFrame decodes the frame at the given presentation index.
	ReadFrame(ctx context.Context, index int) (*Buffer, error)

	// Close releases the decode context.
	Close() error
}

// ImageFactory creates an image decoder bound to one file.
type ImageFactory func(path string, frame int) ImageReader

// MovieFactory creates a movie decoder bound to one container.
type MovieFactory func(path string) MovieReader

// Reader is the result of a registry lookup: exactly one field is set.
type Reader struct {
	Image ImageReader
	Movie MovieReader
}

// IsMovie reports whether the lookup resolved a movie decoder.
func (r *Reader) IsMovie() bool {
	return r != nil && r.Movie != nil
}
