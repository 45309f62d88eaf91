// Package builtin registers the image formats decodable in pure Go.
package builtin

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/vertextoedge/media-frame-cache/internal/reader"
)

// ImageExtensions are the still-image formats handled by StdImageReader.
var ImageExtensions = []string{"png", "jpg", "jpeg", "gif", "tif", "tiff", "bmp", "webp"}

// Register adds the built-in image readers to reg.
func Register(reg reader.Registrar) {
	reg.RegisterImage(ImageExtensions, NewStdImageReader)
}

// StdImageReader decodes one image file with the registered image decoders.
type StdImageReader struct {
	path  string
	frame int
}

// NewStdImageReader creates a reader bound to path. It satisfies reader.ImageFactory.
func NewStdImageReader(path string, frame int) reader.ImageReader {
	return &StdImageReader{path: path, frame: frame}
}

// Read opens and decodes the file.
func (r *StdImageReader) Read(ctx context.Context) (*reader.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(r.path), err)
	}

	bounds := img.Bounds()
	meta := map[string]string{
		"path":      r.path,
		"format":    format,
		"width":     fmt.Sprint(bounds.Dx()),
		"height":    fmt.Sprint(bounds.Dy()),
		"frame":     fmt.Sprint(r.frame),
		"file_size": humanize.IBytes(uint64(info.Size())),
		"modified":  info.ModTime().UTC().Format(time.RFC3339),
	}
	return reader.FromImage(img, meta), nil
}

// IsImageExtension reports whether ext is one of the built-in formats.
func IsImageExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, e := range ImageExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
