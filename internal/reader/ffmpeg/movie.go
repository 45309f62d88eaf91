// Package ffmpeg decodes movie containers through the ffmpeg command line
// tools, driven by u2takey/ffmpeg-go.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ffgo "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"github.com/vertextoedge/media-frame-cache/internal/domain"
	"github.com/vertextoedge/media-frame-cache/internal/reader"
)

// MovieExtensions are the containers handed to ffmpeg.
var MovieExtensions = []string{"mov", "mp4", "m4v", "mkv", "avi", "webm", "mxf"}

// maxSeekAttempts bounds the exact-frame seek retry loop.
const maxSeekAttempts = 3

// SeekMode selects how a frame is located inside the container.
type SeekMode int

const (
	// SeekKeyframe seeks to the keyframe before the target timestamp and
	// decodes forward to it.
	SeekKeyframe SeekMode = iota
	// SeekForward decodes from the start and selects the frame by index.
	SeekForward
)

func (m SeekMode) String() string {
	if m == SeekForward {
		return "forward"
	}
	return "keyframe"
}

// Grabber runs the external decoder.
type Grabber interface {
	// Probe returns container information.
	Probe(ctx context.Context, path string) (*reader.MovieInfo, error)
	// Grab returns the raw RGBA pixels of one frame.
	Grab(ctx context.Context, path string, index int, info *reader.MovieInfo, mode SeekMode) ([]byte, error)
}

// Config contains movie reader settings
type Config struct {
	ProbeTimeout time.Duration
	SeekRetries  int
}

// DefaultConfig returns default movie reader configuration
func DefaultConfig() *Config {
	return &Config{
		ProbeTimeout: 10 * time.Second,
		SeekRetries:  maxSeekAttempts,
	}
}

// MovieReader decodes frames of one container.
// A single mutex covers probe, seek and decode so the reader is never
// entered concurrently.
type MovieReader struct {
	path    string
	grabber Grabber
	retries int
	logger  *zap.Logger

	mu     sync.Mutex
	info   *reader.MovieInfo
	closed bool
}

// Ensure MovieReader implements reader.MovieReader
var _ reader.MovieReader = (*MovieReader)(nil)

// NewMovieReader creates a reader for path.
func NewMovieReader(path string, grabber Grabber, cfg *Config, logger *zap.Logger) *MovieReader {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retries := cfg.SeekRetries
	if retries < 1 || retries > maxSeekAttempts {
		retries = maxSeekAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MovieReader{
		path:    path,
		grabber: grabber,
		retries: retries,
		logger:  logger,
	}
}

// Register adds the ffmpeg-backed movie reader to reg.
func Register(reg reader.Registrar, cfg *Config, logger *zap.Logger) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	grabber := NewCommandGrabber(cfg.ProbeTimeout)
	reg.RegisterMovie(MovieExtensions, func(path string) reader.MovieReader {
		return NewMovieReader(path, grabber, cfg, logger)
	})
}

// Info probes the container once and caches the result.
func (m *MovieReader) Info(ctx context.Context) (*reader.MovieInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.infoLocked(ctx)
}

func (m *MovieReader) infoLocked(ctx context.Context) (*reader.MovieInfo, error) {
	if m.closed {
		return nil, domain.ErrDecoderClosed
	}
	if m.info != nil {
		return m.info, nil
	}
	info, err := m.grabber.Probe(ctx, m.path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", m.path, err)
	}
	m.info = info
	return info, nil
}

// ReadFrame decodes the frame at index. Seek and decode run as one critical
// section. Up to three attempts alternate keyframe and forward seeks.
func (m *MovieReader) ReadFrame(ctx context.Context, index int) (*reader.Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := m.infoLocked(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= info.FrameCount {
		return nil, domain.NewFrameError(index, domain.ErrFrameNotFound)
	}

	expected := info.Width * info.Height * 4
	var lastErr error
	for attempt := 1; attempt <= m.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mode := SeekKeyframe
		if attempt%2 == 0 {
			mode = SeekForward
		}

		pix, err := m.grabber.Grab(ctx, m.path, index, info, mode)
		if err == nil && len(pix) != expected {
			err = fmt.Errorf("short frame: got %d bytes, want %d", len(pix), expected)
		}
		if err == nil {
			return &reader.Buffer{
				Width:  info.Width,
				Height: info.Height,
				Stride: info.Width * 4,
				Pix:    pix,
				Metadata: map[string]string{
					"path":       m.path,
					"codec":      info.Codec,
					"frame":      fmt.Sprint(index),
					"width":      fmt.Sprint(info.Width),
					"height":     fmt.Sprint(info.Height),
					"frame_rate": fmt.Sprintf("%.3f", info.FrameRate),
					"seek_mode":  mode.String(),
				},
			}, nil
		}

		lastErr = domain.NewRetryableError(err, attempt)
		m.logger.Debug("movie seek attempt failed",
			zap.String("path", m.path),
			zap.Int("index", index),
			zap.Int("attempt", attempt),
			zap.Stringer("mode", mode),
			zap.Error(err))
	}

	return nil, domain.NewFrameError(index, fmt.Errorf("%w: %w", domain.ErrFrameNotDecoded, lastErr))
}

// Close releases the reader. Further reads fail with ErrDecoderClosed.
func (m *MovieReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// CommandGrabber shells out to ffprobe/ffmpeg through ffmpeg-go.
type CommandGrabber struct {
	probeTimeout time.Duration
}

// NewCommandGrabber creates a grabber using the ffmpeg binaries on PATH.
func NewCommandGrabber(probeTimeout time.Duration) *CommandGrabber {
	return &CommandGrabber{probeTimeout: probeTimeout}
}

// Probe runs ffprobe on the first video stream.
func (g *CommandGrabber) Probe(ctx context.Context, path string) (*reader.MovieInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := ffgo.ProbeWithTimeout(path, g.probeTimeout, ffgo.KwArgs{"select_streams": "v:0"})
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return ParseProbe(out)
}

// Grab extracts one frame as raw RGBA.
func (g *CommandGrabber) Grab(ctx context.Context, path string, index int, info *reader.MovieInfo, mode SeekMode) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	output := ffgo.KwArgs{
		"vframes": 1,
		"format":  "rawvideo",
		"pix_fmt": "rgba",
	}

	var stream *ffgo.Stream
	switch {
	case mode == SeekKeyframe && info.FrameRate > 0:
		ts := float64(index) / info.FrameRate
		stream = ffgo.Input(path, ffgo.KwArgs{"ss": fmt.Sprintf("%.6f", ts)}).
			Output("pipe:", output)
	default:
		stream = ffgo.Input(path).
			Filter("select", ffgo.Args{fmt.Sprintf("gte(n,%d)", index)}).
			Output("pipe:", output)
	}

	var stdout, stderr bytes.Buffer
	if err := stream.WithOutput(&stdout, &stderr).Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg %s seek failed: %w: %s", mode, err, lastLine(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
