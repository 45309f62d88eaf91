package sequence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vertextoedge/media-frame-cache/internal/domain"
	"github.com/vertextoedge/media-frame-cache/internal/domain/event"
	"github.com/vertextoedge/media-frame-cache/internal/mediapath"
	"github.com/vertextoedge/media-frame-cache/internal/reader"
)

// Config contains aggregator configuration
type Config struct {
	IncludeHidden bool
}

// DefaultConfig returns default aggregator configuration
func DefaultConfig() *Config {
	return &Config{}
}

// ScanResult is the outcome of a directory scan. Errors holds every
// per-file failure; the scan continues past them.
type ScanResult struct {
	Sequences []*Sequence
	Files     int
	Skipped   int
	Errors    error
}

// Aggregator discovers sequences on a filesystem.
type Aggregator struct {
	fs         afero.Fs
	registry   *reader.Registry
	dispatcher event.EventDispatcher
	config     *Config
	logger     *zap.Logger
}

// NewAggregator creates a new Aggregator. A nil registry accepts every
// extension and treats nothing as a movie.
func NewAggregator(
	fs afero.Fs,
	registry *reader.Registry,
	dispatcher event.EventDispatcher,
	cfg *Config,
	logger *zap.Logger,
) *Aggregator {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dispatcher == nil {
		dispatcher = event.NewNullDispatcher()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		fs:         fs,
		registry:   registry,
		dispatcher: dispatcher,
		config:     cfg,
		logger:     logger,
	}
}

// FromFile builds the sequence path belongs to. Single files and movies
// yield a one-entry sequence; frame or templated paths pull in every
// similar sibling from the same directory.
func (a *Aggregator) FromFile(ctx context.Context, path string) (*Sequence, error) {
	seed := mediapath.Parse(path)

	if !seed.Templated {
		if _, err := a.fs.Stat(seed.Path()); err != nil {
			return nil, a.statError(path, err)
		}
	}

	switch {
	case a.isMovie(seed.Extension):
		seq := NewMovie(seed)
		a.discovered(seq)
		return seq, nil
	case seed.SingleFile:
		seq := New(seed)
		a.discovered(seq)
		return seq, nil
	}

	seq := New(seed)
	names, err := afero.ReadDir(a.fs, seed.Basepath)
	if err != nil {
		return nil, a.statError(seed.Basepath, err)
	}

	for _, info := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if info.IsDir() || !a.visible(info.Name()) {
			continue
		}
		e := mediapath.Parse(filepath.Join(seed.Basepath, info.Name()))
		if seq.Validate(e) {
			seq.Add(e)
		}
	}

	if seq.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptySequence, path)
	}

	a.logger.Debug("sequence built from file",
		zap.String("path", path),
		zap.String("pattern", seq.Pattern()),
		zap.Int("frames", seq.Len()))

	a.discovered(seq)
	return seq, nil
}

// FromDirectory groups the files directly inside dir.
func (a *Aggregator) FromDirectory(ctx context.Context, dir string) (*ScanResult, error) {
	return a.scan(ctx, dir, false)
}

// FromTree groups every file below root.
func (a *Aggregator) FromTree(ctx context.Context, root string) (*ScanResult, error) {
	return a.scan(ctx, root, true)
}

func (a *Aggregator) scan(ctx context.Context, root string, recursive bool) (*ScanResult, error) {
	root = filepath.Clean(root)
	info, err := a.fs.Stat(root)
	if err != nil {
		return nil, a.statError(root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, root)
	}

	result := &ScanResult{}
	walkErr := afero.Walk(a.fs, root, func(path string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Permission problems and files deleted mid-scan end up here.
			a.logger.Warn("scan error",
				zap.String("path", path),
				zap.Error(err))
			result.Errors = multierr.Append(result.Errors, domain.NewSkippableError(err, path))
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if path == root {
				return nil
			}
			if !recursive || !a.visible(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !a.visible(info.Name()) {
			return nil
		}

		result.Files++
		a.classify(result, mediapath.Parse(path))
		return nil
	})
	// An unreadable root hands SkipDir back out of Walk; it is already in
	// result.Errors.
	if walkErr != nil && !errors.Is(walkErr, filepath.SkipDir) {
		return result, walkErr
	}

	for _, seq := range result.Sequences {
		a.discovered(seq)
	}

	a.logger.Info("scan completed",
		zap.String("root", root),
		zap.Bool("recursive", recursive),
		zap.Int("files", result.Files),
		zap.Int("sequences", len(result.Sequences)),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(multierr.Errors(result.Errors))))

	return result, nil
}

// classify adds e to the first accumulated sequence it validates against.
// Once accepted a file is never checked against later sequences, so scan
// order decides the grouping of colliding names.
func (a *Aggregator) classify(result *ScanResult, e mediapath.Entry) {
	if a.registry != nil && !a.registry.Supports(e.Extension) {
		result.Skipped++
		return
	}

	switch {
	case a.isMovie(e.Extension):
		result.Sequences = append(result.Sequences, NewMovie(e))
		return
	case e.Templated:
		result.Skipped++
		return
	case e.SingleFile:
		result.Sequences = append(result.Sequences, New(e))
		return
	}

	for _, seq := range result.Sequences {
		if !seq.Validate(e) {
			continue
		}
		if !seq.Add(e) {
			a.logger.Debug("duplicate frame ignored",
				zap.String("path", e.Path()),
				zap.Int("frame", e.Frame))
		}
		return
	}
	result.Sequences = append(result.Sequences, New(e))
}

func (a *Aggregator) isMovie(ext string) bool {
	return a.registry != nil && a.registry.IsMovie(ext)
}

func (a *Aggregator) visible(name string) bool {
	return a.config.IncludeHidden || !strings.HasPrefix(name, ".")
}

func (a *Aggregator) discovered(seq *Sequence) {
	start, end, _ := seq.Range()
	a.dispatcher.Dispatch(event.NewSequenceDiscovered(seq.Pattern(), start, end, seq.Len(), seq.Missing()))
}

func (a *Aggregator) statError(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	return fmt.Errorf("stat %s: %w", path, err)
}
