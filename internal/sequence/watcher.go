package sequence

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/vertextoedge/media-frame-cache/internal/mediapath"
	"github.com/vertextoedge/media-frame-cache/internal/util/ratelimiter"
)

// Watcher rebuilds a sequence when files belonging to it appear, change,
// or vanish on disk.
type Watcher struct {
	agg      *Aggregator
	seed     mediapath.Entry
	rebuild  string
	single   bool
	limiter  *ratelimiter.Limiter
	onChange func(*Sequence)
	logger   *zap.Logger
}

// NewWatcher creates a watcher for seq. Rebuilds happen at most once per
// interval; onChange receives each freshly built sequence.
func NewWatcher(agg *Aggregator, seq *Sequence, interval time.Duration, onChange func(*Sequence), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := seq.First()
	rebuild := filepath.Clean(seed.Path())
	single := seq.IsMovie() || seq.IsSingle()
	if !single {
		// Rebuild from the template so a deleted seed frame does not break it.
		tmpl := seed
		tmpl.Templated = true
		rebuild = tmpl.Path()
	}
	return &Watcher{
		agg:      agg,
		seed:     seed,
		rebuild:  rebuild,
		single:   single,
		limiter:  ratelimiter.New(interval),
		onChange: onChange,
		logger:   logger,
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.seed.Basepath); err != nil {
		return fmt.Errorf("watch %s: %w", w.seed.Basepath, err)
	}

	w.logger.Info("watching sequence",
		zap.String("dir", w.seed.Basepath),
		zap.String("pattern", w.seed.Pattern()))

	defer w.limiter.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("sequence file changed",
				zap.String("path", ev.Name),
				zap.String("op", ev.Op.String()))
			if w.limiter.Trigger() {
				w.refresh(ctx)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		case <-w.limiter.C():
			w.refresh(ctx)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) &&
		!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Write) {
		return false
	}
	if w.single {
		// plate.0001.mov would parse as frame 1 of plate.####.mov
		return filepath.Clean(ev.Name) == w.rebuild
	}
	return w.seed.Similar(mediapath.Parse(ev.Name))
}

func (w *Watcher) refresh(ctx context.Context) {
	seq, err := w.agg.FromFile(ctx, w.rebuild)
	if err != nil {
		w.logger.Warn("failed to rebuild sequence",
			zap.String("path", w.rebuild),
			zap.Error(err))
		return
	}
	if w.onChange != nil {
		w.onChange(seq)
	}
}
