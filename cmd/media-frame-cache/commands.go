package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vertextoedge/media-frame-cache/internal/adapter/memory"
	"github.com/vertextoedge/media-frame-cache/internal/logger"
	"github.com/vertextoedge/media-frame-cache/internal/media"
	"github.com/vertextoedge/media-frame-cache/internal/sequence"
	"github.com/vertextoedge/media-frame-cache/internal/service/cacher"
	"github.com/vertextoedge/media-frame-cache/internal/service/maintenance"
)

func newFlags(name string) *pflag.FlagSet {
	return pflag.NewFlagSet(name, pflag.ContinueOnError)
}

func runScan(ctx context.Context, a *app, args []string) error {
	flags := newFlags("scan")
	recursive := flags.BoolP("recursive", "r", a.cfg.Scan.Recursive, "Descend into subdirectories")
	hidden := flags.Bool("hidden", a.cfg.Scan.IncludeHidden, "Include hidden files and directories")
	noCatalog := flags.Bool("no-catalog", false, "Do not record results in the catalog")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return fmt.Errorf("%w: scan PATH...", errUsage)
	}

	agg := a.aggregator(*hidden)
	var (
		found   []*sequence.Sequence
		scanErr error
	)
	for _, path := range flags.Args() {
		info, err := a.fs.Stat(path)
		if err != nil {
			return fmt.Errorf("scan %s: %w", path, err)
		}

		if !info.IsDir() {
			seq, err := agg.FromFile(ctx, path)
			if err != nil {
				scanErr = multierr.Append(scanErr, err)
				continue
			}
			found = append(found, seq)
			continue
		}

		var result *sequence.ScanResult
		if *recursive {
			result, err = agg.FromTree(ctx, path)
		} else {
			result, err = agg.FromDirectory(ctx, path)
		}
		if err != nil {
			return fmt.Errorf("scan %s: %w", path, err)
		}
		found = append(found, result.Sequences...)
		scanErr = multierr.Append(scanErr, result.Errors)
		a.logger.Info("directory scanned",
			zap.String("path", path),
			zap.Int("files", result.Files),
			zap.Int("skipped", result.Skipped),
			zap.Int("sequences", len(result.Sequences)))
	}

	for _, seq := range found {
		printSequence(a, seq)
	}
	for _, err := range multierr.Errors(scanErr) {
		a.printf("warning: %v\n", err)
	}
	a.printf("%d sequences\n", len(found))

	if *noCatalog || len(found) == 0 {
		return nil
	}
	store, svc, err := a.openCatalog(0)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = svc.Record(found)
	return err
}

func printSequence(a *app, seq *sequence.Sequence) {
	switch {
	case seq.IsMovie() || seq.IsSingle():
		a.printf("%-8s %s\n", seq.Kind(), seq.Pattern())
	case seq.Missing() > 0:
		a.printf("%-8s %s  %d frames, %d missing\n", seq.Kind(), seq, seq.Len(), seq.Missing())
	default:
		a.printf("%-8s %s  %d frames\n", seq.Kind(), seq, seq.Len())
	}
}

func runList(_ context.Context, a *app, args []string) error {
	flags := newFlags("list")
	kind := flags.String("kind", "", "Only list sequence, movie or single entries")
	limit := flags.Int("limit", 0, "Maximum number of entries (0 for all)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	store, _, err := a.openCatalog(0)
	if err != nil {
		return err
	}
	defer store.Close()

	catalog := store.Catalog()
	entries, err := catalog.List(*kind, *limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		state := "complete"
		if !e.Complete() {
			state = fmt.Sprintf("%d missing", e.Missing)
		}
		a.printf("%-8s %s [%d-%d] %d frames, %s, scanned %s\n",
			e.Kind, e.Pattern, e.Start, e.End, e.Frames, state, humanize.Time(e.ScannedAt))
	}

	total, err := catalog.Count()
	if err != nil {
		return err
	}
	a.printf("%d of %d entries\n", len(entries), total)
	return nil
}

// loadTimeline resolves path into a sequence and loads it
func loadTimeline(ctx context.Context, a *app, path string) (*media.Timeline, error) {
	seq, err := a.aggregator(a.cfg.Scan.IncludeHidden).FromFile(ctx, path)
	if err != nil {
		return nil, err
	}
	tl := media.Load(ctx, seq, a.registry, a.dispatcher, a.logger)
	if !tl.Valid() {
		return nil, tl.Err()
	}
	return tl, nil
}

func runInspect(ctx context.Context, a *app, args []string) error {
	flags := newFlags("inspect")
	frame := flags.Int("frame", 0, "Frame to decode (defaults to the first)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("%w: inspect PATH", errUsage)
	}

	tl, err := loadTimeline(ctx, a, flags.Arg(0))
	if err != nil {
		return err
	}
	defer tl.Close()

	a.printf("media:    %s\n", tl.Sequence().Pattern())
	a.printf("kind:     %s\n", tl.Kind())
	a.printf("range:    %d-%d (%d frames)\n", tl.FirstFrame(), tl.LastFrame(), tl.Len())
	if missing := tl.MissingFrames(); len(missing) > 0 {
		a.printf("missing:  %s\n", joinInts(missing))
	}
	if info := tl.MovieInfo(); info != nil {
		a.printf("movie:    %dx%d %s @ %.3f fps\n", info.Width, info.Height, info.Codec, info.FrameRate)
	}

	n := tl.FirstFrame()
	if flags.Changed("frame") {
		n = tl.NearestFrame(*frame)
	}
	f, ok := tl.Frame(n)
	if !ok {
		return fmt.Errorf("frame %d not found", n)
	}
	size, err := f.Cache(ctx)
	if err != nil {
		return err
	}

	a.printf("frame %d: %s decoded\n", n, humanize.IBytes(uint64(size)))
	meta := tl.Metadata(n)
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a.printf("  %-14s %s\n", k, meta[k])
	}
	return nil
}

// playStats counts cache hits seen by the simulated transport
type playStats struct {
	displayed int
	hits      int
	failed    int
}

func runPlay(ctx context.Context, a *app, args []string) error {
	flags := newFlags("play")
	from := flags.Int("from", 0, "Frame to start playback at (defaults to the first)")
	count := flags.Int("frames", 0, "Frames to display (defaults to the whole media once)")
	fps := flags.Float64("fps", a.cfg.Playback.FPS, "Playback rate")
	direction := flags.String("direction", a.cfg.Cache.LookAhead, "forward or backward")
	maxMB := flags.Int("max-memory-mb", a.cfg.Cache.MaxMemoryMB, "Frame cache budget")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("%w: play PATH", errUsage)
	}
	if *fps <= 0 {
		return fmt.Errorf("fps must be positive")
	}

	tl, err := loadTimeline(ctx, a, flags.Arg(0))
	if err != nil {
		return err
	}
	defer tl.Close()
	defer a.indicator.Forget(tl.ID())

	budget := cacher.NewBudgetManager(memory.NewProbe(),
		int64(*maxMB)*1024*1024, a.cfg.Cache.MaxMemoryPercent)
	if result, err := budget.Check(); err != nil {
		a.logger.Warn("memory probe unavailable, using configured budget", zap.Error(err))
	} else if result.LimitedByMemory {
		a.logger.Info("cache budget capped by physical memory",
			logger.Bytes("budget", result.Budget),
			logger.Bytes("configured", result.ConfiguredBytes),
			logger.Bytes("physical", int64(result.PhysicalBytes)))
	}

	cache := cacher.NewFrameCache(tl, budget.Budget(), a.dispatcher, a.logger)
	scheduler := cacher.NewScheduler(cache, &cacher.Config{Workers: a.cfg.Cache.Workers}, a.dispatcher, a.logger)

	dir := cacher.ParseDirection(*direction)
	start := tl.FirstFrame()
	if flags.Changed("from") {
		start = tl.NearestFrame(*from)
	}
	scheduler.Start(ctx, start, dir)

	frames := tl.Frames()
	total := *count
	if total <= 0 {
		total = len(frames)
	}

	began := time.Now()
	stats := transport(ctx, a, cache, frames, start, dir, total, time.Duration(float64(time.Second) / *fps))
	scheduler.Stop()
	sweep := scheduler.Wait()

	s := cache.Stats()
	a.printf("displayed %d frames in %s, %d cache hits, %d failed\n",
		stats.displayed, time.Since(began).Round(time.Millisecond), stats.hits, stats.failed)
	a.printf("cache: %d resident, %s of %s, %d evicted, %d declined\n",
		s.Resident, humanize.IBytes(uint64(s.UsedMemory)), humanize.IBytes(uint64(s.MaxMemory)), s.Evicted, s.Declined)
	if sweep != nil {
		a.printf("look-ahead: %d cached, %d failed, stopped: %s\n", sweep.Cached, sweep.Failed, sweep.Reason)
	}
	a.printf("indicator: %d frames resident\n", len(a.indicator.Resident(tl.ID())))
	return nil
}

// transport displays total frames at the given interval, forcing each one
// into the cache the way a viewer would.
func transport(ctx context.Context, a *app, cache *cacher.FrameCache, frames []int, start int, dir cacher.Direction, total int, interval time.Duration) playStats {
	var stats playStats
	if len(frames) == 0 {
		return stats
	}

	idx := sort.SearchInts(frames, start)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < total; i++ {
		n := frames[idx]
		if cache.IsCached(n) {
			stats.hits++
		}
		if err := cache.EnsureCached(ctx, n); err != nil {
			if ctx.Err() != nil {
				return stats
			}
			stats.failed++
			a.logger.Warn("frame unavailable", zap.Int("frame", n), zap.Error(err))
		}
		stats.displayed++

		if dir == cacher.Backward {
			idx = (idx - 1 + len(frames)) % len(frames)
		} else {
			idx = (idx + 1) % len(frames)
		}

		select {
		case <-ctx.Done():
			return stats
		case <-ticker.C:
		}
	}
	return stats
}

func runWatch(ctx context.Context, a *app, args []string) error {
	flags := newFlags("watch")
	noCatalog := flags.Bool("no-catalog", false, "Do not record changes in the catalog")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("%w: watch PATH", errUsage)
	}

	agg := a.aggregator(a.cfg.Scan.IncludeHidden)
	seq, err := agg.FromFile(ctx, flags.Arg(0))
	if err != nil {
		return err
	}
	printSequence(a, seq)

	var svc *maintenance.Service
	if !*noCatalog {
		store, s, err := a.openCatalog(maintenance.DefaultConfig().MinAge)
		if err != nil {
			return err
		}
		defer store.Close()
		svc = s
		if _, err := svc.Record([]*sequence.Sequence{seq}); err != nil {
			a.logger.Warn("failed to record sequence", zap.Error(err))
		}
		pruneCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := svc.Start(pruneCtx); err != nil {
				a.logger.Error("maintenance service stopped with error", zap.Error(err))
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	w := sequence.NewWatcher(agg, seq, a.cfg.Scan.GetWatchInterval(), func(updated *sequence.Sequence) {
		printSequence(a, updated)
		if svc != nil {
			if _, err := svc.Record([]*sequence.Sequence{updated}); err != nil {
				a.logger.Warn("failed to record sequence", zap.Error(err))
			}
		}
	}, a.logger)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runPrune(ctx context.Context, a *app, args []string) error {
	flags := newFlags("prune")
	minAge := flags.Duration("min-age", 0, "Skip entries scanned more recently than this")
	if err := flags.Parse(args); err != nil {
		return err
	}

	store, svc, err := a.openCatalog(*minAge)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := svc.Prune(ctx)
	if err != nil {
		return err
	}
	for _, p := range result.Removed {
		a.printf("removed %s\n", p)
	}
	a.printf("%d checked, %d removed\n", result.Checked, len(result.Removed))
	return nil
}

func runFormats(_ context.Context, a *app, args []string) error {
	flags := newFlags("formats")
	if err := flags.Parse(args); err != nil {
		return err
	}

	images, movies := a.registry.Extensions()
	a.printf("images: %s\n", strings.Join(images, " "))
	a.printf("movies: %s\n", strings.Join(movies, " "))

	if a.plugins == nil {
		return nil
	}
	for _, p := range a.plugins.Libraries {
		a.printf("plugin library:  %s\n", p)
	}
	for _, p := range a.plugins.Manifests {
		a.printf("plugin manifest: %s\n", p)
	}
	for _, err := range multierr.Errors(a.plugins.Errors) {
		a.printf("plugin error:    %v\n", err)
	}
	return nil
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, " ")
}
