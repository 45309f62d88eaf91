// Package maintenance keeps the media catalog in step with the filesystem.
package maintenance

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/vertextoedge/media-frame-cache/internal/mediapath"
	"github.com/vertextoedge/media-frame-cache/internal/port"
	"github.com/vertextoedge/media-frame-cache/internal/sequence"
)

// Config contains maintenance service configuration
type Config struct {
	// PruneInterval is how often catalog rows are checked against disk
	PruneInterval time.Duration

	// MinAge skips rows scanned more recently than this
	MinAge time.Duration
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		PruneInterval: 10 * time.Minute,
		MinAge:        time.Minute,
	}
}

// PruneResult summarizes one prune pass
type PruneResult struct {
	Checked int
	Skipped int
	Removed []string
}

// Service records scanned sequences and periodically prunes catalog rows
// whose media vanished.
type Service struct {
	config  *Config
	catalog port.CatalogRepository
	fs      afero.Fs
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service
func New(cfg *Config, catalog port.CatalogRepository, fs afero.Fs, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = 10 * time.Minute
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		config:  cfg,
		catalog: catalog,
		fs:      fs,
		logger:  logger,
	}
}

// Record upserts every sequence into the catalog. Failures are logged and
// counted; the remaining sequences are still recorded.
func (s *Service) Record(seqs []*sequence.Sequence) (int, error) {
	now := time.Now()
	recorded := 0
	var firstErr error
	for _, seq := range seqs {
		entry := seq.CatalogEntry(now)
		if err := s.catalog.Upsert(entry); err != nil {
			s.logger.Warn("failed to record sequence",
				zap.String("pattern", entry.Pattern),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		recorded++
	}
	if recorded > 0 {
		s.logger.Info("recorded sequences", zap.Int("count", recorded))
	}
	return recorded, firstErr
}

// Start runs the prune loop until ctx is cancelled or Stop is called
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.Duration("prune_interval", s.config.PruneInterval))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Prune(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("failed to prune catalog", zap.Error(err))
			}
		}
	}
}

// Prune deletes catalog rows whose files no longer exist.
func (s *Service) Prune(ctx context.Context) (*PruneResult, error) {
	entries, err := s.catalog.List("", 0)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}

	result := &PruneResult{}
	cutoff := time.Now().Add(-s.config.MinAge)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !entry.IsStale(cutoff) {
			result.Skipped++
			continue
		}
		result.Checked++

		exists, err := s.exists(entry.Kind, entry.Pattern)
		if err != nil {
			s.logger.Warn("failed to check sequence",
				zap.String("pattern", entry.Pattern),
				zap.Error(err))
			continue
		}
		if exists {
			continue
		}
		if err := s.catalog.Delete(entry.ID); err != nil {
			s.logger.Error("failed to delete catalog entry",
				zap.String("pattern", entry.Pattern),
				zap.Error(err))
			continue
		}
		result.Removed = append(result.Removed, entry.Pattern)
	}

	if len(result.Removed) > 0 {
		s.logger.Info("pruned catalog",
			zap.Int("removed", len(result.Removed)),
			zap.Int("checked", result.Checked))
	}
	return result, nil
}

// exists reports whether any file of the catalogued media is still on disk
func (s *Service) exists(kind, pattern string) (bool, error) {
	if kind != "sequence" {
		return afero.Exists(s.fs, pattern)
	}

	tmpl := mediapath.Parse(pattern)
	infos, err := afero.ReadDir(s.fs, tmpl.Basepath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		e := mediapath.Parse(info.Name())
		e.Basepath = tmpl.Basepath
		if e.IsFrame() && tmpl.Similar(e) {
			return true, nil
		}
	}
	return false, nil
}
