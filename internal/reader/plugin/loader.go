// Package plugin discovers externally supplied readers.
//
// Two kinds of plugin are recognized inside each search directory:
//
//   - shared libraries with the platform's native extension, built with
//     `go build -buildmode=plugin`, exporting
//     `func RegisterReaders(reader.Registrar)`. Shared libraries must be
//     built from inside this module with the same toolchain and
//     dependency versions;
//   - YAML manifests describing a command that converts a file to PNG on
//     stdout.
package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	goplugin "plugin"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vertextoedge/media-frame-cache/internal/reader"
)

// EntryPoint is the symbol every shared-library plugin must export.
const EntryPoint = "RegisterReaders"

// RegisterFunc is the signature of EntryPoint.
type RegisterFunc = func(reader.Registrar)

// LoadResult summarizes one discovery pass.
type LoadResult struct {
	Libraries []string
	Manifests []string
	Errors    error
}

// Loader scans search paths and registers plugins into a registry.
type Loader struct {
	paths  []string
	logger *zap.Logger

	// open is swapped in tests.
	open func(path string) (RegisterFunc, error)
}

// NewLoader creates a loader for the given platform-delimited search path.
func NewLoader(searchPath string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		paths:  SearchPaths(searchPath),
		logger: logger,
		open:   openLibrary,
	}
}

// SearchPaths splits a platform-delimited list, dropping empty elements.
func SearchPaths(value string) []string {
	var paths []string
	for _, p := range filepath.SplitList(value) {
		p = strings.TrimSpace(p)
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// LibraryExtension returns the native shared-library extension.
func LibraryExtension() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// Paths returns the directories the loader scans.
func (l *Loader) Paths() []string {
	return l.paths
}

// Load registers every plugin found. Failures are logged and collected;
// they never stop the remaining plugins from loading.
func (l *Loader) Load(reg reader.Registrar) *LoadResult {
	result := &LoadResult{}
	libExt := LibraryExtension()

	for _, dir := range l.paths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			l.logger.Warn("failed to read plugin directory",
				zap.String("dir", dir),
				zap.Error(err))
			result.Errors = multierr.Append(result.Errors, fmt.Errorf("plugin dir %s: %w", dir, err))
			continue
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			path := filepath.Join(dir, name)
			ext := strings.ToLower(filepath.Ext(name))

			switch {
			case ext == libExt:
				if err := l.loadLibrary(path, reg); err != nil {
					l.logger.Warn("failed to load plugin library",
						zap.String("path", path),
						zap.Error(err))
					result.Errors = multierr.Append(result.Errors, err)
					continue
				}
				result.Libraries = append(result.Libraries, path)
			case ext == ".yaml" || ext == ".yml":
				m, err := LoadManifest(path)
				if err != nil {
					l.logger.Warn("failed to load plugin manifest",
						zap.String("path", path),
						zap.Error(err))
					result.Errors = multierr.Append(result.Errors, err)
					continue
				}
				m.Register(reg)
				result.Manifests = append(result.Manifests, path)
				l.logger.Info("registered command reader",
					zap.String("name", m.Name),
					zap.Strings("extensions", m.Extensions))
			}
		}
	}

	l.logger.Info("plugin discovery completed",
		zap.Int("libraries", len(result.Libraries)),
		zap.Int("manifests", len(result.Manifests)),
		zap.Int("errors", len(multierr.Errors(result.Errors))))

	return result
}

func (l *Loader) loadLibrary(path string, reg reader.Registrar) error {
	register, err := l.open(path)
	if err != nil {
		return err
	}
	register(reg)
	l.logger.Info("loaded plugin library", zap.String("path", path))
	return nil
}

func openLibrary(path string) (RegisterFunc, error) {
	p, err := goplugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	sym, err := p.Lookup(EntryPoint)
	if err != nil {
		return nil, fmt.Errorf("lookup %s in %s: %w", EntryPoint, path, err)
	}
	switch fn := sym.(type) {
	case func(reader.Registrar):
		return fn, nil
	case *func(reader.Registrar):
		return *fn, nil
	default:
		return nil, fmt.Errorf("%s in %s has type %T, want func(reader.Registrar)", EntryPoint, path, sym)
	}
}
