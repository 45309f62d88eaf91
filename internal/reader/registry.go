package reader

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Registrar is the handle plugins receive to add their formats.
type Registrar interface {
	RegisterImage(extensions []string, factory ImageFactory)
	RegisterMovie(extensions []string, factory MovieFactory)
}

// Registry maps file extensions to decoder factories.
// One Registry is constructed at startup and passed to every component that
// needs lookups. It is safe for concurrent use.
type Registry struct {
	logger *zap.Logger

	mu     sync.RWMutex
	images map[string]ImageFactory
	movies map[string]MovieFactory
}

// Ensure Registry implements Registrar
var _ Registrar = (*Registry)(nil)

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger: logger,
		images: make(map[string]ImageFactory),
		movies: make(map[string]MovieFactory),
	}
}

// RegisterImage associates each extension with an image decoder factory.
// The first registration of an extension wins; later ones are ignored.
func (r *Registry) RegisterImage(extensions []string, factory ImageFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range extensions {
		key := normalizeExt(ext)
		if key == "" || r.registeredLocked(key) {
			r.logger.Warn("extension already registered, ignoring",
				zap.String("extension", ext),
				zap.String("kind", "image"))
			continue
		}
		r.images[key] = factory
	}
}

// RegisterMovie associates each extension with a movie decoder factory.
// The first registration of an extension wins; later ones are ignored.
func (r *Registry) RegisterMovie(extensions []string, factory MovieFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range extensions {
		key := normalizeExt(ext)
		if key == "" || r.registeredLocked(key) {
			r.logger.Warn("extension already registered, ignoring",
				zap.String("extension", ext),
				zap.String("kind", "movie"))
			continue
		}
		r.movies[key] = factory
	}
}

func (r *Registry) registeredLocked(key string) bool {
	if _, ok := r.images[key]; ok {
		return true
	}
	_, ok := r.movies[key]
	return ok
}

// GetReader tries the image table, then the movie table.
// Returns nil when the extension is unsupported.
func (r *Registry) GetReader(ext, path string, frame int) *Reader {
	if img := r.GetImageReader(ext, path, frame); img != nil {
		return &Reader{Image: img}
	}
	if mov := r.GetMovieReader(ext, path); mov != nil {
		return &Reader{Movie: mov}
	}
	return nil
}

// GetImageReader returns an image decoder for path, or nil.
func (r *Registry) GetImageReader(ext, path string, frame int) ImageReader {
	r.mu.RLock()
	factory, ok := r.images[normalizeExt(ext)]
	r.mu.RUnlock()
	if !ok || factory == nil {
		return nil
	}
	return factory(path, frame)
}

// GetMovieReader returns a movie decoder for path, or nil.
func (r *Registry) GetMovieReader(ext, path string) MovieReader {
	r.mu.RLock()
	factory, ok := r.movies[normalizeExt(ext)]
	r.mu.RUnlock()
	if !ok || factory == nil {
		return nil
	}
	return factory(path)
}

// Supports reports whether any decoder handles ext.
func (r *Registry) Supports(ext string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.registeredLocked(normalizeExt(ext))
}

// IsMovie reports whether ext is registered as a movie container.
func (r *Registry) IsMovie(ext string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.movies[normalizeExt(ext)]
	return ok
}

// Extensions returns all registered extensions, sorted, split by kind.
func (r *Registry) Extensions() (images, movies []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for ext := range r.images {
		images = append(images, ext)
	}
	for ext := range r.movies {
		movies = append(movies, ext)
	}
	sort.Strings(images)
	sort.Strings(movies)
	return images, movies
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
