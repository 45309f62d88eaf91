package port

import (
	"github.com/vertextoedge/media-frame-cache/internal/domain"
)

// CatalogRepository persists discovered sequences.
type CatalogRepository interface {
	// Upsert inserts or updates an entry keyed by its pattern.
	// The stored ID is written back to the entry.
	Upsert(entry *domain.CatalogEntry) error

	// Get returns the entry with the given ID.
	Get(id string) (*domain.CatalogEntry, error)

	// GetByPattern returns the entry for a sequence pattern.
	GetByPattern(pattern string) (*domain.CatalogEntry, error)

	// List returns entries ordered by pattern. A zero limit means no limit.
	List(kind string, limit int) ([]*domain.CatalogEntry, error)

	// Delete removes an entry.
	Delete(id string) error

	// Count returns the number of entries.
	Count() (int, error)
}

// Store owns the catalog database.
type Store interface {
	Catalog() CatalogRepository
	Close() error
}
