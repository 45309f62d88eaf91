package sequence

import (
	"time"

	"github.com/vertextoedge/media-frame-cache/internal/domain"
)

// CatalogEntry describes the sequence for the media catalog.
func (s *Sequence) CatalogEntry(scannedAt time.Time) *domain.CatalogEntry {
	seed := s.First()
	start, end, _ := s.Range()
	return &domain.CatalogEntry{
		Pattern:   s.Pattern(),
		Directory: seed.Basepath,
		Kind:      s.Kind(),
		Extension: seed.Extension,
		Padding:   seed.Padding,
		Start:     start,
		End:       end,
		Frames:    s.Len(),
		Missing:   s.Missing(),
		ScannedAt: scannedAt,
	}
}
