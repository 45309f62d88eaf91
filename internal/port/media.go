package port

import (
	"github.com/vertextoedge/media-frame-cache/internal/media"
)

// Timeline is the view of a loaded media the frame cache works against.
type Timeline interface {
	ID() string
	Kind() media.Kind
	Frame(n int) (*media.Frame, bool)
	Frames() []int
	NearestFrame(n int) int
}

var _ Timeline = (*media.Timeline)(nil)
