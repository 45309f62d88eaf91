//go:build !linux

package memory

import (
	"errors"

	"github.com/vertextoedge/media-frame-cache/internal/port"
)

// ErrUnsupported is returned on platforms without a memory probe; the
// frame cache then uses its configured byte limit alone.
var ErrUnsupported = errors.New("memory probe not supported on this platform")

func readStats() (*port.MemoryStats, error) {
	return nil, ErrUnsupported
}
