// Package memory reports physical memory of the host.
package memory

import (
	"github.com/vertextoedge/media-frame-cache/internal/port"
)

// Probe reads physical memory statistics from the operating system
type Probe struct{}

// Ensure Probe implements port.MemoryProbe
var _ port.MemoryProbe = (*Probe)(nil)

// NewProbe creates a new memory probe
func NewProbe() *Probe {
	return &Probe{}
}

// Stats returns physical memory statistics
func (p *Probe) Stats() (*port.MemoryStats, error) {
	return readStats()
}
