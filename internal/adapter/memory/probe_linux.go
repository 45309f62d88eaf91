//go:build linux

package memory

import (
	"fmt"
	"syscall"

	"github.com/vertextoedge/media-frame-cache/internal/port"
)

func readStats() (*port.MemoryStats, error) {
	var info syscall.Sysinfo_t
	if err := syscall.Sysinfo(&info); err != nil {
		return nil, fmt.Errorf("failed to get memory stats: %w", err)
	}

	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}

	return &port.MemoryStats{
		Total:     uint64(info.Totalram) * unit,
		Available: (uint64(info.Freeram) + uint64(info.Bufferram)) * unit,
	}, nil
}
