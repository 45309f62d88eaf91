package memory

import (
	"runtime"
	"testing"
)

func TestProbe_Stats(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("memory probe only implemented on linux")
	}

	stats, err := NewProbe().Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total == 0 {
		t.Error("Total = 0")
	}
	if stats.Available > stats.Total {
		t.Errorf("Available %d > Total %d", stats.Available, stats.Total)
	}
}
