package cacher

import (
	"github.com/vertextoedge/media-frame-cache/internal/domain/vo"
	"github.com/vertextoedge/media-frame-cache/internal/port"
)

// BudgetManager derives the frame cache memory budget
type BudgetManager struct {
	probe      port.MemoryProbe
	maxBytes   int64
	maxPercent float64
}

// NewBudgetManager creates a new BudgetManager. probe may be nil, in which
// case only the configured byte limit applies.
func NewBudgetManager(probe port.MemoryProbe, maxBytes int64, maxPercent float64) *BudgetManager {
	return &BudgetManager{
		probe:      probe,
		maxBytes:   maxBytes,
		maxPercent: maxPercent,
	}
}

// Check computes the budget: the configured byte limit, capped at
// maxPercent of physical memory when the host can be probed.
func (bm *BudgetManager) Check() (*port.BudgetResult, error) {
	configured := vo.ZeroSize()
	if bm.maxBytes > 0 {
		configured, _ = vo.NewByteSize(bm.maxBytes)
	}
	result := &port.BudgetResult{
		Budget:          configured.Bytes(),
		ConfiguredBytes: configured.Bytes(),
		MaxPercent:      bm.maxPercent,
	}

	if bm.probe == nil || bm.maxPercent <= 0 {
		return result, nil
	}

	stats, err := bm.probe.Stats()
	if err != nil {
		return nil, err
	}
	result.PhysicalBytes = stats.Total

	physical, err := vo.NewByteSize(int64(stats.Total))
	if err != nil {
		return nil, err
	}
	limit := physical.Percent(bm.maxPercent)
	budget := configured.Min(limit)
	result.Budget = budget.Bytes()
	result.LimitedByMemory = !limit.IsZero() && budget.Bytes() < configured.Bytes()
	if configured.IsZero() {
		result.LimitedByMemory = true
	}
	return result, nil
}

// Budget returns the budget in bytes, falling back to the configured limit
// when the host cannot be probed.
func (bm *BudgetManager) Budget() int64 {
	result, err := bm.Check()
	if err != nil {
		return bm.maxBytes
	}
	return result.Budget
}
