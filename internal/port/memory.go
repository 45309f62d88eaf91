package port

// MemoryStats represents physical memory statistics
type MemoryStats struct {
	Total     uint64 // Total physical memory in bytes
	Available uint64 // Memory available to new allocations in bytes
}

// MemoryProbe reports physical memory of the host.
type MemoryProbe interface {
	Stats() (*MemoryStats, error)
}

// BudgetResult explains how the frame cache budget was derived
type BudgetResult struct {
	Budget          int64
	ConfiguredBytes int64
	PhysicalBytes   uint64
	MaxPercent      float64
	LimitedByMemory bool
}
