package heap

// Stats is a point-in-time snapshot of heap-wide counters, useful for a
// harness to print or chart without reaching into space internals.
type Stats struct {
	Eden, From, To, Old SpaceStats

	EdenCollections uint64
	ScavengeCount   uint64
	TenureCount     uint64
	FinalizerRuns   uint64
}

// SpaceStats is a point-in-time snapshot of one space's occupancy.
type SpaceStats struct {
	Name          string
	CapacityBytes uint32
	UsedBytes     uint32
	FreeBytes     uint32
	RememberedLen int
	FinalizeLen   int
	TrackedLen    int
}

func (s *Space) stats() SpaceStats {
	return SpaceStats{
		Name:          s.name,
		CapacityBytes: s.CapacityBytes(),
		UsedBytes:     s.UsedBytes(),
		FreeBytes:     s.FreeBytes(),
		RememberedLen: len(s.remembered),
		FinalizeLen:   len(s.finalize),
		TrackedLen:    len(s.tracked),
	}
}
