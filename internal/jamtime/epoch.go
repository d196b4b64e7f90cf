package jamtime

// Epoch represents a JAM Epoch
type Epoch uint32

// OpensNewEpoch reports whether a block at slot next, built on top of a block
// at slot prev, is the first block of a later epoch.
func OpensNewEpoch(prev, next Timeslot) bool {
	return next.ToEpoch() > prev.ToEpoch()
}
