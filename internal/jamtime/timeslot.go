package jamtime

import (
	"math"
	"time"
)

const (
	TimeslotDuration = 6 * time.Second

	MaxTimeslot Timeslot = math.MaxUint32
)

// Timeslot represents a 6-second window in JAM time
type Timeslot uint32

// CurrentTimeslot returns the current timeslot
func CurrentTimeslot() Timeslot {
	return Now().ToTimeslot()
}

// IsInFuture checks if the timeslot starts after the current wall-clock slot
func (ts Timeslot) IsInFuture() bool {
	return ts > CurrentTimeslot()
}

// ToEpoch converts a Timeslot to its corresponding Epoch
func (ts Timeslot) ToEpoch() Epoch {
	return Epoch(ts / TimeslotsPerEpoch)
}
