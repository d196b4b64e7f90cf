package jamtime

import (
	"time"
)

var now = time.Now

// JamEpoch represents the start of the JAM Common Era
// 2024-01-01 12:00:00
var JamEpoch = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

// JamTime is a number of seconds since the JAM Epoch
type JamTime struct {
	Seconds uint64
}

// Now returns the current time as a JamTime
func Now() JamTime {
	t := now()
	if t.Before(JamEpoch) {
		return JamTime{}
	}
	return JamTime{Seconds: uint64(t.Unix() - JamEpoch.Unix())}
}

// ToTimeslot converts a JamTime to its corresponding Timeslot
func (jt JamTime) ToTimeslot() Timeslot {
	return Timeslot(jt.Seconds / uint64(TimeslotDuration.Seconds()))
}
