//go:build !tiny

package jamtime

// TimeslotsPerEpoch defines the number of timeslots in each epoch, one hour
// with 6 second slots. (E)
const TimeslotsPerEpoch = 600
