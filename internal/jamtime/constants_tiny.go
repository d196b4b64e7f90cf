//go:build tiny

package jamtime

const TimeslotsPerEpoch = 12
