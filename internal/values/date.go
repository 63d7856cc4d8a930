package values

import (
	"math"
	"time"
)

// jetEpoch is the Jet/Access date epoch: day 0.0 is midnight, 1899-12-30.
var jetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ToJetDays converts a wall-clock time to the 64-bit float "days since
// epoch" wire form: the integer part is whole days, the
// fractional part is the fraction of the day elapsed.
func ToJetDays(t time.Time) float64 {
	millis := t.UTC().Sub(jetEpoch).Milliseconds()
	return float64(millis) / 86400000.0
}

// FromJetDays is the inverse of ToJetDays.
func FromJetDays(days float64) time.Time {
	millis := int64(math.Round(days * 86400000.0))
	return jetEpoch.Add(time.Duration(millis) * time.Millisecond)
}
