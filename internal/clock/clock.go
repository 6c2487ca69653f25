// Package clock provides the time primitives shared between the host and the
// dispatcher goroutine:
//   - Millis: a 16-bit millisecond value readable and writable from any
//     goroutine without locking
//   - Clock: the time source (real in production, fake in tests)
//
// Elapsed time is always derived from an anchor instant via Clock.Since,
// never accumulated tick by tick.
package clock

import (
	"math"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the time source used to sleep between ticks and to measure
// elapsed time from an anchor.
type Clock = clockwork.Clock

// Real returns a Clock backed by the time package.
func Real() Clock {
	return clockwork.NewRealClock()
}

// MaxMillis is the largest representable Millis value (~65.5s).
const MaxMillis = math.MaxUint16

// FromDuration converts d to whole milliseconds, saturating to
// [0, MaxMillis].
func FromDuration(d time.Duration) uint16 {
	ms := d.Milliseconds()
	switch {
	case ms <= 0:
		return 0
	case ms >= MaxMillis:
		return MaxMillis
	}
	return uint16(ms)
}

// ToDuration converts a millisecond count to a time.Duration.
func ToDuration(ms uint16) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Seconds converts a millisecond count to fractional seconds, for display.
func Seconds(ms uint16) float64 {
	return float64(ms) / 1000
}
