package peer

import "time"

// tick is the resolution of every AppleMIDI timestamp.
const tick = 100 * time.Microsecond

// TimeProvider abstracts the clock so tests can drive timestamps
// deterministically.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider implements TimeProvider using the system clock.
type RealTimeProvider struct{}

// Now returns the current system time.
func (RealTimeProvider) Now() time.Time {
	return time.Now()
}

// getTimeProvider returns tp if non-nil, otherwise the real clock.
func getTimeProvider(tp TimeProvider) TimeProvider {
	if tp != nil {
		return tp
	}
	return RealTimeProvider{}
}

// TicksToDuration converts a count of 100µs protocol ticks into a
// time.Duration.
func TicksToDuration(ticks uint64) time.Duration {
	return time.Duration(ticks) * tick
}
