package clock

import "time"

// Clock is the source of "now" for token expiry, presence timestamps,
// upgrade timers and click throttling
type Clock interface {
	Now() time.Time
}

// System reads the wall clock
type System struct{}

// New returns the system clock
func New() System {
	return System{}
}

// Now returns the current time in UTC with the monotonic reading stripped,
// so values round-trip through every store unchanged
func (System) Now() time.Time {
	return time.Now().UTC().Round(0)
}
