package ledger

import "time"

// Clock supplies the timestamps stamped onto entities and events.
// Timestamps are payload, never ordering: the event log's seq is the
// ordering authority. Implemented by WallClock (production) and
// testutil.FixedClock (tests).
type Clock interface {
	Now() time.Time
}

// WallClock reads the system clock.
type WallClock struct{}

// Now returns the current time.
func (WallClock) Now() time.Time {
	return time.Now()
}
