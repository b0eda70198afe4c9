package engine

import "time"

// Clock supplies timestamps for transitions and messages appended by a
// backend. Derivations never read the clock; they only see timestamps
// already in the log.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time truncated to milliseconds, the
// precision stored by the backend.
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
