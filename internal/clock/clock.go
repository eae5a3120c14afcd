// Package clock abstracts timer scheduling so hold expiry and debounce
// logic can be driven deterministically in tests.
//
// Production code injects Real(); tests inject Fake() and move time
// forward with Advance.
package clock

import "time"

// Clock is the subset of the time package used by the hold lifecycle.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for d, then calls f. If d <= 0 the real clock
	// calls f in a new goroutine while the fake clock calls it
	// synchronously before returning.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the Timer from firing. Returns false if the timer has
// already fired or been stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}
