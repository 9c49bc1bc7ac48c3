// Package clock abstracts time so timer-driven code can be tested without
// waiting for real time to pass.
package clock

import "time"

// Timer is a single-shot timer that can be cancelled.
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the timer
	// already fired or was stopped.
	Stop() bool
}

// Clock provides the current time and single-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real implements Clock with the time package.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc runs f in its own goroutine after d.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
