// Package clock abstracts time so timer driven components can run against a virtual clock in tests
package clock

import "time"

// Clock is the source of time and timers for the scheduler, the drift monitor and the calendar alarm
type Clock interface {
	// Now returns the current wall-clock time
	Now() time.Time
	// AfterFunc calls f in its own goroutine once d of elapsed time has passed
	AfterFunc(d time.Duration, f func()) Timer
	// NewTicker delivers ticks every d of elapsed time
	NewTicker(d time.Duration) Ticker
}

// Timer is a cancelable one-shot timer
type Timer interface {
	// Stop prevents the timer from firing; it returns false if it already fired or was stopped
	Stop() bool
}

// Ticker delivers periodic ticks
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is the Clock backed by the time package
type Real struct{}

// New returns the system clock
func New() Clock {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (Real) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time {
	return r.t.C
}

func (r *realTicker) Stop() {
	r.t.Stop()
}
