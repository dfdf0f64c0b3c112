package clock

import "time"

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the timer. It reports false if the callback already fired.
	Stop() bool
}

// Scheduler abstracts timer creation so phase timelines (betting countdowns,
// spin windows, reveal ceremonies) run against a virtual clock in tests.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
	Now() time.Time
}

type wallClock struct{}

type wallTimer struct{ t *time.Timer }

func (w wallTimer) Stop() bool { return w.t.Stop() }

func (wallClock) AfterFunc(d time.Duration, fn func()) Timer {
	return wallTimer{t: time.AfterFunc(d, fn)}
}

func (wallClock) Now() time.Time { return time.Now() }

// System returns the real time.AfterFunc-backed scheduler.
func System() Scheduler { return wallClock{} }
