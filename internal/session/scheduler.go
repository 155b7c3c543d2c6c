package session

import "time"

// Timer is a scheduled callback that can be stopped.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules on the runtime timer.
type RealScheduler struct{}

// AfterFunc wraps time.AfterFunc.
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
