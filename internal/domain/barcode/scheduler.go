package barcode

import "time"

// Clock abstracts wall time so the classifier can be tested without sleeping.
type Clock interface {
	Now() time.Time
}

// CancelFunc cancels a scheduled task. Calling it after the task fired is a
// no-op.
type CancelFunc func()

// Scheduler runs a task once after a delay. The production implementation is
// a thin wrapper over time.AfterFunc; tests substitute a manual one.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) CancelFunc
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type timerScheduler struct{}

func (timerScheduler) Schedule(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
