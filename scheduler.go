package loadcache

import "time"

// Scheduler decides when an open batch is dispatched.
//
// Schedule is called once per batch, when its first key is queued. It must
// arrange for dispatch to be called later, from another goroutine. Keys queued
// before dispatch runs share one store round trip. Calling dispatch more than
// once is harmless.
type Scheduler interface {
	Schedule(dispatch func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(dispatch func())

func (f SchedulerFunc) Schedule(dispatch func()) { f(dispatch) }

// Wait dispatches a batch d after its first key was queued.
func Wait(d time.Duration) Scheduler {
	return SchedulerFunc(func(dispatch func()) {
		time.AfterFunc(d, dispatch)
	})
}

// Immediate dispatches as soon as the runtime schedules a new goroutine,
// coalescing only keys queued in the meantime.
func Immediate() Scheduler {
	return SchedulerFunc(func(dispatch func()) {
		go dispatch()
	})
}
