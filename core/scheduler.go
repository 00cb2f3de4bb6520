package core

import (
	"errors"

	"monotick/internal/irq"
	"monotick/monotonic"
)

// Timer represents a scheduled event
type Timer[W monotonic.Width] struct {
	ID       uint8 // reported in timing events
	WakeTime monotonic.Instant[W]
	Handler  func(*Timer[W]) uint8
	Next     *Timer[W]
}

// Handler results
const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// ErrDeadlineTooFar is returned for delays the counter cannot order: a
// wake time half a counter period away reads as already past.
var ErrDeadlineTooFar = errors.New("deadline beyond half the counter period")

// Scheduler runs timers in wake time order against a clock source.
type Scheduler[W monotonic.Width] struct {
	clock   monotonic.Clock[W]
	list    *Timer[W]
	pending int
}

// NewScheduler creates a scheduler that owns clock.
func NewScheduler[W monotonic.Width](clock monotonic.Clock[W]) *Scheduler[W] {
	return &Scheduler[W]{clock: clock}
}

// Clock returns the scheduler's time source.
func (s *Scheduler[W]) Clock() monotonic.Clock[W] {
	return s.clock
}

// Now is shorthand for s.Clock().Now().
func (s *Scheduler[W]) Now() monotonic.Instant[W] {
	return s.clock.Now()
}

// Schedule adds t to the schedule at t.WakeTime. A wake time that is
// already past fires on the next Dispatch. Scheduling a timer that is
// still pending moves it.
func (s *Scheduler[W]) Schedule(t *Timer[W]) {
	now := s.clock.Now()
	if t.WakeTime.Before(now) {
		RecordTiming(EvtTimerPast, t.ID, uint32(now.Raw()), uint32(t.WakeTime.Raw()), uint32(now.Sub(t.WakeTime)))
	} else {
		RecordTiming(EvtTimerSchedule, t.ID, uint32(now.Raw()), uint32(t.WakeTime.Raw()), 0)
	}

	irq.Exclusive(func(monotonic.CriticalSection) {
		s.unlink(t)
		s.insert(t, now)
	})
}

// ScheduleAfter schedules t to fire d ticks from now.
func (s *Scheduler[W]) ScheduleAfter(t *Timer[W], d monotonic.Duration) error {
	if d >= monotonic.HalfRange[W]() {
		RecordTiming(EvtDeadlineTooFar, t.ID, uint32(s.clock.Now().Raw()), uint32(d), 0)
		return ErrDeadlineTooFar
	}
	t.WakeTime = s.clock.Now().Add(d)
	s.Schedule(t)
	return nil
}

// until is the distance from now to t's wake time. Past wake times are
// zero, so late timers sort ahead of any future one.
func until[W monotonic.Width](t *Timer[W], now monotonic.Instant[W]) monotonic.Duration {
	if t.WakeTime.Before(now) {
		return 0
	}
	return t.WakeTime.Sub(now)
}

// insert links t in order of distance from now. Raw instants are not
// compared with each other: two pending wake times may lie more than
// half a period apart. Equal distances fire in insertion order.
func (s *Scheduler[W]) insert(t *Timer[W], now monotonic.Instant[W]) {
	s.pending++
	key := until(t, now)

	link := &s.list
	for *link != nil && until(*link, now) <= key {
		link = &(*link).Next
	}
	t.Next = *link
	*link = t
}

// unlink removes t from the list and reports whether it was there.
func (s *Scheduler[W]) unlink(t *Timer[W]) bool {
	for link := &s.list; *link != nil; link = &(*link).Next {
		if *link == t {
			*link = t.Next
			t.Next = nil
			s.pending--
			return true
		}
	}
	return false
}

// Cancel removes t from the schedule. It reports whether t was pending.
func (s *Scheduler[W]) Cancel(t *Timer[W]) bool {
	found := false
	irq.Exclusive(func(monotonic.CriticalSection) {
		found = s.unlink(t)
	})
	return found
}

// Dispatch runs every timer whose wake time has been reached and returns
// how many handlers ran. Handlers run with interrupts enabled. A timer
// rescheduled into the past waits for the next call.
func (s *Scheduler[W]) Dispatch() int {
	now := s.clock.Now()
	var due *Timer[W]

	irq.Exclusive(func(monotonic.CriticalSection) {
		var tail *Timer[W]
		for s.list != nil && !s.list.WakeTime.After(now) {
			t := s.list
			s.list = t.Next
			t.Next = nil
			s.pending--
			if tail == nil {
				due = t
			} else {
				tail.Next = t
			}
			tail = t
		}
	})

	fired := 0
	for due != nil {
		t := due
		due = t.Next
		t.Next = nil

		RecordTiming(EvtTimerFire, t.ID, uint32(now.Raw()), uint32(t.WakeTime.Raw()), uint32(now.Sub(t.WakeTime)))
		fired++
		if t.Handler(t) == SF_RESCHEDULE {
			s.Schedule(t)
		}
	}
	return fired
}

// Pending returns the number of scheduled timers.
func (s *Scheduler[W]) Pending() int {
	n := 0
	irq.Exclusive(func(monotonic.CriticalSection) {
		n = s.pending
	})
	return n
}

// Next returns the earliest wake time, if any timer is pending.
func (s *Scheduler[W]) Next() (monotonic.Instant[W], bool) {
	var (
		at monotonic.Instant[W]
		ok bool
	)
	irq.Exclusive(func(monotonic.CriticalSection) {
		if s.list != nil {
			at, ok = s.list.WakeTime, true
		}
	})
	return at, ok
}

// ResetClock zeroes the clock and moves every pending timer so it keeps
// its remaining delay. Timers already due stay due.
func (s *Scheduler[W]) ResetClock() {
	var now monotonic.Instant[W]
	irq.Exclusive(func(cs monotonic.CriticalSection) {
		now = s.clock.Now()
		zero := s.clock.Zero()
		for t := s.list; t != nil; t = t.Next {
			if t.WakeTime.After(now) {
				t.WakeTime = zero.Add(t.WakeTime.Sub(now))
			} else {
				t.WakeTime = zero
			}
		}
		s.clock.Reset(cs)
	})
	RecordTiming(EvtResetClock, 0, uint32(now.Raw()), 0, 0)
}
