package core

import "monotick/monotonic"

// Periodic returns a timer that calls fn every period ticks. fn receives
// the wake time the call was due at, not the time it actually ran, so
// the period does not drift with dispatch latency.
func Periodic[W monotonic.Width](id uint8, period monotonic.Duration, fn func(due monotonic.Instant[W])) *Timer[W] {
	return &Timer[W]{
		ID: id,
		Handler: func(t *Timer[W]) uint8 {
			fn(t.WakeTime)
			t.WakeTime = t.WakeTime.Add(period)
			return SF_RESCHEDULE
		},
	}
}

// Once returns a timer that calls fn a single time.
func Once[W monotonic.Width](id uint8, fn func(due monotonic.Instant[W])) *Timer[W] {
	return &Timer[W]{
		ID: id,
		Handler: func(t *Timer[W]) uint8 {
			fn(t.WakeTime)
			return SF_DONE
		},
	}
}
