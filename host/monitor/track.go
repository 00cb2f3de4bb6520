package monitor

import (
	"monotick/monotonic"
)

// step classifies one sample against the previous one of the same source.
type step uint8

const (
	stepFirst step = iota
	stepForward
	stepStalled
	stepBackward  // counter moved back with no frames lost
	stepAmbiguous // a gap of half the period or more; direction unknown
)

// tracker follows one source; it hides the counter width from the monitor.
type tracker interface {
	observe(raw uint32) (step, monotonic.Duration, bool)
	reset()
	lost()
}

// track keeps the previous sample of a W-bit counter.
type track[W monotonic.Width] struct {
	last    monotonic.Instant[W]
	have    bool
	dropped bool // frames were lost since last
}

func newTracker(width uint8) tracker {
	if width == 16 {
		return &track[uint16]{}
	}
	return &track[uint32]{}
}

// observe returns the classification, the forward distance from the
// previous sample and whether the raw counter wrapped in between.
func (t *track[W]) observe(raw uint32) (step, monotonic.Duration, bool) {
	now := monotonic.FromCounter[W](W(raw))
	defer func() {
		t.last = now
		t.have = true
		t.dropped = false
	}()

	if !t.have {
		return stepFirst, 0, false
	}

	d := now.DurationSince(t.last)
	switch {
	case d == 0:
		return stepStalled, 0, false
	case now.After(t.last):
		return stepForward, d, now.Raw() < t.last.Raw()
	case t.dropped:
		return stepAmbiguous, d, false
	default:
		return stepBackward, t.last.DurationSince(now), false
	}
}

func (t *track[W]) reset() {
	*t = track[W]{}
}

func (t *track[W]) lost() {
	t.dropped = true
}
