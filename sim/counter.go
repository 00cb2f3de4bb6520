// Package sim provides free-running counters for host builds, where no
// timer peripheral exists.
package sim

import (
	"context"
	"sync/atomic"
	"time"

	"monotick/monotonic"
)

// Counter is a software counter of width W. It only moves when Advance or
// a Ticker moves it, which makes wraparound reproducible in tests.
type Counter[W monotonic.Width] struct {
	value   atomic.Uint32
	resets  atomic.Uint32
	running atomic.Bool
}

// NewCounter creates a counter holding start.
func NewCounter[W monotonic.Width](start W) *Counter[W] {
	c := &Counter[W]{}
	c.value.Store(uint32(start))
	return c
}

// Read implements monotonic.Counter.
func (c *Counter[W]) Read() W {
	return W(c.value.Load())
}

// Reset implements monotonic.Counter.
func (c *Counter[W]) Reset() {
	c.value.Store(0)
	c.resets.Add(1)
}

// Start implements monotonic.Starter.
func (c *Counter[W]) Start() {
	c.running.Store(true)
}

// Running reports whether Start has been called.
func (c *Counter[W]) Running() bool {
	return c.running.Load()
}

// Resets returns how many times Reset was called.
func (c *Counter[W]) Resets() int {
	return int(c.resets.Load())
}

// Advance moves the counter forward by n ticks, wrapping at the width of W.
func (c *Counter[W]) Advance(n uint32) W {
	for {
		old := c.value.Load()
		next := uint32(W(old) + W(n))
		if c.value.CompareAndSwap(old, next) {
			return W(next)
		}
	}
}

// Set forces the raw counter value.
func (c *Counter[W]) Set(raw W) {
	c.value.Store(uint32(raw))
}

// Ticker advances a counter in real time, standing in for the peripheral
// clock on a host.
type Ticker[W monotonic.Width] struct {
	Counter  *Counter[W]
	Interval time.Duration // real time per step
	Step     uint32        // ticks per step
}

// Run advances the counter until ctx is done.
func (t *Ticker[W]) Run(ctx context.Context) {
	step := t.Step
	if step == 0 {
		step = 1
	}
	tk := time.NewTicker(t.Interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			t.Counter.Advance(step)
		}
	}
}
