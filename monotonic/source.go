package monotonic

import (
	"sync/atomic"

	"monotick/internal/irq"
)

// CriticalSection is proof that the caller holds exclusive access to the
// hardware, obtained from Exclusive.
type CriticalSection = irq.CriticalSection

// Exclusive runs fn with interrupts disabled.
func Exclusive(fn func(cs CriticalSection)) {
	irq.Exclusive(fn)
}

// Clock is what a scheduler needs from a time source.
type Clock[W Width] interface {
	// Ratio reports how ticks convert to scheduler time units.
	Ratio() Fraction

	// Reset zeroes the backing counter. Instants taken before the reset
	// can no longer be compared with instants taken after it.
	Reset(cs CriticalSection)

	// Now samples the counter.
	Now() Instant[W]

	// Zero returns the instant the counter holds right after Reset.
	Zero() Instant[W]
}

// Counter is the register accessor a platform provides for one hardware
// counter. Read must be a single bus access.
type Counter[W Width] interface {
	Read() W
	Reset()
}

// Starter is implemented by counters that can enable their own
// peripheral clock.
type Starter interface {
	Start()
}

// State is the lifecycle state of a Source.
type State uint32

const (
	// Unstarted means the counter is not yet clocked; Now is meaningless.
	Unstarted State = iota
	// Running means the counter is free-running.
	Running
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Source is a Clock backed by one hardware counter.
type Source[W Width] struct {
	name    string
	counter Counter[W]
	ratio   Fraction
	state   atomic.Uint32
}

// NewSource binds a counter to a clock. The source starts Unstarted.
// An invalid ratio is replaced by Ratio1to1.
func NewSource[W Width](name string, counter Counter[W], ratio Fraction) *Source[W] {
	if counter == nil {
		panic("monotonic: nil counter for " + name)
	}
	if !ratio.Valid() {
		ratio = Ratio1to1
	}
	return &Source[W]{
		name:    name,
		counter: counter,
		ratio:   ratio,
	}
}

// Start marks the counter as running, enabling it first if the counter
// knows how. Calling Start more than once has no further effect.
func (s *Source[W]) Start() {
	if !s.state.CompareAndSwap(uint32(Unstarted), uint32(Running)) {
		return
	}
	if st, ok := s.counter.(Starter); ok {
		st.Start()
	}
}

// State returns the current lifecycle state.
func (s *Source[W]) State() State {
	return State(s.state.Load())
}

// Name returns the peripheral name the source was created with.
func (s *Source[W]) Name() string {
	return s.name
}

// Ratio implements Clock.
func (s *Source[W]) Ratio() Fraction {
	return s.ratio
}

// Reset implements Clock. It panics when called without a critical
// section.
func (s *Source[W]) Reset(cs CriticalSection) {
	if cs == nil {
		panic("monotonic: " + s.name + " reset outside critical section")
	}
	s.counter.Reset()
}

// Now implements Clock. Before Start it returns Zero.
func (s *Source[W]) Now() Instant[W] {
	if State(s.state.Load()) != Running {
		return Instant[W]{}
	}
	return Instant[W]{raw: s.counter.Read()}
}

// Zero implements Clock.
func (s *Source[W]) Zero() Instant[W] {
	return Instant[W]{}
}

// Since returns the ticks elapsed since i.
func (s *Source[W]) Since(i Instant[W]) Duration {
	return s.Now().DurationSince(i)
}

// ResetExclusive resets c inside its own critical section.
func ResetExclusive[W Width](c Clock[W]) {
	Exclusive(func(cs CriticalSection) {
		c.Reset(cs)
	})
}
