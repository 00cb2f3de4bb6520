// Package peripheral describes the hardware counters a clock source can be
// bound to, and keeps track of which ones are in use.
package peripheral

import (
	"errors"
	"strconv"
	"sync"

	"monotick/monotonic"
)

var (
	ErrUnknownChip    = errors.New("unknown chip")
	ErrUnknownTimer   = errors.New("timer not present on chip")
	ErrAlreadyClaimed = errors.New("counter already claimed")
	ErrWidthMismatch  = errors.New("counter width mismatch")
	ErrNoClock        = errors.New("timer input clock not configured")
)

// Kind selects the register layout used to read and reset a counter.
type Kind uint8

const (
	// KindSTM32TIM is an STM32 TIMx block: CNT at offset 0x24, reset by
	// writing zero.
	KindSTM32TIM Kind = iota
	// KindRP2Timer is the RP2040/RP2350 microsecond timer: raw low word at
	// 0x28, reset by writing TIMELW then TIMEHW.
	KindRP2Timer
)

func (k Kind) String() string {
	switch k {
	case KindSTM32TIM:
		return "stm32-tim"
	case KindRP2Timer:
		return "rp2-timer"
	default:
		return "unknown"
	}
}

// Timer is the configuration record for one hardware counter.
type Timer struct {
	Name    string
	Chip    string
	Family  string
	Base    uintptr
	Width   uint8 // 16 or 32
	Kind    Kind
	Ratio   monotonic.Fraction
	ClockHz uint32 // counter input frequency after prescaling; 0 if set by the target
}

// WithClock returns a copy of t counting at hz.
func (t Timer) WithClock(hz uint32) Timer {
	t.ClockHz = hz
	return t
}

// Micros converts ticks of this timer to microseconds.
func (t Timer) Micros(d monotonic.Duration) (uint64, error) {
	if t.ClockHz == 0 {
		return 0, ErrNoClock
	}
	return uint64(d) * 1000000 / uint64(t.ClockHz), nil
}

// TicksFromMicros converts microseconds to ticks of this timer.
func (t Timer) TicksFromMicros(us uint64) (monotonic.Duration, error) {
	if t.ClockHz == 0 {
		return 0, ErrNoClock
	}
	return monotonic.Duration(us * uint64(t.ClockHz) / 1000000), nil
}

// Period returns the number of ticks before the counter wraps.
func (t Timer) Period() uint64 {
	return uint64(1) << t.Width
}

func (t Timer) String() string {
	return t.Chip + "/" + t.Name + " (" + strconv.Itoa(int(t.Width)) + "-bit)"
}

// Registry enforces that each physical counter backs at most one source.
type Registry struct {
	mu      sync.Mutex
	claimed map[uintptr]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{claimed: make(map[uintptr]string)}
}

// Claim marks t as owned by owner.
func (r *Registry) Claim(t Timer, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.claimed[t.Base]; ok {
		return claimError{timer: t.Name, owner: prev}
	}
	r.claimed[t.Base] = owner
	return nil
}

// Release frees t so another source may claim it.
func (r *Registry) Release(t Timer) {
	r.mu.Lock()
	delete(r.claimed, t.Base)
	r.mu.Unlock()
}

// Owner returns who holds t, if anyone.
func (r *Registry) Owner(t Timer) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.claimed[t.Base]
	return owner, ok
}

type claimError struct {
	timer string
	owner string
}

func (e claimError) Error() string {
	return e.timer + ": " + ErrAlreadyClaimed.Error() + " by " + e.owner
}

func (e claimError) Unwrap() error {
	return ErrAlreadyClaimed
}

// Bind claims t and returns a clock source reading it through counter.
func Bind[W monotonic.Width](r *Registry, t Timer, counter monotonic.Counter[W]) (*monotonic.Source[W], error) {
	if uint(t.Width) != monotonic.Bits[W]() {
		return nil, ErrWidthMismatch
	}
	if err := r.Claim(t, t.Name); err != nil {
		return nil, err
	}
	return monotonic.NewSource[W](t.Name, counter, t.Ratio), nil
}
