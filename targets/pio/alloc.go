package pio

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStateMachine is returned when every state machine is in use.
	ErrNoStateMachine = errors.New("pio: no free state machine")

	// ErrClaimed is returned when a state machine is already owned by
	// other code.
	ErrClaimed = errors.New("pio: state machine already claimed")
)

// Slot names one PIO state machine.
type Slot struct {
	PIO uint8 // 0 or 1
	SM  uint8 // 0-3
}

// Allocator hands out PIO state machines.
// RP2040/RP2350 have 2 PIO blocks (PIO0, PIO1) with 4 state machines each.
type Allocator struct {
	used [2][4]bool
	next Slot
}

// Allocate returns a free state machine, round-robin across blocks.
func (a *Allocator) Allocate() (Slot, error) {
	for i := 0; i < 8; i++ { // 2 PIO × 4 SM = 8 total
		s := a.next

		a.next.SM++
		if a.next.SM >= 4 {
			a.next.SM = 0
			a.next.PIO = (a.next.PIO + 1) % 2
		}

		if !a.used[s.PIO][s.SM] {
			a.used[s.PIO][s.SM] = true
			return s, nil
		}
	}
	return Slot{}, ErrNoStateMachine
}

// Release returns s to the pool.
func (a *Allocator) Release(s Slot) {
	a.used[s.PIO][s.SM] = false
}

// Status returns the allocation table for debugging
func (a *Allocator) Status() [2][4]bool {
	return a.used
}

type claimer interface {
	TryClaim() bool
}

// claim takes hardware ownership of the state machine in s.
func claim(c claimer, s Slot) error {
	if !c.TryClaim() {
		return fmt.Errorf("%w: pio%d sm%d", ErrClaimed, s.PIO, s.SM)
	}
	return nil
}
