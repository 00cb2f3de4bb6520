//go:build tinygo && stm32f0

package main

import (
	"runtime/volatile"
	"unsafe"

	"monotick/monotonic"
	"monotick/peripheral"
)

// RCC and TIMx register offsets
const (
	rccBase    = 0x40021000
	rccAHBENR  = rccBase + 0x14
	rccAPB1ENR = rccBase + 0x1C

	timCR1 = 0x00
	timEGR = 0x14
	timPSC = 0x28
	timARR = 0x2C

	timCR1CEN = 1 << 0
	timEGRUG  = 1 << 0
)

// sysclk after reset: 8MHz HSI
const sysclkHz = 8000000

func reg(addr uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

// apb1Bits maps each APB1 timer to its RCC_APB1ENR enable bit.
var apb1Bits = map[string]uint32{
	"TIM2":  1 << 0,
	"TIM3":  1 << 1,
	"TIM6":  1 << 4,
	"TIM7":  1 << 5,
	"TIM14": 1 << 8,
}

// tim adds peripheral start-up to a counter accessor: clock gate,
// prescaler to the requested rate, free-running reload, enable.
type tim[W monotonic.Width] struct {
	monotonic.Counter[W]
	t peripheral.Timer
}

func newTim[W monotonic.Width](t peripheral.Timer, counter monotonic.Counter[W]) *tim[W] {
	return &tim[W]{Counter: counter, t: t}
}

// Start implements monotonic.Starter.
func (c *tim[W]) Start() {
	if bit, ok := apb1Bits[c.t.Name]; ok {
		reg(rccAPB1ENR).SetBits(bit)
	}

	base := c.t.Base
	reg(base + timPSC).Set(sysclkHz/c.t.ClockHz - 1)
	reg(base + timARR).Set(uint32(c.t.Period() - 1))
	// Load the prescaler now instead of at the first overflow
	reg(base + timEGR).Set(timEGRUG)
	reg(base + timCR1).SetBits(timCR1CEN)
}
