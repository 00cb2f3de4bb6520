//go:build tinygo

package peripheral

import (
	"runtime/volatile"
	"unsafe"

	"monotick/monotonic"
)

// Register offsets
const (
	stm32CNT = 0x24 // TIMx_CNT

	rp2TIMEHW   = 0x00 // write to bits 63:32, applies the TIMELW write
	rp2TIMELW   = 0x04 // write to bits 31:0, must be written first
	rp2TIMERAWL = 0x28 // raw read of bits 31:0, no latching
)

func register(addr uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

// stm32Counter16 reads TIMx_CNT of a 16-bit timer; the upper half reads zero.
type stm32Counter16 struct {
	cnt *volatile.Register32
}

func (c *stm32Counter16) Read() uint16 {
	return uint16(c.cnt.Get())
}

func (c *stm32Counter16) Reset() {
	c.cnt.Set(0)
}

type stm32Counter32 struct {
	cnt *volatile.Register32
}

func (c *stm32Counter32) Read() uint32 {
	return c.cnt.Get()
}

func (c *stm32Counter32) Reset() {
	c.cnt.Set(0)
}

// rp2Counter reads the low word of the 64-bit microsecond timer.
type rp2Counter struct {
	rawl   *volatile.Register32
	timelw *volatile.Register32
	timehw *volatile.Register32
}

func (c *rp2Counter) Read() uint32 {
	return c.rawl.Get()
}

func (c *rp2Counter) Reset() {
	c.timelw.Set(0)
	c.timehw.Set(0)
}

// NewCounter16 returns the register accessor for a 16-bit timer.
func NewCounter16(t Timer) (monotonic.Counter[uint16], error) {
	if t.Width != 16 || t.Kind != KindSTM32TIM {
		return nil, ErrWidthMismatch
	}
	return &stm32Counter16{cnt: register(t.Base + stm32CNT)}, nil
}

// NewCounter32 returns the register accessor for a 32-bit timer.
func NewCounter32(t Timer) (monotonic.Counter[uint32], error) {
	if t.Width != 32 {
		return nil, ErrWidthMismatch
	}
	switch t.Kind {
	case KindRP2Timer:
		return &rp2Counter{
			rawl:   register(t.Base + rp2TIMERAWL),
			timelw: register(t.Base + rp2TIMELW),
			timehw: register(t.Base + rp2TIMEHW),
		}, nil
	default:
		return &stm32Counter32{cnt: register(t.Base + stm32CNT)}, nil
	}
}
