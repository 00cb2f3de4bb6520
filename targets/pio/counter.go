//go:build rp2040 || rp2350

package pio

import (
	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"monotick/monotonic"
)

// buildCounterProgram creates a one-instruction free-running counter:
// X is decremented every PIO clock, so -X counts up.
func buildCounterProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Jmp(0, rp2pio.JmpXNZeroDec).Encode(), // 0: jmp x--, 0
		// .wrap
	}
}

const counterPIOOrigin = 0 // Load at offset 0 for correct jump addresses

// Counter is a 32-bit counter driven by a PIO state machine. Unlike the
// system timer it can run from any clock divider and be reset without
// disturbing the runtime's sleep timer.
type Counter struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	offset uint8
	div    uint16

	readX  uint16
	push   uint16
	resetX uint16
}

// NewCounter prepares a counter on slot s that ticks once every div
// system clock cycles. The state machine stays stopped until Start.
func NewCounter(s Slot, div uint16) (*Counter, error) {
	pioHW := rp2pio.PIO0
	if s.PIO == 1 {
		pioHW = rp2pio.PIO1
	}
	c := &Counter{
		pio: pioHW,
		sm:  pioHW.StateMachine(s.SM),
		div: div,
	}

	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	c.readX = asm.In(rp2pio.InSrcX, 0).Encode() // bit count 0 encodes 32
	c.push = asm.Push(false, false).Encode()
	c.resetX = asm.Set(rp2pio.SetDestX, 0).Encode()

	// Claim the state machine before touching it
	if err := claim(&c.sm, s); err != nil {
		return nil, err
	}

	program := buildCounterProgram()
	offset, err := c.pio.AddProgram(program, counterPIOOrigin)
	if err != nil {
		return nil, err
	}
	c.offset = offset

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(div, 0)
	// Each read pushes the whole ISR
	cfg.SetInShift(false, false, 32)
	c.sm.Init(offset, cfg)
	return c, nil
}

// Start enables the state machine.
func (c *Counter) Start() {
	c.sm.Exec(c.resetX)
	c.sm.SetEnabled(true)
}

// Read samples X through the RX FIFO. The injected instructions stall
// the loop for two PIO cycles, so the count stays monotonic.
func (c *Counter) Read() uint32 {
	c.sm.ClearFIFOs()
	c.sm.Exec(c.readX)
	c.sm.Exec(c.push)
	for c.sm.IsRxFIFOEmpty() {
	}
	return -c.sm.RxGet()
}

// Reset zeroes the count.
func (c *Counter) Reset() {
	c.sm.Exec(c.resetX)
}

var (
	_ monotonic.Counter[uint32] = (*Counter)(nil)
	_ monotonic.Starter         = (*Counter)(nil)
)
