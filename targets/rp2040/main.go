//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"monotick/core"
	"monotick/monotonic"
	"monotick/peripheral"
	"monotick/protocol"
	"monotick/targets/pio"
)

// Source ids carried in sample frames
const (
	timerSourceID = 0
	pioSourceID   = 1
)

const (
	blinkPeriod  = 500 * time.Millisecond
	reportPeriod = 100 * time.Millisecond

	// PIO counter divider: 125MHz / 125 = 1MHz, the same rate as TIMER
	pioClockDiv = 125
)

var (
	outputBuffer *protocol.ScratchOutput
	encoder      *protocol.Encoder

	// Debug counters
	framesSent               uint32
	writeErrors              uint32
	consecutiveWriteFailures uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitDebug()
	core.InitAsyncDebug()

	registry := peripheral.NewRegistry()

	timer, err := peripheral.Lookup(chipName, timerName)
	if err != nil {
		fatal()
	}
	counter, err := peripheral.NewCounter32(timer)
	if err != nil {
		fatal()
	}
	// TIMER is started by the runtime; Start only records it.
	clock, err := peripheral.Bind[uint32](registry, timer, counter)
	if err != nil {
		fatal()
	}
	clock.Start()

	pioClock := newPIOClock()

	sched := core.NewScheduler[uint32](clock)
	ticks := func(d time.Duration) monotonic.Duration {
		t, err := timer.TicksFromMicros(uint64(d.Microseconds()))
		if err != nil {
			fatal()
		}
		return t
	}

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	blink := core.Periodic[uint32](1, ticks(blinkPeriod), func(monotonic.Instant[uint32]) {
		led.Set(!led.Get())
	})

	outputBuffer = protocol.NewScratchOutput()
	encoder = protocol.NewEncoder(outputBuffer)
	report := core.Periodic[uint32](2, ticks(reportPeriod), func(monotonic.Instant[uint32]) {
		encoder.EncodeSample(protocol.Sample{Source: timerSourceID, Width: 32, Raw: clock.Now().Raw()})
		if pioClock != nil {
			encoder.EncodeSample(protocol.Sample{Source: pioSourceID, Width: 32, Raw: pioClock.Now().Raw()})
		}
		writeUSB()
	})

	if err := sched.ScheduleAfter(blink, ticks(blinkPeriod)); err != nil {
		fatal()
	}
	if err := sched.ScheduleAfter(report, ticks(reportPeriod)); err != nil {
		fatal()
	}

	// Sync byte so the host can frame the first sample
	outputBuffer.Output([]byte{protocol.MessageValueSync})

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					writeErrors++
					outputBuffer.Reset()
					core.DebugAsync("[PANIC] dispatch recovered")
					core.DumpTimingRing()
				}
			}()

			sched.Dispatch()
		}()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// newPIOClock starts a second clock source on a PIO state machine. It
// returns nil when no state machine is free.
func newPIOClock() *monotonic.Source[uint32] {
	var alloc pio.Allocator
	slot, err := alloc.Allocate()
	if err != nil {
		return nil
	}
	counter, err := pio.NewCounter(slot, pioClockDiv)
	if err != nil {
		alloc.Release(slot)
		return nil
	}
	src := monotonic.NewSource[uint32]("pio", counter, monotonic.Ratio1to1)
	src.Start()
	return src
}

// fatal blinks the LED rapidly forever.
func fatal() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}

// writeUSB writes available data from output buffer to USB
func writeUSB() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}

	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			// Likely disconnect
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				// Don't keep trying to send stale data
				consecutiveWriteFailures = 0
				core.DebugAsync("[USB] write stalled, output reset")
				outputBuffer.Reset()
				outputBuffer.Output([]byte{protocol.MessageValueSync})
			}
			writeErrors++
			return
		}
		written += n
	}

	consecutiveWriteFailures = 0
	framesSent++
	outputBuffer.Reset()
}
