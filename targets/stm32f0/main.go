//go:build tinygo && stm32f0

package main

import (
	"monotick/core"
	"monotick/monotonic"
	"monotick/peripheral"
)

// GPIOC on the STM32F072 Discovery carries the four user LEDs.
const (
	gpiocBase  = 0x48000800
	gpioMODER  = gpiocBase + 0x00
	gpioBSRR   = gpiocBase + 0x18
	gpioODR    = gpiocBase + 0x14
	rccIOPCEN  = 1 << 19
	ledBlue    = 7 // PC7
	ledRed     = 6 // PC6
	tickRateHz = 1000
)

const (
	chipName   = "stm32f072"
	blinkTicks = 1000
	fastTicks  = 250
)

func ledInit(pin uint32) {
	reg(rccAHBENR).SetBits(rccIOPCEN)
	reg(gpioMODER).ReplaceBits(0b01, 0b11, uint8(pin*2))
}

func ledToggle(pin uint32) {
	if reg(gpioODR).HasBits(1 << pin) {
		reg(gpioBSRR).Set(1 << (pin + 16))
	} else {
		reg(gpioBSRR).Set(1 << pin)
	}
}

func mustTimer(name string) peripheral.Timer {
	t, err := peripheral.Lookup(chipName, name)
	if err != nil {
		halt()
	}
	return t.WithClock(tickRateHz)
}

func halt() {
	for {
	}
}

func main() {
	registry := peripheral.NewRegistry()
	ledInit(ledBlue)
	ledInit(ledRed)

	// TIM2: 32-bit source, the scheduler's clock
	tim2 := mustTimer("TIM2")
	c32, err := peripheral.NewCounter32(tim2)
	if err != nil {
		halt()
	}
	clock, err := peripheral.Bind[uint32](registry, tim2, newTim(tim2, c32))
	if err != nil {
		halt()
	}
	clock.Start()

	// TIM3: 16-bit source; at 1kHz it wraps every 65.5 seconds
	tim3 := mustTimer("TIM3")
	c16, err := peripheral.NewCounter16(tim3)
	if err != nil {
		halt()
	}
	clock16, err := peripheral.Bind[uint16](registry, tim3, newTim(tim3, c16))
	if err != nil {
		halt()
	}
	clock16.Start()

	sched := core.NewScheduler[uint32](clock)
	blink := core.Periodic[uint32](1, blinkTicks, func(monotonic.Instant[uint32]) {
		ledToggle(ledBlue)
	})
	if err := sched.ScheduleAfter(blink, blinkTicks); err != nil {
		halt()
	}

	sched16 := core.NewScheduler[uint16](clock16)
	fast := core.Periodic[uint16](2, fastTicks, func(monotonic.Instant[uint16]) {
		ledToggle(ledRed)
	})
	if err := sched16.ScheduleAfter(fast, fastTicks); err != nil {
		halt()
	}

	for {
		sched.Dispatch()
		sched16.Dispatch()
	}
}
