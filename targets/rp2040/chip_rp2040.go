//go:build rp2040

package main

const (
	chipName  = "rp2040"
	timerName = "TIMER"
)

// InitDebug is a no-op; the RP2040 boards have no spare debug UART.
func InitDebug() {}
