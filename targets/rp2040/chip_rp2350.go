//go:build rp2350

package main

import (
	"machine"

	"monotick/core"
)

// RP2350 TIMER0 is at a different address than the RP2040 TIMER;
// peripheral.Lookup resolves it.
const (
	chipName  = "rp2350"
	timerName = "TIMER0"
)

// InitDebug routes core debug output to UART1 on GPIO36 (TX) and GPIO37
// (RX) at 115200 baud.
func InitDebug() {
	uart := machine.UART1
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO36,
		RX:       machine.GPIO37,
	})
	if err != nil {
		return
	}

	core.SetDebugWriter(func(s string) {
		uart.Write([]byte(s))
		uart.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	core.DebugPrintln("=== RP2350 Debug UART Initialized ===")
}
