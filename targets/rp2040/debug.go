//go:build rp2040 || rp2350

package main

import (
	"greendot/core"
	"machine"
)

var debugUART *machine.UART

// InitDebugUART routes core debug output to UART0 (TX=GPIO0, RX=GPIO1).
// USB carries the framed telemetry link and cannot take free text.
func InitDebugUART() {
	debugUART = machine.UART0
	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
	if err != nil {
		debugUART = nil
		return
	}

	core.SetDebugWriter(func(s string) {
		debugUART.Write([]byte(s))
		debugUART.Write([]byte("\r\n"))
	})
	core.InitAsyncDebug()
}
