//go:build rp2040 || rp2350

package main

import (
	"greendot/core"
	"greendot/protocol"
	"machine"
	"time"
)

var (
	// Buffers for the telemetry link
	inputBuffer  *protocol.ReceiveBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	// Debug counters
	usbErrors                uint32
	consecutiveWriteFailures uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitDebugUART()

	InitClock()
	core.TimerInit()

	profile, err := core.ProfileByName(profileName)
	if err != nil {
		// Build-time misconfiguration: fall back to the full chip
		core.DebugPrintln("[MAIN] " + err.Error() + ", using extended")
		profile = core.ExtendedProfile
	}

	core.InitTelemetryCommands()
	core.RegisterProfileConstants(profile)

	// Build and cache dictionary after all messages are registered
	core.GetGlobalDictionary().SetVersion(version)
	core.GetGlobalDictionary().BuildDictionary()

	inputBuffer = protocol.NewReceiveBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, handleCommand)
	// Frames already buffered behind the reset are still parsed
	transport.SetResetCallback(func() {
		outputBuffer.Reset()
	})
	// Acks go out before any response the command produces
	transport.SetFlushCallback(func() {
		writeUSB()
	})
	core.SetGlobalTransport(transport)

	slave := NewPIOSlave(serviceTelemetry)
	if err := slave.Init(); err != nil {
		core.DebugPrintln("[MAIN] PIO slave init failed: " + err.Error())
		for {
			serviceTelemetry()
			time.Sleep(100 * time.Microsecond)
		}
	}
	core.SetSPISlaveDriver(slave)

	responder := core.NewResponder(core.NewDevice(profile), core.MustSPISlave())
	core.SetResponder(responder)

	core.DebugPrintln("[MAIN] emulating " + profile.Name + " (" + profile.Opcodes() + ")")

	// Run only returns when the link fails; the PIO link never does
	for {
		if err := responder.Run(); err != nil {
			core.DebugPrintln("[MAIN] responder stopped: " + err.Error())
		}
	}
}

// serviceTelemetry runs one pass of the host link.
// Only called while chip-select is released, so USB latency never delays
// an exchange.
func serviceTelemetry() {
	UpdateSystemTime()

	for USBAvailable() > 0 {
		data, err := USBRead()
		if err != nil {
			usbErrors++
			break
		}
		if !inputBuffer.PutByte(data) {
			usbErrors++
			break
		}
	}

	if !inputBuffer.IsEmpty() {
		transport.Receive(inputBuffer)
	}

	if len(outputBuffer.Result()) > 0 {
		writeUSB()
	}
}

// handleCommand dispatches received commands to the command registry
func handleCommand(cmdID uint16, data *[]byte) error {
	return core.DispatchCommand(cmdID, data)
}

// writeUSB writes the pending output buffer to USB
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			// Likely disconnected; drop stale output after repeated failures
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
				transport.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
