// Telemetry commands served over the USB link while the chip is deselected
package core

import (
	"greendot/protocol"
)

// Response currently being reported (set by main)
var activeResponder *Responder

// SetResponder sets the responder whose counters and events are reported
func SetResponder(r *Responder) {
	activeResponder = r
}

// InitTelemetryCommands registers all telemetry messages.
// Registration order fixes the bootstrap IDs the host relies on before it
// has read the dictionary:
//
//	identify_response = ID 0
//	identify = ID 1
func InitTelemetryCommands() {
	RegisterResponse("identify_response", "offset=%u data=%*s")       // ID 0
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify) // ID 1

	RegisterCommand("get_uptime", "", handleGetUptime)
	RegisterCommand("get_status", "", handleGetStatus)
	RegisterCommand("dump_events", "offset=%c count=%c", handleDumpEvents)
	RegisterCommand("clear_events", "", handleClearEvents)
	RegisterCommand("set_debug", "enable=%c", handleSetDebug)

	// Response messages (MCU -> host)
	RegisterResponse("uptime", "clock=%u")
	RegisterResponse("status", "profile=%s exchanges=%u transactions=%u unknown=%u reselects=%u completed=%u overruns=%u panics=%u")
	RegisterResponse("events", "offset=%c total=%c count=%c")
	RegisterResponse("event", "type=%c opcode=%c clock=%u v1=%u v2=%u")
}

// RegisterProfileConstants exposes the device profile in the dictionary
func RegisterProfileConstants(p *Profile) {
	RegisterConstant("PROFILE", p.Name)
	RegisterConstant("OPCODES", p.Opcodes())
	RegisterConstant("CLOCK_FREQ", uint32(TimerFreq))
	for _, t := range p.Tables() {
		RegisterConstant("TABLE_"+t.Name(), t.Len())
	}
}

// handleIdentify returns a chunk of the data dictionary
func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	chunk := GetGlobalDictionary().GetChunk(offset, uint8(count))

	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})

	return nil
}

// handleGetUptime returns ticks since boot
func handleGetUptime(data *[]byte) error {
	SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, GetUptime())
	})
	return nil
}

// handleGetStatus reports the responder counters
func handleGetStatus(data *[]byte) error {
	var stats Stats
	profile := ""
	if activeResponder != nil {
		stats = activeResponder.Stats()
		profile = activeResponder.Device().Profile().Name
	}

	SendResponse("status", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQString(output, profile)
		protocol.EncodeVLQUint(output, stats.Exchanges)
		protocol.EncodeVLQUint(output, stats.Transactions)
		protocol.EncodeVLQUint(output, stats.UnknownOpcodes)
		protocol.EncodeVLQUint(output, stats.Reselects)
		protocol.EncodeVLQUint(output, stats.Completed)
		protocol.EncodeVLQUint(output, stats.Overruns)
		protocol.EncodeVLQUint(output, stats.Panics)
	})
	return nil
}

// handleDumpEvents sends a window of the event ring, oldest first.
// The host pages through the ring so one reply always fits the output buffer.
func handleDumpEvents(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	events := EventRing()
	total := uint32(len(events))
	if offset > total {
		offset = total
	}
	end := offset + count
	if end > total {
		end = total
	}
	window := events[offset:end]

	SendResponse("events", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, total)
		protocol.EncodeVLQUint(output, uint32(len(window)))
	})
	for _, evt := range window {
		evt := evt
		SendResponse("event", func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, uint32(evt.EventType))
			protocol.EncodeVLQUint(output, uint32(evt.Opcode))
			protocol.EncodeVLQUint(output, evt.Clock)
			protocol.EncodeVLQUint(output, evt.Value1)
			protocol.EncodeVLQUint(output, evt.Value2)
		})
	}
	return nil
}

// handleClearEvents empties the event ring
func handleClearEvents(data *[]byte) error {
	ClearEventRing()
	return nil
}

// handleSetDebug toggles debug output
func handleSetDebug(data *[]byte) error {
	enable, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	SetDebugEnabled(enable != 0)
	return nil
}

// SendResponse sends a response message using the global transport
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(responseName)
	if !ok {
		// All responses are registered by InitTelemetryCommands
		panic("Response not registered: " + responseName)
	}
	globalTransport.SendCommand(cmd.ID, args)
}

// Global transport for sending responses (set by main)
var globalTransport *protocol.Transport

// SetGlobalTransport sets the global transport for sending responses
func SetGlobalTransport(transport *protocol.Transport) {
	globalTransport = transport
}
