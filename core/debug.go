package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// ExchangeEvent captures a protocol event for post-mortem analysis
type ExchangeEvent struct {
	EventType uint8  // Event type code
	Opcode    uint8  // Opcode of the transaction the event belongs to
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtOpcode        = 1 // Opcode answered with a single byte
	EvtStreamStart   = 2 // Opcode started a table stream (v1 = table length)
	EvtStreamDone    = 3 // Last table byte queued (v1 = exchanges in stream)
	EvtUnknownOpcode = 4 // Byte received while awaiting a command was not an opcode
	EvtReselect      = 5 // Chip-select cycled (v1 = mode before, v2 = cursor before)
	EvtOverrun       = 6 // Host clocked before a reply was queued (v1 = overrun count)
	EvtPanic         = 7 // Responder recovered from a panic
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	// Disabled by default; a blocking write inside the exchange loop would miss deadlines
	debugEnabled bool = false

	// Event capture ring buffer (non-blocking, for post-mortem)
	eventRing     [EventRingSize]ExchangeEvent
	eventRingHead uint8 // Next write position

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16) // Buffer 16 messages
	go debugOutputWorker()
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync for non-blocking)
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if !debugEnabled || debugChan == nil {
		return
	}
	select {
	case debugChan <- msg:
	default:
		// Channel full, drop message (non-blocking)
	}
}

// RecordEvent captures an event in the ring buffer.
// Constant time and allocation free; safe to call right after a reply is queued.
func RecordEvent(eventType, opcode uint8, value1, value2 uint32) {
	state := disableInterrupts()
	idx := eventRingHead
	eventRing[idx] = ExchangeEvent{
		EventType: eventType,
		Opcode:    opcode,
		Clock:     GetTime(),
		Value1:    value1,
		Value2:    value2,
	}
	eventRingHead = (idx + 1) % EventRingSize
	restoreInterrupts(state)
}

// EventRing returns the captured events, oldest first
func EventRing() []ExchangeEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	events := make([]ExchangeEvent, 0, EventRingSize)
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

// EventName returns the printable name of an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtOpcode:
		return "OPCODE"
	case EvtStreamStart:
		return "STREAM_START"
	case EvtStreamDone:
		return "STREAM_DONE"
	case EvtUnknownOpcode:
		return "UNKNOWN_OPCODE"
	case EvtReselect:
		return "RESELECT"
	case EvtOverrun:
		return "OVERRUN!"
	case EvtPanic:
		return "PANIC!"
	default:
		return "UNKNOWN"
	}
}

// DumpEventRing outputs the event ring buffer through the debug writer.
// The write blocks, so it is only done when debug output is enabled.
func DumpEventRing() {
	if !debugEnabled || debugPrintln == nil {
		return
	}

	debugPrintln("[EVENTS] === Event Ring Dump ===")
	for _, evt := range EventRing() {
		debugPrintln("[EVENTS] " + EventName(evt.EventType) +
			" op=" + hex8(evt.Opcode) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[EVENTS] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	for i := range eventRing {
		eventRing[i] = ExchangeEvent{}
	}
	eventRingHead = 0
}
