package core

import "runtime"

// IdleByte is the MISO level while no reply is loaded: at power-up and after
// every deselect the shift register holds all ones
const IdleByte = 0xFF

// SPISlaveDriver is the abstract slave-side SPI link the responder drives.
// Platform-specific implementations handle the peripheral (clock mode, pin
// routing, FIFOs); core code only sees one byte per exchange.
type SPISlaveDriver interface {
	// WaitForExchange blocks until the host has clocked one byte in both
	// directions. fresh is true when chip-select was released since the
	// previous exchange, i.e. this byte opens a new transaction.
	// An error means the link is gone and the responder must stop.
	WaitForExchange() (fresh bool, err error)

	// Received returns the byte shifted in by the last exchange
	Received() byte

	// QueueTransmit sets the byte shifted out on the next exchange.
	// Must be called before the host starts clocking that exchange.
	QueueTransmit(b byte)
}

// OverrunReporter is implemented by drivers that can tell when the host
// clocked a byte before a reply was queued (the previous byte went out again)
type OverrunReporter interface {
	// Overruns returns the running count of missed transmit deadlines
	Overruns() uint32
}

// PollUntil spins until ready reports true. While deselected reports true it
// runs idle (may be nil) and yields so other goroutines, such as the async
// debug worker, get scheduled. While selected it spins without yielding.
func PollUntil(ready, deselected func() bool, idle func()) {
	for !ready() {
		if deselected() {
			if idle != nil {
				idle()
			}
			runtime.Gosched()
		}
	}
}

// Global singleton used by core code
var spiSlaveDriver SPISlaveDriver

// SetSPISlaveDriver is called by target-specific code to register its slave driver
func SetSPISlaveDriver(d SPISlaveDriver) {
	spiSlaveDriver = d
}

// MustSPISlave returns the configured slave driver or panics if missing
func MustSPISlave() SPISlaveDriver {
	if spiSlaveDriver == nil {
		panic("SPI slave driver not configured")
	}
	return spiSlaveDriver
}
