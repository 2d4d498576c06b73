// Package sim simulates the full-duplex SPI link between the data logger
// (bus master) and the emulated chip, in lock step, on the host.
//
// The device end implements core.SPISlaveDriver and is driven by a
// core.Responder on its own goroutine. The host end implements
// drivers.SPI so logger-side code runs unchanged against real hardware or
// the simulation.
package sim

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"greendot/core"

	"tinygo.org/x/drivers"
)

// IdleByte is shifted out before the device has queued anything and after
// every deselect (MISO pulled high)
const IdleByte = core.IdleByte

var (
	ErrBusClosed   = errors.New("sim: bus closed")
	ErrNotSelected = errors.New("sim: chip select not asserted")
)

type exchange struct {
	mosi  byte
	fresh bool
}

// Bus is one simulated SPI link with a single slave
type Bus struct {
	// Deadline bounds how long the host waits for the device to queue its
	// reply. Zero waits forever. A missed deadline leaves the shift
	// register unchanged and counts an overrun.
	Deadline time.Duration

	toDevice chan exchange
	toHost   chan byte

	// Host side
	shift    byte
	selected bool
	fresh    bool

	// Device side
	rx byte

	overruns  uint32
	exchanges uint32
	waits     uint32 // Device calls to WaitForExchange

	closeOnce sync.Once
	closed    chan struct{}
}

var (
	_ core.SPISlaveDriver  = (*Bus)(nil)
	_ core.OverrunReporter = (*Bus)(nil)
	_ drivers.SPI          = (*Bus)(nil)
)

// NewBus creates a deselected bus
func NewBus() *Bus {
	return &Bus{
		toDevice: make(chan exchange),
		toHost:   make(chan byte, 1),
		shift:    IdleByte,
		closed:   make(chan struct{}),
	}
}

// Device end

// WaitForExchange blocks until the host clocks a byte
func (b *Bus) WaitForExchange() (bool, error) {
	atomic.AddUint32(&b.waits, 1)
	select {
	case ex := <-b.toDevice:
		b.rx = ex.mosi
		return ex.fresh, nil
	case <-b.closed:
		return false, ErrBusClosed
	}
}

// Received returns the byte latched by the last WaitForExchange
func (b *Bus) Received() byte {
	return b.rx
}

// QueueTransmit loads the shift register for the next exchange. A byte
// queued after the host gave up waiting replaces any older late byte.
func (b *Bus) QueueTransmit(v byte) {
	for {
		select {
		case b.toHost <- v:
			return
		case <-b.closed:
			return
		default:
		}
		// Drop the stale late byte and retry
		select {
		case <-b.toHost:
		default:
		}
	}
}

// Overruns returns the number of missed transmit deadlines
func (b *Bus) Overruns() uint32 {
	return atomic.LoadUint32(&b.overruns)
}

// Host end

// Select asserts chip select. The first exchange after it is reported to
// the device as fresh.
func (b *Bus) Select() {
	b.selected = true
	b.fresh = true
}

// Deselect releases chip select. The slave's shift register is cleared,
// so anything queued but not yet clocked out is lost.
func (b *Bus) Deselect() {
	b.selected = false
	b.drainLate()
	b.shift = IdleByte
}

// Transfer clocks one byte in each direction
func (b *Bus) Transfer(w byte) (byte, error) {
	if !b.selected {
		return 0, ErrNotSelected
	}

	b.drainLate()
	miso := b.shift

	select {
	case b.toDevice <- exchange{mosi: w, fresh: b.fresh}:
	case <-b.closed:
		return 0, ErrBusClosed
	}
	b.fresh = false
	atomic.AddUint32(&b.exchanges, 1)

	if err := b.awaitReply(); err != nil {
		return 0, err
	}
	return miso, nil
}

// awaitReply loads the device's reply into the shift register
func (b *Bus) awaitReply() error {
	var timeout <-chan time.Time
	if b.Deadline > 0 {
		timer := time.NewTimer(b.Deadline)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case v := <-b.toHost:
		b.shift = v
	case <-timeout:
		atomic.AddUint32(&b.overruns, 1)
	case <-b.closed:
		return ErrBusClosed
	}
	return nil
}

// drainLate picks up a reply that arrived after its deadline
func (b *Bus) drainLate() {
	select {
	case v := <-b.toHost:
		b.shift = v
	default:
	}
}

// Tx clocks len(w) bytes (or len(r) zero bytes when w is nil) and stores
// MISO into r when it is non-nil
func (b *Bus) Tx(w, r []byte) error {
	n := len(w)
	if w == nil {
		n = len(r)
	}
	if r != nil && w != nil && len(r) != len(w) {
		return errors.New("sim: Tx buffers differ in length")
	}

	for i := 0; i < n; i++ {
		var out byte
		if w != nil {
			out = w[i]
		}
		in, err := b.Transfer(out)
		if err != nil {
			return err
		}
		if r != nil {
			r[i] = in
		}
	}
	return nil
}

// Exchanges returns the number of bytes clocked since creation
func (b *Bus) Exchanges() uint32 {
	return atomic.LoadUint32(&b.exchanges)
}

// Settle blocks until the device has finished with every exchange
// clocked so far and is waiting for the next one
func (b *Bus) Settle() {
	for atomic.LoadUint32(&b.waits) <= atomic.LoadUint32(&b.exchanges) {
		select {
		case <-b.closed:
			return
		default:
		}
		runtime.Gosched()
	}
}

// Close stops both ends; blocked calls return ErrBusClosed
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		close(b.closed)
	})
	return nil
}
