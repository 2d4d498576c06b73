package core

// Stats counts responder activity since power-up
type Stats struct {
	Exchanges      uint32 // Bytes clocked by the host
	Transactions   uint32 // Opcodes answered
	UnknownOpcodes uint32 // Bytes received while idle that were not opcodes
	Reselects      uint32 // Chip-select cycles observed
	Completed      uint32 // Table streams that ran to their last byte
	Overruns       uint32 // Transmit deadlines missed (driver reported)
	Panics         uint32 // Recovered responder panics
}

// Responder runs the exchange loop: wait for the host clock, decode, queue
// the reply. It is the only owner of its Device.
type Responder struct {
	dev  *Device
	link SPISlaveDriver

	overrun OverrunReporter // nil when the driver cannot observe overruns

	last        byte // Shift register content, retransmitted for non-opcodes
	opcode      byte // Opcode of the current transaction
	streamStart uint32
	stats       Stats
}

// NewResponder binds a device to a slave link
func NewResponder(dev *Device, link SPISlaveDriver) *Responder {
	r := &Responder{
		dev:  dev,
		link: link,
		last: IdleByte,
	}
	if or, ok := link.(OverrunReporter); ok {
		r.overrun = or
	}
	return r
}

// Step processes exactly one exchange.
// The reply is queued before any bookkeeping so the next clock edge never
// waits on diagnostics.
func (r *Responder) Step() error {
	fresh, err := r.link.WaitForExchange()
	if err != nil {
		return err
	}
	rx := r.link.Received()

	var prevMode Mode
	var prevCursor int
	if fresh {
		prevMode, prevCursor = r.dev.Mode(), r.dev.Cursor()
		r.dev.Deselect()
		// The driver flushed the shift register on deselect
		r.last = IdleByte
	}
	wasIdle := r.dev.Mode() == AwaitingCommand

	tx, ok := r.dev.Exchange(rx)
	if ok {
		r.last = tx
	}
	r.link.QueueTransmit(r.last)

	r.account(rx, tx, ok, wasIdle, fresh, prevMode, prevCursor)
	return nil
}

// account updates counters and the event ring for one exchange
func (r *Responder) account(rx, tx byte, ok, wasIdle, fresh bool, prevMode Mode, prevCursor int) {
	state := disableInterrupts()
	r.stats.Exchanges++
	if fresh {
		r.stats.Reselects++
	}

	var evt uint8
	var v1, v2 uint32
	switch {
	case wasIdle && !ok:
		r.stats.UnknownOpcodes++
		evt, v1 = EvtUnknownOpcode, uint32(rx)
	case wasIdle && r.dev.Mode() == Streaming:
		r.stats.Transactions++
		r.opcode = rx
		r.streamStart = r.stats.Exchanges
		evt, v1 = EvtStreamStart, uint32(r.dev.Active().Len())
	case wasIdle:
		r.stats.Transactions++
		r.opcode = rx
		evt, v1 = EvtOpcode, uint32(tx)
	case r.dev.Mode() == AwaitingCommand:
		r.stats.Completed++
		evt, v1 = EvtStreamDone, r.stats.Exchanges-r.streamStart+1
	}

	var overruns uint32
	newOverrun := false
	if r.overrun != nil {
		overruns = r.overrun.Overruns()
		newOverrun = overruns != r.stats.Overruns
		r.stats.Overruns = overruns
	}
	restoreInterrupts(state)

	if fresh {
		RecordEvent(EvtReselect, r.opcode, uint32(prevMode), uint32(prevCursor))
	}
	if evt != 0 {
		RecordEvent(evt, r.opcode, v1, v2)
	}
	if newOverrun {
		RecordEvent(EvtOverrun, r.opcode, overruns, 0)
	}
}

// Run processes exchanges until the link reports an error.
// A panic inside one exchange is counted, the device is returned to
// AwaitingCommand and the loop continues.
func (r *Responder) Run() error {
	for {
		if err := r.safeStep(); err != nil {
			return err
		}
	}
}

// safeStep runs Step with panic recovery
func (r *Responder) safeStep() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.dev.Deselect()
			state := disableInterrupts()
			r.stats.Panics++
			panics := r.stats.Panics
			restoreInterrupts(state)
			RecordEvent(EvtPanic, r.opcode, panics, 0)
			DumpEventRing()
			DebugAsync("[RESPONDER] recovered panic #" + utoa(panics))
		}
	}()
	return r.Step()
}

// Stats returns a snapshot of the counters
func (r *Responder) Stats() Stats {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return r.stats
}

// Device returns the state machine driven by this responder
func (r *Responder) Device() *Device {
	return r.dev
}
