//go:build rp2040 || rp2350

package main

import (
	"greendot/core"
	"machine"
	"runtime/interrupt"
	"sync/atomic"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// Logger-side SPI pins (SPI0 pad group, slave direction)
const (
	pinMOSI = machine.GPIO16
	pinCS   = machine.GPIO17
	pinSCK  = machine.GPIO18
	pinMISO = machine.GPIO19
)

// idleWord is the idle byte left-aligned for the MSB-first output shifter
const idleWord = uint32(core.IdleByte) << 24

// Slave program layout
const (
	slaveFirstEdge = 1 // wait for the falling edge that drives bit 7
	slavePull      = 2 // reply is fetched on that edge, not before
	slaveBitLoop   = 7
)

// buildSlaveProgram creates a mode 3 (CPOL=1, CPHA=1) MSB-first slave.
// MISO changes on the falling edge and MOSI is sampled on the rising edge.
// The reply is pulled on the first falling edge of the byte, so the CPU has
// the whole SCK-high gap after the previous byte to queue it. When nothing
// was queued in time, the byte in X (the previous reply) goes out again.
func buildSlaveProgram(sck uint8) []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Set(rp2pio.SetDestY, 6).Encode(),                // 0: set y, 6 (bits 6..0)
		asm.WaitGPIO(false, sck).Encode(),                   // 1: wait 0 gpio sck
		asm.Pull(false, false).Encode(),                     // 2: pull noblock (OSR <- X when empty)
		asm.Mov(rp2pio.MovDestX, rp2pio.MovSrcOSR).Encode(), // 3: mov x, osr
		asm.Out(rp2pio.OutDestPins, 1).Encode(),             // 4: out pins, 1 (bit 7)
		asm.WaitGPIO(true, sck).Encode(),                    // 5: wait 1 gpio sck
		asm.In(rp2pio.InSrcPins, 1).Encode(),                // 6: in pins, 1
		// bit_loop:
		asm.WaitGPIO(false, sck).Encode(),                   // 7: wait 0 gpio sck
		asm.Out(rp2pio.OutDestPins, 1).Encode(),             // 8: out pins, 1
		asm.WaitGPIO(true, sck).Encode(),                    // 9: wait 1 gpio sck
		asm.In(rp2pio.InSrcPins, 1).Encode(),                // 10: in pins, 1
		asm.Jmp(slaveBitLoop, rp2pio.JmpYNZeroDec).Encode(), // 11: jmp y--, bit_loop
		asm.Push(false, false).Encode(),                     // 12: push noblock
		// .wrap
	}
}

const slaveProgramOrigin = 0

// PIOSlave implements core.SPISlaveDriver on one PIO state machine.
// Chip-select is a plain GPIO interrupt: releasing it halts and flushes the
// state machine, so a queued but unsent byte never reaches the next
// transaction, and the first byte after the next select is the idle byte.
type PIOSlave struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	offset uint8

	rx       byte
	fresh    uint32 // Set by the chip-select ISR, consumed by WaitForExchange
	overruns uint32

	// idle runs while chip-select is released (telemetry, clock)
	idle func()
}

// NewPIOSlave creates the slave driver on PIO0 state machine 0
func NewPIOSlave(idle func()) *PIOSlave {
	return &PIOSlave{
		pio:  rp2pio.PIO0,
		sm:   rp2pio.PIO0.StateMachine(0),
		idle: idle,
	}
}

// Init loads the program, configures the pins and arms chip-select
func (s *PIOSlave) Init() error {
	s.sm.TryClaim()

	program := buildSlaveProgram(uint8(pinSCK))
	offset, err := s.pio.AddProgram(program, slaveProgramOrigin)
	if err != nil {
		return err
	}
	s.offset = offset

	pinMISO.Configure(machine.PinConfig{Mode: s.pio.PinMode()})
	pinMOSI.Configure(machine.PinConfig{Mode: machine.PinInput})
	pinSCK.Configure(machine.PinConfig{Mode: machine.PinInput})
	pinCS.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetInPins(pinMOSI)
	cfg.SetOutPins(pinMISO, 1)

	// Shift left (MSB first) on both sides, explicit PULL/PUSH
	cfg.SetOutShift(false, false, 32)
	cfg.SetInShift(false, false, 32)

	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	// Full system clock; SCK edges are polled by WAIT
	cfg.SetClkDivIntFrac(1, 0)

	s.sm.Init(offset, cfg)
	s.sm.SetPindirsConsecutive(pinMISO, 1, true)

	s.deselect()
	if !pinCS.Get() {
		s.sm.SetEnabled(true)
	}

	return pinCS.SetInterrupt(machine.PinRising|machine.PinFalling, s.onChipSelect)
}

// onChipSelect runs in interrupt context on both chip-select edges
func (s *PIOSlave) onChipSelect(p machine.Pin) {
	if p.Get() {
		s.deselect()
		return
	}
	s.sm.SetEnabled(true)
}

// deselect halts the state machine and rearms it with the idle byte
func (s *PIOSlave) deselect() {
	s.sm.SetEnabled(false)
	s.sm.ClearFIFOs()
	s.sm.Restart()
	s.sm.Jmp(s.offset, rp2pio.JmpAlways)
	s.sm.TxPut(idleWord)
	atomic.StoreUint32(&s.fresh, 1)
}

// WaitForExchange blocks until a byte has been clocked in
func (s *PIOSlave) WaitForExchange() (bool, error) {
	core.PollUntil(s.rxReady, pinCS.Get, s.idle)

	state := interrupt.Disable()
	s.rx = byte(s.sm.RxGet())
	fresh := atomic.SwapUint32(&s.fresh, 0) == 1
	interrupt.Restore(state)

	return fresh, nil
}

// Received returns the byte shifted in by the last exchange
func (s *PIOSlave) Received() byte {
	return s.rx
}

func (s *PIOSlave) rxReady() bool {
	return !s.sm.IsRxFIFOEmpty()
}

// QueueTransmit sets the byte shifted out on the next exchange
func (s *PIOSlave) QueueTransmit(b byte) {
	state := interrupt.Disable()
	if !s.sm.IsTxFIFOEmpty() {
		// The previous reply was still waiting: its byte went out from X
		// and it is now one exchange late
		s.overruns++
	}
	s.sm.TxPut(uint32(b) << 24)
	interrupt.Restore(state)
}

// Overruns returns the running count of missed transmit deadlines
func (s *PIOSlave) Overruns() uint32 {
	state := interrupt.Disable()
	defer interrupt.Restore(state)
	return s.overruns
}

var _ core.SPISlaveDriver = (*PIOSlave)(nil)
var _ core.OverrunReporter = (*PIOSlave)(nil)
