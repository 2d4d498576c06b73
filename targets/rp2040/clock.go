//go:build rp2040 || rp2350

package main

import (
	"greendot/core"
	"runtime/volatile"
	"unsafe"
)

// RP2040/RP2350 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// InitClock registers the MCU constant and primes the core clock.
// The timer runs at 1MHz out of reset, matching core.TimerFreq.
func InitClock() {
	core.RegisterConstant("MCU", "rp2040")
	UpdateSystemTime()
}

// GetHardwareTime returns the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// UpdateSystemTime copies the hardware timer into the core clock.
// Called from the idle hook, never between two exchanges of a transaction.
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
