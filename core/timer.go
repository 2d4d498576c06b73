package core

import "sync/atomic"

// Default tick rate: the RP2040 timer counts microseconds
const (
	TimerFreq = 1000000
)

var (
	systemTicks uint32 // Written by the idle hook, read when recording events
	bootTime    uint32 // Tick count when the firmware started
)

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

// SetTime sets the current system time (updated by target code, or by tests)
func SetTime(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}

// TimerInit records the boot time
func TimerInit() {
	bootTime = GetTime()
}

// GetUptime returns ticks elapsed since TimerInit, modulo 2^32
func GetUptime() uint32 {
	return GetTime() - bootTime
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32((uint64(ticks) * 1000000) / TimerFreq)
}
