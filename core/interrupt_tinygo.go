//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts so the chip-select ISR cannot observe a
// half-written event or stats record
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
