//go:build !tinygo

package core

import "sync"

// State stands in for the saved interrupt mask on regular Go
type State uintptr

// Host builds run the responder on its own goroutine (see package sim), so
// the critical sections become a mutex. Sections never nest.
var criticalSection sync.Mutex

func disableInterrupts() State {
	criticalSection.Lock()
	return 0
}

func restoreInterrupts(state State) {
	criticalSection.Unlock()
}
