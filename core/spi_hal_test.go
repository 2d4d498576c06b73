package core

import (
	"sync/atomic"
	"testing"
)

func TestPollUntilRunsIdleWhileDeselected(t *testing.T) {
	// The worker only gets to run if the poll loop yields
	var worked atomic.Bool
	work := make(chan struct{}, 1)
	go func() {
		<-work
		worked.Store(true)
	}()
	work <- struct{}{}

	idle := 0
	PollUntil(worked.Load, func() bool { return true }, func() { idle++ })

	if idle == 0 {
		t.Error("idle hook never ran while deselected")
	}
}

func TestPollUntilSkipsIdleWhileSelected(t *testing.T) {
	polls := 0
	ready := func() bool {
		polls++
		return polls > 100
	}

	PollUntil(ready, func() bool { return false }, func() {
		t.Fatal("idle hook ran while selected")
	})
}

func TestPollUntilNilIdle(t *testing.T) {
	polls := 0
	PollUntil(func() bool { polls++; return polls > 3 }, func() bool { return true }, nil)
	if polls != 4 {
		t.Errorf("polled %d times, want 4", polls)
	}
}

func TestAsyncDebugDeliveredWhilePolling(t *testing.T) {
	var lines atomic.Int32
	SetDebugWriter(func(string) { lines.Add(1) })
	defer SetDebugWriter(func(string) {})
	SetDebugEnabled(true)
	defer SetDebugEnabled(false)

	InitAsyncDebug()
	DebugAsync("[RESPONDER] recovered panic #1")

	PollUntil(func() bool { return lines.Load() == 1 }, func() bool { return true }, nil)
}
