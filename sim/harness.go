package sim

import (
	"errors"

	"greendot/core"
)

// Harness runs an emulated chip behind a Bus
type Harness struct {
	Bus       *Bus
	Device    *core.Device
	Responder *core.Responder

	done chan error
}

// Start creates a bus and runs a responder for profile on it
func Start(profile *core.Profile) *Harness {
	bus := NewBus()
	dev := core.NewDevice(profile)
	h := &Harness{
		Bus:       bus,
		Device:    dev,
		Responder: core.NewResponder(dev, bus),
		done:      make(chan error, 1),
	}
	go func() {
		h.done <- h.Responder.Run()
	}()
	return h
}

// Stop closes the bus and waits for the responder to exit
func (h *Harness) Stop() error {
	h.Bus.Close()
	err := <-h.done
	if errors.Is(err, ErrBusClosed) {
		return nil
	}
	return err
}

// Stats returns the responder counters once every clocked exchange has
// been accounted for
func (h *Harness) Stats() core.Stats {
	h.Bus.Settle()
	return h.Responder.Stats()
}

// Transaction selects the chip, clocks mosi and deselects, returning the
// bytes shifted out on MISO
func (b *Bus) Transaction(mosi []byte) ([]byte, error) {
	b.Select()
	defer b.Deselect()

	miso := make([]byte, len(mosi))
	if err := b.Tx(mosi, miso); err != nil {
		return nil, err
	}
	return miso, nil
}

// Command sends opcode followed by n filler bytes in one transaction and
// returns the n bytes shifted out after the opcode exchange
func (b *Bus) Command(opcode byte, n int, filler byte) ([]byte, error) {
	mosi := make([]byte, n+1)
	mosi[0] = opcode
	for i := 1; i < len(mosi); i++ {
		mosi[i] = filler
	}
	miso, err := b.Transaction(mosi)
	if err != nil {
		return nil, err
	}
	return miso[1:], nil
}
