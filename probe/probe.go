// Package probe reads the emulated security chip the way the data logger
// does: as SPI bus master, one opcode per chip-select transaction.
package probe

import (
	"bytes"
	"errors"
	"fmt"

	"greendot/core"

	"tinygo.org/x/drivers"
)

var (
	ErrMismatch   = errors.New("probe: chip contents do not match profile")
	ErrNoResponse = errors.New("probe: chip did not answer")
)

// Chip is an emulated security chip on an SPI bus
type Chip struct {
	Bus drivers.SPI

	// Select drives chip-select around each transaction. Leave nil when
	// the bus asserts chip-select itself for every Tx (Linux spidev).
	Select func(asserted bool)

	// Filler is clocked out after the opcode
	Filler byte
}

// transaction clocks opcode plus n filler bytes and returns the n reply
// bytes. The reply to each byte arrives one exchange later, so the request
// is one byte longer than the reply.
func (c *Chip) transaction(opcode byte, n int) ([]byte, error) {
	w := make([]byte, n+1)
	w[0] = opcode
	for i := 1; i < len(w); i++ {
		w[i] = c.Filler
	}
	r := make([]byte, len(w))

	if c.Select != nil {
		c.Select(true)
		defer c.Select(false)
	}
	if err := c.Bus.Tx(w, r); err != nil {
		return nil, fmt.Errorf("opcode 0x%02X: %w", opcode, err)
	}
	return r[1:], nil
}

// Status reads the status register
func (c *Chip) Status() (byte, error) {
	r, err := c.transaction(core.OpStatus, 1)
	if err != nil {
		return 0, err
	}
	return r[0], nil
}

// SecurityRegister reads the full security register
func (c *Chip) SecurityRegister() ([]byte, error) {
	return c.transaction(core.OpSecurityRegister, core.SecurityRegisterLen)
}

// ManufacturerID reads the manufacturer and device ID
func (c *Chip) ManufacturerID() ([]byte, error) {
	return c.transaction(core.OpManufacturerID, core.ManufacturerIDLen)
}

// Report is everything Identify read from the chip
type Report struct {
	Status           byte
	SecurityRegister []byte
	ManufacturerID   []byte

	// Profile is the preset whose tables match, empty if none does
	Profile string
}

// Identify runs every read the logger knows and guesses the profile
func (c *Chip) Identify() (*Report, error) {
	status, err := c.Status()
	if err != nil {
		return nil, err
	}
	if status == 0x00 || status == 0xFF {
		// Floating or stuck MISO
		return nil, fmt.Errorf("%w: status 0x%02X", ErrNoResponse, status)
	}

	sr, err := c.SecurityRegister()
	if err != nil {
		return nil, err
	}

	mid, err := c.ManufacturerID()
	if err != nil {
		return nil, err
	}

	report := &Report{
		Status:           status,
		SecurityRegister: sr,
		ManufacturerID:   mid,
	}

	switch {
	case Verify(report, core.ExtendedProfile) == nil:
		report.Profile = core.ExtendedProfile.Name
	case Verify(report, core.BaseProfile) == nil:
		report.Profile = core.BaseProfile.Name
	}
	return report, nil
}

// Verify checks a report against the replies profile is expected to give.
// Opcodes outside the profile are not checked.
func Verify(report *Report, profile *core.Profile) error {
	for _, cmd := range profile.Commands {
		var got, want []byte
		switch cmd.Opcode {
		case core.OpStatus:
			got, want = []byte{report.Status}, []byte{cmd.Status}
		case core.OpSecurityRegister:
			got, want = report.SecurityRegister, cmd.Table.Bytes()
		case core.OpManufacturerID:
			got, want = report.ManufacturerID, cmd.Table.Bytes()
		default:
			continue
		}
		if !bytes.Equal(got, want) {
			return fmt.Errorf("%w: opcode 0x%02X (%s): first difference at byte %d",
				ErrMismatch, cmd.Opcode, profile.Name, firstDiff(got, want))
		}
	}
	return nil
}

func firstDiff(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return i
		}
	}
	if len(a) < len(b) {
		return len(a)
	}
	return len(b)
}
